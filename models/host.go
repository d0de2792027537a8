// Package models defines the core data structures shared across all layers of
// the SNMP label-pipeline exporter. These types represent the canonical
// in-memory form of configuration; every other package depends on this
// package and nothing here depends on any other internal package.
package models

import "regexp"

// Host is an immutable, fully-resolved monitored device. Host values never
// change after config load — the scheduler and collection tasks only ever
// read from them.
type Host struct {
	// Hostname is the DNS name or IP address used as the SNMP target.
	Hostname string

	// Community is the SNMP v1/v2c community string.
	Community string

	// Version is "1" or "2c".
	Version string

	// StaticLabels are attached verbatim to every sample emitted for this
	// host. The literal value "__hostname" has already been substituted with
	// Hostname at config-load time (SPEC_FULL.md §D.3).
	StaticLabels map[string]string

	// Modules lists the module names polled on this host. Unresolved module
	// names are dropped at load time with a logged warning, so by the time a
	// Host reaches the orchestrator every entry here is a key into the
	// config's Modules map.
	Modules []string
}

// Module is a named group of poll definitions shared by every host that
// references it.
type Module struct {
	Name string

	// TemplateLabels maps template name -> TemplateOID.
	TemplateLabels map[string]TemplateOID

	// Labels maps label-group name -> (label name -> LabelOID).
	Labels map[string]map[string]LabelOID

	// Metrics is the list of polled metric definitions.
	Metrics []MetricOID

	// Joins maps label-group name -> join declaration, for groups declared
	// with type: join instead of an ordinary set of OID mappings.
	Joins map[string]JoinSpec
}

// QueryType enumerates the supported SNMP retrieval strategies.
type QueryType string

const (
	QueryGet           QueryType = "get"
	QueryWalk          QueryType = "walk"
	QueryCommunityWalk QueryType = "community_walk" // treated as an alias of QueryWalk, see DESIGN.md
)

// StoreMethod enumerates the pure conversion rules applied to a raw varbind.
type StoreMethod string

const (
	StoreValue           StoreMethod = "value"
	StoreSubtreeAsString StoreMethod = "subtree-as-string"
	StoreSubtreeAsIP     StoreMethod = "subtree-as-ip"
	StoreHexAsIP         StoreMethod = "hex-as-ip"
	StoreExtractRealm    StoreMethod = "extract_realm"
	StoreMilli           StoreMethod = "milli"
)

// OIDBase holds the fields common to every OID leaf entry (spec.md §3).
type OIDBase struct {
	Name        string
	OID         string
	QueryType   QueryType
	Every       int // seconds
	StoreMethod StoreMethod
	OIDSuffix   string
	Filter      *Filter
}

// Filter is a compiled, optional admission/rewrite regex applied to a decoded
// value before it is stored. When the pattern has a capture group the
// captured text replaces the value; otherwise a match merely admits the row.
type Filter struct {
	Pattern    string
	HasCapture bool
	// Compiled is filled in by internal/config at load time.
	Compiled *regexp.Regexp
}

// TemplateOID is an OID entry that populates the template cache and may
// parameterise downstream community strings.
type TemplateOID struct {
	OIDBase
	// CommunityTemplate is a format string with {community} and {template}
	// substitution slots. Empty means "no per-instance community expansion".
	CommunityTemplate string
}

// LabelOID is an OID entry that populates the label cache.
type LabelOID struct {
	OIDBase
	// TemplateName references a TemplateOID in the same module, or "".
	TemplateName string
}

// MetricOID is an OID entry that produces emitted samples.
type MetricOID struct {
	OIDBase
	TemplateName string
	// LabelGroup is an ordered list of "[module.]group[.joinspec]" references
	// selecting which label groups participate in this metric's label set.
	LabelGroup []string
}

// JoinSpec declares that two label groups must be merged row-wise using the
// named columns as join keys (spec.md §3 Join table).
type JoinSpec struct {
	LeftGroup    string
	LeftJoinKey  string
	RightGroup   string
	RightJoinKey string
}
