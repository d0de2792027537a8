package config

import "gopkg.in/yaml.v3"

// Raw* types are the direct YAML-decoded shape of snmp.yaml (spec.md §6).
// Load converts these into the validated models.* graph; nothing outside
// this package ever sees a raw type.
//
// Schema shape, mirroring the query_type/store_method-at-group-level
// structure of the original Python configuration parser (config.py):
//
//	hosts:
//	  - hostname: r1
//	    community: public
//	    version: "2c"
//	    static_labels: {dc: eu, target: __hostname}
//	    modules: [if_stats]
//	modules:
//	  if_stats:
//	    every: 60s
//	    template_labels:
//	      vrf:
//	        mapping: 1.3.6.1.4.1.9.9.1.0
//	        type: get
//	        store_method: value
//	        community_template: "{community}@{template}"
//	    labels:
//	      names:
//	        type: walk
//	        store_method: subtree-as-string
//	        template_label: vrf
//	        mappings: {ifDescr: 1.3.6.1.2.1.2.2.1.2}
//	      ifaces:
//	        type: join
//	        left_group: names
//	        left_join_key: ifindex
//	        right_group: counters
//	        right_join_key: ifindex
//	    metrics:
//	      - type: walk
//	        store_method: value
//	        label_group: [names]
//	        mappings: {ifInOctets: 1.3.6.1.2.1.2.2.1.10}
type rawRoot struct {
	Hosts       []rawHost                 `yaml:"hosts"`
	Modules     map[string]rawModule      `yaml:"modules"`
	Description map[string]rawDescription `yaml:"description"`
	Driver      *rawDriver                `yaml:"driver"`
}

type rawHost struct {
	Hostname     string            `yaml:"hostname"`
	Community    string            `yaml:"community"`
	Version      string            `yaml:"version"`
	StaticLabels map[string]string `yaml:"static_labels"`
	Modules      []string          `yaml:"modules"`
}

type rawModule struct {
	Every          string                     `yaml:"every"`
	TemplateLabels map[string]rawTemplateItem `yaml:"template_labels"`
	Labels         map[string]rawLabelGroup   `yaml:"labels"`
	Metrics        []rawMetricGroup           `yaml:"metrics"`
}

// rawOIDLeaf is a single OID, either a bare string or an object that also
// sets oid_suffix / filter (spec.md §6). An every key on the object is
// decoded but not applied: the polling interval always comes from the
// enclosing group's every, or the module's.
type rawOIDLeaf struct {
	OID       string `yaml:"oid"`
	Every     string `yaml:"every"`
	OIDSuffix string `yaml:"oid_suffix"`
	Filter    string `yaml:"filter"`
}

// UnmarshalYAML allows an OID leaf to be written as a bare string (the OID
// itself, with no oid_suffix and no filter) or as a full mapping.
func (l *rawOIDLeaf) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&l.OID)
	}
	type plain rawOIDLeaf
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*l = rawOIDLeaf(p)
	return nil
}

type rawTemplateItem struct {
	Mapping           rawOIDLeaf `yaml:"mapping"`
	Every             string     `yaml:"every"`
	QueryType         string     `yaml:"type"`
	StoreMethod       string     `yaml:"store_method"`
	CommunityTemplate string     `yaml:"community_template"`
}

// rawLabelGroup is either an ordinary named set of label mappings, or — when
// Type == "join" — a join declaration over two previously-defined groups
// (spec.md §3 Join table).
type rawLabelGroup struct {
	Type         string                `yaml:"type"`
	StoreMethod  string                `yaml:"store_method"`
	Every        string                `yaml:"every"`
	TemplateName string                `yaml:"template_label"`
	Mappings     map[string]rawOIDLeaf `yaml:"mappings"`

	// Join-only fields.
	LeftGroup    string `yaml:"left_group"`
	LeftJoinKey  string `yaml:"left_join_key"`
	RightGroup   string `yaml:"right_group"`
	RightJoinKey string `yaml:"right_join_key"`
}

type rawMetricGroup struct {
	QueryType    string                `yaml:"type"`
	StoreMethod  string                `yaml:"store_method"`
	Every        string                `yaml:"every"`
	TemplateName string                `yaml:"template_label"`
	LabelGroup   []string              `yaml:"label_group"`
	Mappings     map[string]rawOIDLeaf `yaml:"mappings"`
}

type rawDescription struct {
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
}

type rawDriver struct {
	Name   string                 `yaml:"name"`
	Config map[string]interface{} `yaml:"config"`
}
