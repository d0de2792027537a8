// Package templatestore implements the template cache (spec.md §4.2): the
// per-(host, module, template_group) values used to parameterise community
// strings for template-scoped polling.
package templatestore

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// CommunityRow is one resolved effective community, as returned by
// ResolveCommunity.
type CommunityRow struct {
	Community     string
	TemplateName  string
	TemplateValue string
}

// entry holds either a single scalar value (get-type template) or a set of
// walk-indexed values (walk-type template). Exactly one of the two is
// populated for the lifetime of an entry.
type entry struct {
	hasSingle bool
	single    string
	byIndex   map[string]string
}

// Store is the template cache. The zero value is not usable; use New.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry // key: host + "\x00" + module + "\x00" + group
}

// New returns an empty Store.
func New() *Store {
	return &Store{entries: make(map[string]*entry)}
}

func key(host, module, group string) string {
	return host + "\x00" + module + "\x00" + group
}

// SetLabel writes value into the template cache for (host, module, group).
// walkIdx == nil means a get-type (scalar) write; otherwise value is stored
// under that walk index, and repeated calls overwrite only that index —
// existing indexes are never deleted by SetLabel (spec.md §4.2).
func (s *Store) SetLabel(host, module, group, value string, walkIdx *string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(host, module, group)
	e, ok := s.entries[k]
	if !ok {
		e = &entry{}
		s.entries[k] = e
	}

	if walkIdx == nil {
		e.hasSingle = true
		e.single = value
		return
	}
	if e.byIndex == nil {
		e.byIndex = make(map[string]string)
	}
	e.byIndex[*walkIdx] = value
}

// ResolveCommunity implements spec.md §4.2's
// `resolve_community(host, module, template_name, community_template, base_community)`.
//
// When templateName is empty, or no cached template value exists for it, the
// result is a single row carrying baseCommunity unchanged and no template
// identity. Otherwise every cached template value (one row for a get-type
// template, one row per walk index for a walk-type template) produces a
// distinct rendered community.
func (s *Store) ResolveCommunity(host, module, templateName, communityTemplate, baseCommunity string) []CommunityRow {
	if templateName == "" {
		return []CommunityRow{{Community: baseCommunity}}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key(host, module, templateName)]
	if !ok {
		return []CommunityRow{{Community: baseCommunity}}
	}

	if e.hasSingle {
		return []CommunityRow{{
			Community:     render(communityTemplate, baseCommunity, e.single),
			TemplateName:  templateName,
			TemplateValue: e.single,
		}}
	}

	indexes := make([]string, 0, len(e.byIndex))
	for idx := range e.byIndex {
		indexes = append(indexes, idx)
	}
	sort.Strings(indexes)

	rows := make([]CommunityRow, 0, len(indexes))
	for _, idx := range indexes {
		val := e.byIndex[idx]
		rows = append(rows, CommunityRow{
			Community:     render(communityTemplate, baseCommunity, val),
			TemplateName:  templateName,
			TemplateValue: val,
		})
	}
	return rows
}

func render(tmpl, community, templateValue string) string {
	r := strings.NewReplacer("{community}", community, "{template}", templateValue)
	return r.Replace(tmpl)
}

// Dump produces a deterministic text rendering of the cache, used by the
// /dump endpoint (spec.md §4.2).
func (s *Store) Dump() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		parts := strings.Split(k, "\x00")
		e := s.entries[k]
		if e.hasSingle {
			fmt.Fprintf(&b, "%s/%s/%s = %s\n", parts[0], parts[1], parts[2], e.single)
			continue
		}
		indexes := make([]string, 0, len(e.byIndex))
		for idx := range e.byIndex {
			indexes = append(indexes, idx)
		}
		sort.Strings(indexes)
		for _, idx := range indexes {
			fmt.Fprintf(&b, "%s/%s/%s[%s] = %s\n", parts[0], parts[1], parts[2], idx, e.byIndex[idx])
		}
	}
	return b.String()
}
