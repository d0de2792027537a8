// Package labelstore implements the label cache (spec.md §4.3): the
// per-(host, module, label_group, label_name, template_selector, walk_index)
// cache that metric emission resolves against, including join resolution
// between two label groups.
package labelstore

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/netmetrics/snmp-label-exporter/models"
)

// Store is the label cache. The zero value is not usable; use New.
type Store struct {
	mu sync.Mutex

	// data[key][walkIdx] = value. key identifies (host, module, group, name,
	// template_str); walkIdx is "" for get-type (scalar) entries.
	data map[string]map[string]string

	// groupNames[host/module/group] = set of label names ever written into
	// that group, needed by InvalidateCache and ResolveGroup to iterate
	// "every label name in the group" (spec.md §4.3).
	groupNames map[string]map[string]bool

	// joins[module/group] is the declared join spec for a type:join group.
	joins map[string]models.JoinSpec
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		data:       make(map[string]map[string]string),
		groupNames: make(map[string]map[string]bool),
		joins:      make(map[string]models.JoinSpec),
	}
}

func groupKey(host, module, group string) string {
	return strings.Join([]string{host, module, group}, "\x00")
}

func labelKey(host, module, group, name, templateStr string) string {
	return strings.Join([]string{host, module, group, name, templateStr}, "\x00")
}

func joinKey(module, group string) string {
	return module + "\x00" + group
}

// templateStr renders the canonical template selector, "=None" when no
// template applies (spec.md §4.3).
func templateStr(templateName, templateValue string) string {
	if templateName == "" {
		return "=None"
	}
	return templateName + "=" + templateValue
}

func walkIdxOrEmpty(walkIdx *string) string {
	if walkIdx == nil {
		return ""
	}
	return *walkIdx
}

// SetLabel implements spec.md §4.3's
// `set_label(host, module, group, name, value, template_name, template_value, walk_idx)`.
// Map creation happens under the store's lock; this mirrors the coarse-lock
// + monotonic-leaf-write description in spec.md, collapsed to a single
// mutex since Go maps require synchronized access regardless of write
// ordering.
func (s *Store) SetLabel(host, module, group, name, value, templateName, templateValue string, walkIdx *string) {
	gk := groupKey(host, module, group)
	lk := labelKey(host, module, group, name, templateStr(templateName, templateValue))
	idx := walkIdxOrEmpty(walkIdx)

	s.mu.Lock()
	defer s.mu.Unlock()

	names, ok := s.groupNames[gk]
	if !ok {
		names = make(map[string]bool)
		s.groupNames[gk] = names
	}
	names[name] = true

	m, ok := s.data[lk]
	if !ok {
		m = make(map[string]string)
		s.data[lk] = m
	}
	m[idx] = value
}

// InvalidateCache implements spec.md §4.3's
// `invalidate_cache(host, module, group, template_name, template_value, fresh_output)`.
// It must be called before a walk's label values are replaced; it deletes,
// for every label name in the group, any cached walk_index not present in
// freshIndexes. This is the only operation that shrinks the cache.
func (s *Store) InvalidateCache(host, module, group, templateName, templateValue string, freshIndexes map[string]bool) {
	ts := templateStr(templateName, templateValue)

	s.mu.Lock()
	defer s.mu.Unlock()

	names := s.groupNames[groupKey(host, module, group)]
	for name := range names {
		m := s.data[labelKey(host, module, group, name, ts)]
		if m == nil {
			continue
		}
		for idx := range m {
			if !freshIndexes[idx] {
				delete(m, idx)
			}
		}
	}
}

// SetJoin registers the declarative join spec for a type:join label group
// (spec.md §4.3 "set_join"). Called once per join group during warmup, not
// per host.
func (s *Store) SetJoin(module, group string, spec models.JoinSpec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joins[joinKey(module, group)] = spec
}

// HasJoin reports whether (module, group) was registered via SetJoin.
func (s *Store) HasJoin(module, group string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.joins[joinKey(module, group)]
	return ok
}

// ResolveGroup implements the 2-component case of spec.md §4.3's
// `resolve_label`: every (name, value) registered in (host, module, group)
// at the given template selector and walk index. ok is false — the "empty
// map" sentinel that poisons the whole resolution — when the group has no
// registered names, or any one of them has no cached value for this index.
func (s *Store) ResolveGroup(host, module, group, templateName, templateValue string, walkIdx *string) (map[string]string, bool) {
	ts := templateStr(templateName, templateValue)
	idx := walkIdxOrEmpty(walkIdx)

	s.mu.Lock()
	defer s.mu.Unlock()

	names := s.groupNames[groupKey(host, module, group)]
	if len(names) == 0 {
		return nil, false
	}

	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	out := make(map[string]string, len(sorted))
	for _, name := range sorted {
		m := s.data[labelKey(host, module, group, name, ts)]
		if m == nil {
			return nil, false
		}
		val, ok := m[idx]
		if !ok {
			return nil, false
		}
		out[name] = val
	}
	return out, true
}

// ResolveJoin implements the 3-component join case of spec.md §4.3's
// `resolve_label`: load the left subgroup's labels at walkIdx, locate its
// left_join_key value, scan the right subgroup for the walk index whose
// right_join_key matches, and merge both rows (right-hand values win on
// collision). Any missing step yields ok=false.
func (s *Store) ResolveJoin(host, module, group, templateName, templateValue string, walkIdx *string) (map[string]string, bool) {
	s.mu.Lock()
	spec, ok := s.joins[joinKey(module, group)]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}

	leftMap, ok := s.ResolveGroup(host, module, spec.LeftGroup, templateName, templateValue, walkIdx)
	if !ok {
		return nil, false
	}
	leftJoinVal, ok := leftMap[spec.LeftJoinKey]
	if !ok {
		return nil, false
	}

	ts := templateStr(templateName, templateValue)
	s.mu.Lock()
	rightKeyMap := s.data[labelKey(host, module, spec.RightGroup, spec.RightJoinKey, ts)]
	s.mu.Unlock()
	if rightKeyMap == nil {
		return nil, false
	}

	rightIdx, found := findMatchingIndex(rightKeyMap, leftJoinVal)
	if !found {
		return nil, false
	}

	rightMap, ok := s.ResolveGroup(host, module, spec.RightGroup, templateName, templateValue, &rightIdx)
	if !ok {
		return nil, false
	}

	return models.MergeLabels(leftMap, rightMap), true
}

// findMatchingIndex scans m's entries in sorted-index order for the first
// value equal to target, so the match is deterministic when duplicates
// exist.
func findMatchingIndex(m map[string]string, target string) (string, bool) {
	indexes := make([]string, 0, len(m))
	for idx := range m {
		indexes = append(indexes, idx)
	}
	sort.Strings(indexes)
	for _, idx := range indexes {
		if m[idx] == target {
			return idx, true
		}
	}
	return "", false
}

// Dump produces a deterministic text rendering of the cache, used by the
// /dump endpoint.
func (s *Store) Dump() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		parts := strings.Split(k, "\x00")
		m := s.data[k]
		indexes := make([]string, 0, len(m))
		for idx := range m {
			indexes = append(indexes, idx)
		}
		sort.Strings(indexes)
		for _, idx := range indexes {
			fmt.Fprintf(&b, "%s/%s/%s/%s[%s]@%s = %s\n", parts[0], parts[1], parts[2], parts[3], idx, parts[4], m[idx])
		}
	}
	return b.String()
}
