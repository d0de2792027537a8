package labelstore

import "strings"

// ResolveLabelGroupRefs implements the top-level
// `resolve_label(host, module, label_group_refs, template_name, template_value, walk_idx)`
// contract of spec.md §4.3: each reference in refs is resolved and the
// partial maps are merged left-to-right; any empty intermediate result
// poisons the whole resolution and the final map comes back empty.
//
// A reference is one of:
//   - "__template_label": a single {templateName: templateValue} pair.
//   - "group" or "module.group": the 2-component case, an ordinary label
//     group (ResolveGroup) or — when that (module, group) pair was
//     registered via SetJoin — the join case (ResolveJoin).
//   - "module.group.subgroup": an explicit-module join reference; subgroup
//     is the join group's own name, module is given explicitly rather than
//     defaulted.
func (s *Store) ResolveLabelGroupRefs(host, defaultModule string, refs []string, templateName, templateValue string, walkIdx *string) map[string]string {
	out := make(map[string]string)

	for _, ref := range refs {
		if ref == "__template_label" {
			out[templateName] = templateValue
			continue
		}

		module, group := splitRef(ref, defaultModule)

		var partial map[string]string
		var ok bool
		if s.HasJoin(module, group) {
			partial, ok = s.ResolveJoin(host, module, group, templateName, templateValue, walkIdx)
		} else {
			partial, ok = s.ResolveGroup(host, module, group, templateName, templateValue, walkIdx)
		}
		if !ok {
			return map[string]string{}
		}
		for k, v := range partial {
			out[k] = v
		}
	}
	return out
}

// splitRef parses a label_group reference of the form "group",
// "module.group", or "module.group.subgroup" into its (module, group)
// components. The join case's "subgroup" component names the join group
// itself, so for a 3-part reference the group identity is the last
// component and the module is everything before it joined back together.
func splitRef(ref, defaultModule string) (module, group string) {
	parts := strings.Split(ref, ".")
	switch len(parts) {
	case 1:
		return defaultModule, parts[0]
	default:
		return strings.Join(parts[:len(parts)-1], "."), parts[len(parts)-1]
	}
}
