// Package config loads and validates the single snmp.yaml configuration
// document (spec.md §6) into the models.Host / models.Module graph the rest
// of the exporter consumes.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/netmetrics/snmp-label-exporter/models"
)

// LoadedConfig is the fully validated configuration.
type LoadedConfig struct {
	Hosts       []models.Host
	Modules     map[string]models.Module
	Description map[string]MetricDescription
	Driver      *DriverConfig
}

// MetricDescription carries the Prometheus #TYPE / #HELP text for a metric.
type MetricDescription struct {
	Type        string
	Description string
}

// DriverConfig selects and configures the sink driver (spec.md §6).
type DriverConfig struct {
	Name   string
	Config map[string]interface{}
}

// Load reads filename, decodes it as YAML, and validates it into a
// LoadedConfig. Structural problems (missing required keys, wrong types,
// unknown enum values, invalid durations) are configuration errors and are
// all accumulated before returning, so operators see every problem in the
// file in one pass (spec.md §7).
func Load(filename string, logger *slog.Logger) (*LoadedConfig, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", filename, err)
	}

	var raw rawRoot
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(false)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", filename, err)
	}

	var errs []string

	modules, modErrs := buildModules(raw.Modules)
	errs = append(errs, modErrs...)

	hosts, hostErrs := buildHosts(raw.Hosts, modules, logger)
	errs = append(errs, hostErrs...)

	if raw.Description == nil {
		errs = append(errs, "description: section is required")
	}
	descriptions := make(map[string]MetricDescription, len(raw.Description))
	for name, d := range raw.Description {
		descriptions[name] = MetricDescription{Type: d.Type, Description: d.Description}
	}

	var driver *DriverConfig
	if raw.Driver != nil {
		if raw.Driver.Name != "prometheus" && raw.Driver.Name != "influxdb" {
			errs = append(errs, fmt.Sprintf("driver: unknown name %q (want prometheus or influxdb)", raw.Driver.Name))
		} else {
			driver = &DriverConfig{Name: raw.Driver.Name, Config: raw.Driver.Config}
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config: %d error(s):\n  %s", len(errs), strings.Join(errs, "\n  "))
	}

	return &LoadedConfig{
		Hosts:       hosts,
		Modules:     modules,
		Description: descriptions,
		Driver:      driver,
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Hosts
// ─────────────────────────────────────────────────────────────────────────────

func buildHosts(raw []rawHost, modules map[string]models.Module, logger *slog.Logger) ([]models.Host, []string) {
	var errs []string
	hosts := make([]models.Host, 0, len(raw))

	for i, rh := range raw {
		if rh.Hostname == "" {
			errs = append(errs, fmt.Sprintf("hosts[%d]: hostname is required", i))
			continue
		}

		community := rh.Community
		if community == "" {
			community = "public"
		}
		version := rh.Version
		if version == "" {
			version = "1"
		}
		if version != "1" && version != "2c" {
			errs = append(errs, fmt.Sprintf("hosts[%d] (%s): version must be \"1\" or \"2c\", got %q", i, rh.Hostname, version))
			continue
		}

		static := make(map[string]string, len(rh.StaticLabels))
		for k, v := range rh.StaticLabels {
			if v == "__hostname" {
				v = rh.Hostname
			}
			static[k] = v
		}

		var resolvedModules []string
		for _, name := range rh.Modules {
			if _, ok := modules[name]; !ok {
				logger.Warn("config: unresolved module reference on host, dropping", "host", rh.Hostname, "module", name)
				continue
			}
			resolvedModules = append(resolvedModules, name)
		}

		hosts = append(hosts, models.Host{
			Hostname:     rh.Hostname,
			Community:    community,
			Version:      version,
			StaticLabels: static,
			Modules:      resolvedModules,
		})
	}
	return hosts, errs
}

// ─────────────────────────────────────────────────────────────────────────────
// Modules
// ─────────────────────────────────────────────────────────────────────────────

func buildModules(raw map[string]rawModule) (map[string]models.Module, []string) {
	var errs []string
	modules := make(map[string]models.Module, len(raw))

	// Deterministic iteration for reproducible error ordering.
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		rm := raw[name]
		moduleEvery := rm.Every
		if moduleEvery == "" {
			moduleEvery = "60s"
		}

		mod := models.Module{
			Name:           name,
			TemplateLabels: make(map[string]models.TemplateOID),
			Labels:         make(map[string]map[string]models.LabelOID),
			Joins:          make(map[string]models.JoinSpec),
		}

		for tname, item := range rm.TemplateLabels {
			every := firstNonEmpty(item.Every, moduleEvery)
			seconds, err := ParseDuration(every)
			if err != nil {
				errs = append(errs, fmt.Sprintf("modules.%s.template_labels.%s: %v", name, tname, err))
				continue
			}
			qt, err := parseQueryType(item.QueryType)
			if err != nil {
				errs = append(errs, fmt.Sprintf("modules.%s.template_labels.%s: %v", name, tname, err))
				continue
			}
			sm, err := parseStoreMethod(item.StoreMethod)
			if err != nil {
				errs = append(errs, fmt.Sprintf("modules.%s.template_labels.%s: %v", name, tname, err))
				continue
			}
			filter, err := buildFilter(item.Mapping.Filter)
			if err != nil {
				errs = append(errs, fmt.Sprintf("modules.%s.template_labels.%s: %v", name, tname, err))
				continue
			}
			mod.TemplateLabels[tname] = models.TemplateOID{
				OIDBase: models.OIDBase{
					Name:        tname,
					OID:         item.Mapping.OID,
					QueryType:   qt,
					Every:       seconds,
					StoreMethod: sm,
					OIDSuffix:   item.Mapping.OIDSuffix,
					Filter:      filter,
				},
				CommunityTemplate: item.CommunityTemplate,
			}
		}

		for gname, group := range rm.Labels {
			if group.Type == "join" {
				if group.LeftGroup == "" || group.RightGroup == "" || group.LeftJoinKey == "" || group.RightJoinKey == "" {
					errs = append(errs, fmt.Sprintf("modules.%s.labels.%s: join group requires left_group, left_join_key, right_group, right_join_key", name, gname))
					continue
				}
				mod.Joins[gname] = models.JoinSpec{
					LeftGroup:    group.LeftGroup,
					LeftJoinKey:  group.LeftJoinKey,
					RightGroup:   group.RightGroup,
					RightJoinKey: group.RightJoinKey,
				}
				continue
			}

			every := firstNonEmpty(group.Every, moduleEvery)
			seconds, err := ParseDuration(every)
			if err != nil {
				errs = append(errs, fmt.Sprintf("modules.%s.labels.%s: %v", name, gname, err))
				continue
			}
			qt, err := parseQueryType(group.Type)
			if err != nil {
				errs = append(errs, fmt.Sprintf("modules.%s.labels.%s: %v", name, gname, err))
				continue
			}
			sm, err := parseStoreMethod(group.StoreMethod)
			if err != nil {
				errs = append(errs, fmt.Sprintf("modules.%s.labels.%s: %v", name, gname, err))
				continue
			}

			labelMap := make(map[string]models.LabelOID, len(group.Mappings))
			for lname, leaf := range group.Mappings {
				filter, err := buildFilter(leaf.Filter)
				if err != nil {
					errs = append(errs, fmt.Sprintf("modules.%s.labels.%s.%s: %v", name, gname, lname, err))
					continue
				}
				labelMap[lname] = models.LabelOID{
					OIDBase: models.OIDBase{
						Name:        lname,
						OID:         leaf.OID,
						QueryType:   qt,
						Every:       seconds,
						StoreMethod: sm,
						OIDSuffix:   leaf.OIDSuffix,
						Filter:      filter,
					},
					TemplateName: group.TemplateName,
				}
			}
			mod.Labels[gname] = labelMap
		}

		for i, mg := range rm.Metrics {
			every := firstNonEmpty(mg.Every, moduleEvery)
			seconds, err := ParseDuration(every)
			if err != nil {
				errs = append(errs, fmt.Sprintf("modules.%s.metrics[%d]: %v", name, i, err))
				continue
			}
			qt, err := parseQueryType(mg.QueryType)
			if err != nil {
				errs = append(errs, fmt.Sprintf("modules.%s.metrics[%d]: %v", name, i, err))
				continue
			}
			sm, err := parseStoreMethod(mg.StoreMethod)
			if err != nil {
				errs = append(errs, fmt.Sprintf("modules.%s.metrics[%d]: %v", name, i, err))
				continue
			}
			for _, ref := range mg.LabelGroup {
				if err := validateLabelGroupRef(ref); err != nil {
					errs = append(errs, fmt.Sprintf("modules.%s.metrics[%d]: %v", name, i, err))
				}
			}

			for mname, leaf := range mg.Mappings {
				filter, err := buildFilter(leaf.Filter)
				if err != nil {
					errs = append(errs, fmt.Sprintf("modules.%s.metrics[%d].%s: %v", name, i, mname, err))
					continue
				}
				mod.Metrics = append(mod.Metrics, models.MetricOID{
					OIDBase: models.OIDBase{
						Name:        mname,
						OID:         leaf.OID,
						QueryType:   qt,
						Every:       seconds,
						StoreMethod: sm,
						OIDSuffix:   leaf.OIDSuffix,
						Filter:      filter,
					},
					TemplateName: mg.TemplateName,
					LabelGroup:   mg.LabelGroup,
				})
			}
		}

		modules[name] = mod
	}
	return modules, errs
}

// ─────────────────────────────────────────────────────────────────────────────
// Enums, filters, and small helpers
// ─────────────────────────────────────────────────────────────────────────────

func parseQueryType(s string) (models.QueryType, error) {
	switch s {
	case "get":
		return models.QueryGet, nil
	case "walk":
		return models.QueryWalk, nil
	case "community_walk":
		return models.QueryCommunityWalk, nil
	case "":
		return "", fmt.Errorf("query_type (type) is required")
	default:
		return "", fmt.Errorf("query_type %q must be one of get, walk, community_walk", s)
	}
}

func parseStoreMethod(s string) (models.StoreMethod, error) {
	switch models.StoreMethod(s) {
	case models.StoreValue, models.StoreSubtreeAsString, models.StoreSubtreeAsIP,
		models.StoreHexAsIP, models.StoreExtractRealm, models.StoreMilli:
		return models.StoreMethod(s), nil
	case "":
		return models.StoreValue, nil
	default:
		return "", fmt.Errorf("store_method %q is not a recognised store method", s)
	}
}

// validateLabelGroupRef rejects label_group references with an arity other
// than 1, 2, or 3 components, per spec.md §9.
func validateLabelGroupRef(ref string) error {
	if ref == "__template_label" {
		return nil
	}
	n := len(strings.Split(ref, "."))
	if n < 1 || n > 3 {
		return fmt.Errorf("label_group reference %q has arity %d, want 1-3", ref, n)
	}
	return nil
}

func buildFilter(pattern string) (*models.Filter, error) {
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid filter regex %q: %w", pattern, err)
	}
	return &models.Filter{
		Pattern:    pattern,
		HasCapture: re.NumSubexp() > 0,
		Compiled:   re,
	}, nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
