package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/netmetrics/snmp-label-exporter/models"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "snmp.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

const minimalConfig = `
hosts:
  - hostname: r1
    community: public
    version: "2c"
    static_labels: {dc: eu, target: __hostname}
    modules: [if_stats]
modules:
  if_stats:
    every: 60s
    template_labels:
      vrf:
        mapping: 1.3.6.1.4.1.9.9.1.0
        type: get
        store_method: value
        community_template: "{community}@{template}"
    labels:
      names:
        type: walk
        store_method: subtree-as-string
        template_label: vrf
        mappings: {ifDescr: 1.3.6.1.2.1.2.2.1.2}
    metrics:
      - type: walk
        store_method: value
        label_group: [names]
        mappings: {ifInOctets: 1.3.6.1.2.1.2.2.1.10}
description:
  ifInOctets:
    type: counter
    description: "bytes received"
driver:
  name: prometheus
  config: {}
`

func TestLoadMinimal(t *testing.T) {
	path := writeTempConfig(t, minimalConfig)
	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Hosts) != 1 {
		t.Fatalf("expected 1 host, got %d", len(cfg.Hosts))
	}
	h := cfg.Hosts[0]
	if h.Community != "public" || h.Version != "2c" {
		t.Errorf("unexpected host: %+v", h)
	}
	if h.StaticLabels["target"] != "r1" {
		t.Errorf("expected __hostname substitution, got %q", h.StaticLabels["target"])
	}
	if len(h.Modules) != 1 || h.Modules[0] != "if_stats" {
		t.Errorf("unexpected modules: %v", h.Modules)
	}

	mod, ok := cfg.Modules["if_stats"]
	if !ok {
		t.Fatalf("expected if_stats module")
	}
	tmpl, ok := mod.TemplateLabels["vrf"]
	if !ok || tmpl.QueryType != models.QueryGet || tmpl.Every != 60 {
		t.Errorf("unexpected template: %+v", tmpl)
	}
	if tmpl.CommunityTemplate != "{community}@{template}" {
		t.Errorf("unexpected community template: %q", tmpl.CommunityTemplate)
	}

	group, ok := mod.Labels["names"]
	if !ok {
		t.Fatalf("expected names label group")
	}
	lbl, ok := group["ifDescr"]
	if !ok || lbl.TemplateName != "vrf" || lbl.StoreMethod != models.StoreSubtreeAsString {
		t.Errorf("unexpected label: %+v", lbl)
	}

	if len(mod.Metrics) != 1 || mod.Metrics[0].Name != "ifInOctets" {
		t.Fatalf("unexpected metrics: %+v", mod.Metrics)
	}
}

func TestLoadDefaultsCommunityAndVersion(t *testing.T) {
	cfg := `
hosts:
  - hostname: r1
    modules: []
modules: {}
description: {}
`
	path := writeTempConfig(t, cfg)
	loaded, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	h := loaded.Hosts[0]
	if h.Community != "public" {
		t.Errorf("expected default community 'public', got %q", h.Community)
	}
	if h.Version != "1" {
		t.Errorf("expected default version '1', got %q", h.Version)
	}
}

func TestLoadRejectsMissingQueryType(t *testing.T) {
	cfg := `
hosts: []
modules:
  m1:
    metrics:
      - store_method: value
        label_group: [names]
        mappings: {x: 1.2.3}
description: {}
`
	path := writeTempConfig(t, cfg)
	if _, err := Load(path, nil); err == nil {
		t.Fatal("expected error for missing query_type")
	}
}

func TestLoadRejectsBadStoreMethod(t *testing.T) {
	cfg := `
hosts: []
modules:
  m1:
    metrics:
      - type: get
        store_method: not-a-real-method
        mappings: {x: 1.2.3}
description: {}
`
	path := writeTempConfig(t, cfg)
	if _, err := Load(path, nil); err == nil {
		t.Fatal("expected error for bad store_method")
	}
}

func TestLoadRejectsBadVersion(t *testing.T) {
	cfg := `
hosts:
  - hostname: r1
    version: "3"
modules: {}
description: {}
`
	path := writeTempConfig(t, cfg)
	if _, err := Load(path, nil); err == nil {
		t.Fatal("expected error for version 3")
	}
}

func TestLoadJoinGroup(t *testing.T) {
	cfg := `
hosts: []
modules:
  m1:
    labels:
      counters:
        type: walk
        store_method: value
        mappings: {x: 1.2.3}
      joined:
        type: join
        left_group: names
        left_join_key: ifindex
        right_group: counters
        right_join_key: ifindex
description: {}
`
	path := writeTempConfig(t, cfg)
	cfg2, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	join, ok := cfg2.Modules["m1"].Joins["joined"]
	if !ok {
		t.Fatalf("expected join group 'joined'")
	}
	if join.LeftGroup != "names" || join.RightGroup != "counters" {
		t.Errorf("unexpected join: %+v", join)
	}
	if _, ok := cfg2.Modules["m1"].Labels["joined"]; ok {
		t.Errorf("join group should not appear in Labels")
	}
}

func TestLoadUnresolvedModuleWarnsAndSkips(t *testing.T) {
	cfg := `
hosts:
  - hostname: r1
    modules: [missing_module]
modules: {}
description: {}
`
	path := writeTempConfig(t, cfg)
	loaded, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Hosts[0].Modules) != 0 {
		t.Errorf("expected unresolved module to be dropped, got %v", loaded.Hosts[0].Modules)
	}
}

func TestLoadInvalidFilterRegex(t *testing.T) {
	cfg := `
hosts: []
modules:
  m1:
    metrics:
      - type: get
        store_method: value
        mappings:
          x:
            oid: 1.2.3
            filter: "(unterminated"
description: {}
`
	path := writeTempConfig(t, cfg)
	if _, err := Load(path, nil); err == nil {
		t.Fatal("expected error for invalid filter regex")
	}
}
