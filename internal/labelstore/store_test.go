package labelstore

import (
	"testing"

	"github.com/netmetrics/snmp-label-exporter/models"
)

func idx(s string) *string { return &s }

func TestSetLabelAndResolveGroup(t *testing.T) {
	s := New()
	s.SetLabel("r1", "if_stats", "names", "ifDescr", "eth0", "", "", idx("1"))
	s.SetLabel("r1", "if_stats", "names", "ifDescr", "eth1", "", "", idx("2"))

	got, ok := s.ResolveGroup("r1", "if_stats", "names", "", "", idx("1"))
	if !ok {
		t.Fatal("expected ok")
	}
	if got["ifDescr"] != "eth0" {
		t.Errorf("got %+v", got)
	}
}

func TestResolveGroupMissingIndexReturnsEmpty(t *testing.T) {
	s := New()
	s.SetLabel("r1", "if_stats", "names", "ifDescr", "eth0", "", "", idx("1"))
	_, ok := s.ResolveGroup("r1", "if_stats", "names", "", "", idx("99"))
	if ok {
		t.Fatal("expected missing index to poison resolution")
	}
}

func TestResolveGroupUnknownGroupReturnsEmpty(t *testing.T) {
	s := New()
	_, ok := s.ResolveGroup("r1", "if_stats", "nosuchgroup", "", "", idx("1"))
	if ok {
		t.Fatal("expected unknown group to return ok=false")
	}
}

func TestInvalidateCacheShrinkOnly(t *testing.T) {
	s := New()
	s.SetLabel("r1", "if_stats", "names", "ifDescr", "a", "", "", idx("a"))
	s.SetLabel("r1", "if_stats", "names", "ifDescr", "b", "", "", idx("b"))
	s.SetLabel("r1", "if_stats", "names", "ifDescr", "c", "", "", idx("c"))

	s.InvalidateCache("r1", "if_stats", "names", "", "", map[string]bool{"b": true, "d": true})

	if _, ok := s.ResolveGroup("r1", "if_stats", "names", "", "", idx("a")); ok {
		t.Error("expected index 'a' to be invalidated")
	}
	if _, ok := s.ResolveGroup("r1", "if_stats", "names", "", "", idx("d")); ok {
		t.Error("expected index 'd' (never written) to remain absent")
	}
	got, ok := s.ResolveGroup("r1", "if_stats", "names", "", "", idx("b"))
	if !ok || got["ifDescr"] != "b" {
		t.Errorf("expected index 'b' to be preserved, got %+v ok=%v", got, ok)
	}
}

func TestJoinResolution(t *testing.T) {
	s := New()
	s.SetJoin("if_stats", "ifaces", models.JoinSpec{
		LeftGroup: "names", LeftJoinKey: "ifindex",
		RightGroup: "counters", RightJoinKey: "ifindex",
	})

	s.SetLabel("r1", "if_stats", "names", "ifindex", "5", "", "", idx("a"))
	s.SetLabel("r1", "if_stats", "names", "ifDescr", "eth0", "", "", idx("a"))

	s.SetLabel("r1", "if_stats", "counters", "ifindex", "5", "", "", idx("x"))
	s.SetLabel("r1", "if_stats", "counters", "ifHCInOctets", "12345", "", "", idx("x"))

	got, ok := s.ResolveJoin("r1", "if_stats", "ifaces", "", "", idx("a"))
	if !ok {
		t.Fatal("expected join to resolve")
	}
	if got["ifDescr"] != "eth0" || got["ifHCInOctets"] != "12345" {
		t.Errorf("got %+v", got)
	}
}

func TestJoinResolutionNoMatch(t *testing.T) {
	s := New()
	s.SetJoin("if_stats", "ifaces", models.JoinSpec{
		LeftGroup: "names", LeftJoinKey: "ifindex",
		RightGroup: "counters", RightJoinKey: "ifindex",
	})
	s.SetLabel("r1", "if_stats", "names", "ifindex", "5", "", "", idx("a"))
	s.SetLabel("r1", "if_stats", "counters", "ifindex", "6", "", "", idx("x"))

	_, ok := s.ResolveJoin("r1", "if_stats", "ifaces", "", "", idx("a"))
	if ok {
		t.Fatal("expected no match to return ok=false")
	}
}

func TestResolveLabelGroupRefsTemplateShortcut(t *testing.T) {
	s := New()
	out := s.ResolveLabelGroupRefs("r1", "if_stats", []string{"__template_label"}, "vrf", "blue", nil)
	if out["vrf"] != "blue" {
		t.Errorf("got %+v", out)
	}
}

func TestResolveLabelGroupRefsMerge(t *testing.T) {
	s := New()
	s.SetLabel("r1", "if_stats", "names", "ifDescr", "eth0", "", "", idx("1"))
	out := s.ResolveLabelGroupRefs("r1", "if_stats", []string{"names"}, "", "", idx("1"))
	if out["ifDescr"] != "eth0" {
		t.Errorf("got %+v", out)
	}
}

func TestResolveLabelGroupRefsPoisonsOnEmpty(t *testing.T) {
	s := New()
	s.SetLabel("r1", "if_stats", "names", "ifDescr", "eth0", "", "", idx("1"))
	out := s.ResolveLabelGroupRefs("r1", "if_stats", []string{"names", "missing_group"}, "", "", idx("1"))
	if len(out) != 0 {
		t.Errorf("expected poisoned (empty) result, got %+v", out)
	}
}
