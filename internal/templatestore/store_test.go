package templatestore

import "testing"

func TestResolveCommunityNoTemplate(t *testing.T) {
	s := New()
	rows := s.ResolveCommunity("r1", "if_stats", "", "{community}@{template}", "public")
	if len(rows) != 1 || rows[0].Community != "public" {
		t.Fatalf("got %+v", rows)
	}
	if rows[0].TemplateName != "" || rows[0].TemplateValue != "" {
		t.Errorf("expected empty template identity, got %+v", rows[0])
	}
}

func TestResolveCommunityMissingCacheEntry(t *testing.T) {
	s := New()
	rows := s.ResolveCommunity("r1", "if_stats", "vrf", "{community}@{template}", "public")
	if len(rows) != 1 || rows[0].Community != "public" {
		t.Fatalf("got %+v", rows)
	}
}

func TestResolveCommunityGetType(t *testing.T) {
	s := New()
	s.SetLabel("r1", "if_stats", "vrf", "blue", nil)
	rows := s.ResolveCommunity("r1", "if_stats", "vrf", "{community}@{template}", "public")
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].Community != "public@blue" {
		t.Errorf("got %q", rows[0].Community)
	}
	if rows[0].TemplateValue != "blue" {
		t.Errorf("got template value %q", rows[0].TemplateValue)
	}
}

func TestResolveCommunityWalkType(t *testing.T) {
	s := New()
	i0, i1 := "0", "1"
	s.SetLabel("r1", "if_stats", "vrf", "blue", &i0)
	s.SetLabel("r1", "if_stats", "vrf", "red", &i1)
	rows := s.ResolveCommunity("r1", "if_stats", "vrf", "{community}@{template}", "public")
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %+v", rows)
	}
	communities := map[string]bool{rows[0].Community: true, rows[1].Community: true}
	if !communities["public@blue"] || !communities["public@red"] {
		t.Errorf("got %+v", rows)
	}
}

func TestSetLabelOverwritesWalkIndexWithoutDeletingOthers(t *testing.T) {
	s := New()
	i0 := "0"
	s.SetLabel("r1", "if_stats", "vrf", "blue", &i0)
	s.SetLabel("r1", "if_stats", "vrf", "green", &i0)
	i1 := "1"
	s.SetLabel("r1", "if_stats", "vrf", "red", &i1)

	rows := s.ResolveCommunity("r1", "if_stats", "vrf", "{template}", "public")
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d: %+v", len(rows), rows)
	}
}

func TestDumpIsDeterministic(t *testing.T) {
	s := New()
	i0 := "0"
	s.SetLabel("r1", "if_stats", "vrf", "blue", &i0)
	s.SetLabel("r2", "if_stats", "vrf", "red", nil)
	d1 := s.Dump()
	d2 := s.Dump()
	if d1 != d2 {
		t.Errorf("Dump should be deterministic, got %q vs %q", d1, d2)
	}
}
