package niches

import (
	"reflect"
	"testing"
)

func TestParseASINsTrimsAndDedupes(t *testing.T) {
	got := ParseASINs(" b000000001, B000000002,,B000000001 ,")
	want := []string{"B000000001", "B000000002"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("want=%v got=%v", want, got)
	}
	if got := ParseASINs(""); len(got) != 0 {
		t.Fatalf("want empty, got %v", got)
	}
}

func TestSetASINsRoundTrip(t *testing.T) {
	n := &Niche{}
	n.SetASINs([]string{"B000000002", "b000000001", "B000000002"})
	if n.ASINs != "B000000002,B000000001" {
		t.Fatalf("unexpected column value %q", n.ASINs)
	}
	if got := n.ASINList(); len(got) != 2 || got[0] != "B000000002" {
		t.Fatalf("unexpected list %v", got)
	}
}

func TestNewAnalysisRowCoversEveryCategory(t *testing.T) {
	seen := map[string]bool{}
	for _, c := range Categories {
		row, err := NewAnalysisRow(c)
		if err != nil {
			t.Fatalf("%s: %v", c, err)
		}
		if seen[row.TableName()] {
			t.Fatalf("duplicate table %s", row.TableName())
		}
		seen[row.TableName()] = true
	}
	if len(seen) != 8 {
		t.Fatalf("want 8 tables, got %d", len(seen))
	}
	if _, err := NewAnalysisRow("pricing"); err == nil {
		t.Fatalf("want error for unknown category")
	}
}

func TestProgressNormalize(t *testing.T) {
	p := Progress{Percentage: 140}
	p.Normalize()
	if p.Percentage != 100 {
		t.Fatalf("percentage = %d", p.Percentage)
	}
	if p.CompletedASINs == nil || p.FailedASINs == nil {
		t.Fatalf("lists should be non-nil after Normalize")
	}
	if Percent(1, 3) != 33 || Percent(2, 0) != 0 {
		t.Fatalf("Percent mismatch")
	}
}
