package status

import (
	"testing"

	"github.com/crlwatch/crlwatch/pkg/models"
)

func timelineOf(url string, slots []models.Slot, entries map[models.Slot]models.AuditEntry) *models.IssuerTimeline {
	tl := models.NewIssuerTimeline(url, "CN=Test")
	for slot, e := range entries {
		e := e
		tl.Entries[slot] = &e
	}
	return tl
}

func TestClassifyStaleness(t *testing.T) {
	c := NewClassifier(336, 250)
	slot := models.Slot{Date: "20250610", Gen: 0}

	tests := []struct {
		name      string
		kind      string
		age       string
		wantStale bool
	}{
		{"fresh valid", "Valid", "335h59m0s", false},
		{"at threshold", "Valid", "336h0m0s", false},
		{"past threshold", "Valid", "337h0m0s", true},
		{"warning never stale", "Warning: Expired", "500h0m0s", false},
		{"error never stale", "Download Timeout", "500h0m0s", false},
		{"unparseable age fails open", "Valid", "garbage", false},
		{"empty age fails open", "Valid", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := entry("http://a.example/crl", "CN=A", tt.kind, 100, tt.age)
			cell := c.Classify(slot, &e, nil)
			if cell.Stale != tt.wantStale {
				t.Errorf("Stale = %v, want %v", cell.Stale, tt.wantStale)
			}
		})
	}
}

func TestClassifyAnomalyThreshold(t *testing.T) {
	c := NewClassifier(336, 250)
	slot := models.Slot{Date: "20250610", Gen: 1}
	baseline := int64(1000)

	tests := []struct {
		name  string
		count int64
		want  models.AnomalyDirection
	}{
		{"at threshold up", 1250, models.AnomalyNone},
		{"just past threshold up", 1251, models.AnomalyRising},
		{"at threshold down", 750, models.AnomalyNone},
		{"just past threshold down", 749, models.AnomalyFalling},
		{"no change", 1000, models.AnomalyNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := entry("http://a.example/crl", "CN=A", "Valid", tt.count, "1h0m0s")
			cell := c.Classify(slot, &e, &baseline)
			if cell.Anomaly != tt.want {
				t.Errorf("Anomaly = %v, want %v", cell.Anomaly, tt.want)
			}
			if !cell.HasDelta || cell.Delta != tt.count-baseline {
				t.Errorf("Delta = (%d, %v), want (%d, true)", cell.Delta, cell.HasDelta, tt.count-baseline)
			}
		})
	}
}

func TestTimelineBaselineResets(t *testing.T) {
	c := NewClassifier(336, 250)
	slots := []models.Slot{
		{Date: "20250608", Gen: 0},
		{Date: "20250608", Gen: 1},
		{Date: "20250609", Gen: 0},
	}

	// Middle slot missing: the third slot must not compare against the
	// first even though the counts differ by far more than the threshold.
	tl := timelineOf("http://a.example/crl", slots, map[models.Slot]models.AuditEntry{
		slots[0]: entry("http://a.example/crl", "CN=A", "Valid", 100, "1h0m0s"),
		slots[2]: entry("http://a.example/crl", "CN=A", "Valid", 5000, "1h0m0s"),
	})

	cells := c.Timeline(tl, slots)
	if cells[2].HasDelta {
		t.Error("gap in the timeline should reset the delta baseline")
	}
	if cells[2].Anomaly != models.AnomalyNone {
		t.Error("no anomaly can arise across a gap")
	}
}

func TestTimelineInvalidCountResetsBaseline(t *testing.T) {
	c := NewClassifier(336, 250)
	slots := []models.Slot{
		{Date: "20250608", Gen: 0},
		{Date: "20250608", Gen: 1},
		{Date: "20250609", Gen: 0},
	}

	na := entry("http://a.example/crl", "CN=A", "Valid", 0, "1h0m0s")
	na.NumRevocations = models.RevocationCount{}

	tl := timelineOf("http://a.example/crl", slots, map[models.Slot]models.AuditEntry{
		slots[0]: entry("http://a.example/crl", "CN=A", "Valid", 100, "1h0m0s"),
		slots[1]: na,
		slots[2]: entry("http://a.example/crl", "CN=A", "Valid", 5000, "1h0m0s"),
	})

	cells := c.Timeline(tl, slots)
	if cells[1].HasDelta {
		t.Error("non-integer count has no delta")
	}
	if cells[2].HasDelta {
		t.Error("non-integer count resets the baseline for the next slot")
	}
}

func TestTimelineAdjacentDelta(t *testing.T) {
	c := NewClassifier(336, 250)
	slots := []models.Slot{
		{Date: "20250608", Gen: 0},
		{Date: "20250608", Gen: 1},
	}

	tl := timelineOf("http://a.example/crl", slots, map[models.Slot]models.AuditEntry{
		slots[0]: entry("http://a.example/crl", "CN=A", "Valid", 100, "10h0m0s"),
		slots[1]: entry("http://a.example/crl", "CN=A", "Warning: Expired", 500, "1h0m0s"),
	})

	cells := c.Timeline(tl, slots)
	if cells[0].HasDelta {
		t.Error("first slot has no baseline")
	}
	if !cells[1].HasDelta || cells[1].Delta != 400 {
		t.Errorf("second slot delta = (%d, %v), want (400, true)", cells[1].Delta, cells[1].HasDelta)
	}
	if cells[1].Anomaly != models.AnomalyRising {
		t.Errorf("delta +400 past threshold 250 should flag rising, got %v", cells[1].Anomaly)
	}
	if cells[1].Category != models.HealthWarning {
		t.Errorf("Category = %v, want warning", cells[1].Category)
	}
}
