package status

import (
	"github.com/crlwatch/crlwatch/pkg/models"
)

// Cell is the classification of one (issuer, slot) grid position. Present is
// false for slots the issuer has no data in; such cells render distinctly
// from present-but-erroring ones and reset the revocation-delta baseline.
type Cell struct {
	Slot    models.Slot
	Present bool
	Entry   *models.AuditEntry

	Category models.HealthCategory
	Stale    bool

	Delta    int64
	HasDelta bool
	Anomaly  models.AnomalyDirection
}

// Classifier maps audit entries to health cells. Thresholds are injected so
// the policy stays testable; zero values fall back to the defaults the
// snapshot source has always been judged against.
type Classifier struct {
	StaleAgeHours    int
	AnomalyThreshold int64
}

func NewClassifier(staleAgeHours int, anomalyThreshold int64) Classifier {
	if staleAgeHours <= 0 {
		staleAgeHours = 336
	}
	if anomalyThreshold <= 0 {
		anomalyThreshold = 250
	}
	return Classifier{StaleAgeHours: staleAgeHours, AnomalyThreshold: anomalyThreshold}
}

// Classify evaluates a single entry against the revocation count of the
// issuer's immediately preceding present slot. A nil baseline means there is
// no comparison point, so no delta and no anomaly can arise.
func (c Classifier) Classify(slot models.Slot, entry *models.AuditEntry, baseline *int64) Cell {
	cell := Cell{Slot: slot}
	if entry == nil {
		return cell
	}

	cell.Present = true
	cell.Entry = entry
	cell.Category = models.ParseKind(entry.Kind)

	if cell.Category == models.HealthValid {
		// Unparseable ages fail open to not-stale.
		if hours, ok := models.AgeHours(entry.Age); ok && hours > c.StaleAgeHours {
			cell.Stale = true
		}
	}

	if baseline != nil && entry.NumRevocations.Valid {
		cell.Delta = entry.NumRevocations.N - *baseline
		cell.HasDelta = true
		switch {
		case cell.Delta > c.AnomalyThreshold:
			cell.Anomaly = models.AnomalyRising
		case cell.Delta < -c.AnomalyThreshold:
			cell.Anomaly = models.AnomalyFalling
		}
	}

	return cell
}

// Timeline classifies every slot of an issuer's timeline in order, threading
// the delta baseline through adjacent present slots. Missing slots and
// non-integer counts both reset the baseline rather than bridging it.
func (c Classifier) Timeline(t *models.IssuerTimeline, slots []models.Slot) []Cell {
	cells := make([]Cell, 0, len(slots))
	var baseline *int64
	for _, slot := range slots {
		entry := t.Entry(slot)
		cells = append(cells, c.Classify(slot, entry, baseline))

		if entry != nil && entry.NumRevocations.Valid {
			n := entry.NumRevocations.N
			baseline = &n
		} else {
			baseline = nil
		}
	}
	return cells
}
