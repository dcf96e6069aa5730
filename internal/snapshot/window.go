package snapshot

import (
	"fmt"
	"sort"
	"time"

	"github.com/crlwatch/crlwatch/pkg/models"
)

// Window describes the expected sliding set of snapshot slots: the most
// recent Days calendar days counting back from a reference time, with
// PerDay file generations each. The reference time is an explicit parameter
// so the windowing stays testable with fixed dates.
type Window struct {
	Days   int
	PerDay int
}

// Slots returns every expected slot, sorted ascending by date then
// generation. The set slides forward as now advances; slots that fall out of
// it become eligible for cache reconciliation.
func (w Window) Slots(now time.Time) []models.Slot {
	slots := make([]models.Slot, 0, w.Days*w.PerDay)
	for i := 0; i < w.Days; i++ {
		day := now.AddDate(0, 0, -i)
		for gen := 0; gen < w.PerDay; gen++ {
			slots = append(slots, models.NewSlot(day, gen))
		}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Less(slots[j]) })
	return slots
}

// Contains reports whether the slot belongs to the window anchored at now.
func (w Window) Contains(now time.Time, slot models.Slot) bool {
	for _, s := range w.Slots(now) {
		if s == slot {
			return true
		}
	}
	return false
}

// SlotURL builds the retrieval URL for one slot's audit file, e.g.
// {base}/20250610-1/crl-audit.json.
func SlotURL(baseURL, auditFile string, slot models.Slot) string {
	return fmt.Sprintf("%s/%s/%s", baseURL, slot, auditFile)
}
