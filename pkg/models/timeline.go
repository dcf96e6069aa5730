package models

import "sort"

// IssuerTimeline holds one issuer's audit entries keyed by slot. Not every
// slot needs to be present; a missing slot means the source published no
// fresh data for that issuer, which renders differently from a present entry
// that reports an error.
type IssuerTimeline struct {
	URL     string               `json:"url"`
	Subject string               `json:"issuer"`
	Entries map[Slot]*AuditEntry `json:"-"`
}

func NewIssuerTimeline(url, subject string) *IssuerTimeline {
	return &IssuerTimeline{
		URL:     url,
		Subject: subject,
		Entries: make(map[Slot]*AuditEntry),
	}
}

// Entry returns the issuer's audit entry for the slot, or nil when absent.
func (t *IssuerTimeline) Entry(slot Slot) *AuditEntry {
	return t.Entries[slot]
}

// PresentSlots counts the slots for which the issuer has data.
func (t *IssuerTimeline) PresentSlots() int {
	return len(t.Entries)
}

// StatusBoard is the result of folding every cached snapshot into per-issuer
// timelines. Slots is the canonical column order, including slots that
// yielded no data, so the display grid stays uniform.
type StatusBoard struct {
	Timelines map[string]*IssuerTimeline
	Slots     []Slot
}

// IssuerURLs returns the issuer keys in ascending order. Deterministic
// iteration keeps repeated runs over the same snapshot set byte-identical.
func (b *StatusBoard) IssuerURLs() []string {
	urls := make([]string, 0, len(b.Timelines))
	for u := range b.Timelines {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}
