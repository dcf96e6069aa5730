package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Slot identifies one expected snapshot: a calendar day plus a generation
// index (two file generations are published per day).
type Slot struct {
	Date string `json:"date" yaml:"date"` // YYYYMMDD
	Gen  int    `json:"gen"  yaml:"gen"`  // 0 or 1
}

func NewSlot(day time.Time, gen int) Slot {
	return Slot{Date: day.Format("20060102"), Gen: gen}
}

// String renders the slot the way the snapshot source names its directories,
// e.g. "20250610-1".
func (s Slot) String() string {
	return fmt.Sprintf("%s-%d", s.Date, s.Gen)
}

func (s Slot) Less(other Slot) bool {
	if s.Date != other.Date {
		return s.Date < other.Date
	}
	return s.Gen < other.Gen
}

// ParseSlot parses a "YYYYMMDD-N" identifier back into a Slot.
func ParseSlot(id string) (Slot, error) {
	date, gen, ok := strings.Cut(id, "-")
	if !ok || len(date) != 8 {
		return Slot{}, fmt.Errorf("invalid slot identifier %q", id)
	}
	if _, err := time.Parse("20060102", date); err != nil {
		return Slot{}, fmt.Errorf("invalid slot date %q: %w", date, err)
	}
	g, err := strconv.Atoi(gen)
	if err != nil || g < 0 {
		return Slot{}, fmt.Errorf("invalid slot generation %q", gen)
	}
	return Slot{Date: date, Gen: g}, nil
}

// RevocationCount carries the upstream NumRevocations field, which may be an
// integer, a placeholder string such as "N/A", or absent entirely. Only
// integral values participate in delta computations.
type RevocationCount struct {
	N     int64
	Valid bool
}

func (r *RevocationCount) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		r.N = n
		r.Valid = true
		return nil
	}
	// Non-numeric values (strings, null) never fail the decode; they just
	// carry no count.
	r.N = 0
	r.Valid = false
	return nil
}

func (r RevocationCount) MarshalJSON() ([]byte, error) {
	if !r.Valid {
		return []byte(`"N/A"`), nil
	}
	return json.Marshal(r.N)
}

// AuditEntry is one issuer's audit outcome in one snapshot slot, as published
// by the snapshot source.
type AuditEntry struct {
	URL            string          `json:"Url"`
	IssuerSubject  string          `json:"IssuerSubject"`
	Kind           string          `json:"Kind"`
	NumRevocations RevocationCount `json:"NumRevocations"`
	Errors         string          `json:"Errors"`
	Age            string          `json:"Age"`
	SHA256Sum      string          `json:"SHA256Sum"`
}

// HealthCategory is the closed health classification derived from the
// upstream free-text Kind label at the ingestion boundary. Downstream logic
// switches on this, never on substring search.
type HealthCategory int

const (
	HealthValid HealthCategory = iota
	HealthWarning
	HealthError
)

func (c HealthCategory) String() string {
	switch c {
	case HealthValid:
		return "valid"
	case HealthWarning:
		return "warning"
	default:
		return "error"
	}
}

func (c HealthCategory) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// ParseKind maps the upstream Kind vocabulary onto a HealthCategory.
// Matching is case-insensitive on substrings; unknown kinds classify as
// error, the conservative reading of an unenumerated vocabulary.
func ParseKind(kind string) HealthCategory {
	k := strings.ToLower(kind)
	switch {
	case strings.Contains(k, "valid"), strings.Contains(k, "empty"):
		return HealthValid
	case strings.Contains(k, "warning"):
		return HealthWarning
	default:
		return HealthError
	}
}

// IsNotFresh reports whether the entry carries the "Not Fresh" marker and
// therefore represents no new information for its slot.
func IsNotFresh(kind string) bool {
	return strings.Contains(strings.ToLower(kind), "not fresh")
}

// AgeHours extracts the whole-hour component from an upstream age string such
// as "1659h12m26.81016978s". A value that cannot be parsed reports ok=false;
// callers treat that as not-stale.
func AgeHours(age string) (int, bool) {
	h, _, found := strings.Cut(age, "h")
	if !found {
		return 0, false
	}
	n, err := strconv.Atoi(h)
	if err != nil {
		return 0, false
	}
	return n, true
}

// AnomalyDirection marks a significant revocation-count jump between two
// adjacent present slots.
type AnomalyDirection int

const (
	AnomalyNone AnomalyDirection = iota
	AnomalyRising
	AnomalyFalling
)

func (a AnomalyDirection) String() string {
	switch a {
	case AnomalyRising:
		return "rising"
	case AnomalyFalling:
		return "falling"
	default:
		return "none"
	}
}

func (a AnomalyDirection) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}
