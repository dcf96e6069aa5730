package status

import (
	"sort"
	"strings"

	"github.com/crlwatch/crlwatch/pkg/models"
)

// Severity is the worst condition observed anywhere in an issuer's timeline.
// It exists only to order the display, worst first.
type Severity int

const (
	SeverityNone        Severity = 0
	SeverityAnomaly     Severity = 1
	SeverityMissingData Severity = 2
	SeverityWarning     Severity = 3
	SeverityError       Severity = 4
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityMissingData:
		return "missing-data"
	case SeverityAnomaly:
		return "anomaly"
	default:
		return "none"
	}
}

// RankedIssuer pairs an issuer with its classified cells and worst severity.
type RankedIssuer struct {
	URL      string
	Subject  string
	Severity Severity
	Cells    []Cell
}

// Ranker orders issuers so the worst problems surface at the top of the
// report.
type Ranker struct {
	classifier Classifier
}

func NewRanker(classifier Classifier) *Ranker {
	return &Ranker{classifier: classifier}
}

func cellSeverity(cell Cell) Severity {
	if !cell.Present {
		return SeverityNone
	}
	switch cell.Category {
	case models.HealthError:
		return SeverityError
	case models.HealthWarning:
		return SeverityWarning
	}
	if cell.Anomaly != models.AnomalyNone {
		return SeverityAnomaly
	}
	return SeverityNone
}

// severityOf scans the classified cells for the worst condition, adding the
// missing-data tier when the issuer covers fewer slots than expected.
func severityOf(cells []Cell, present, expected int) Severity {
	worst := SeverityNone
	for _, cell := range cells {
		if s := cellSeverity(cell); s > worst {
			worst = s
		}
	}
	if present < expected && worst < SeverityMissingData {
		worst = SeverityMissingData
	}
	return worst
}

// Rank classifies every issuer timeline and returns issuers ordered by
// (descending severity, ascending case-insensitive URL). The ordering is
// deterministic: ties after case folding break on the raw URL.
func (r *Ranker) Rank(board *models.StatusBoard) []RankedIssuer {
	expected := len(board.Slots)
	ranked := make([]RankedIssuer, 0, len(board.Timelines))

	for _, url := range board.IssuerURLs() {
		tl := board.Timelines[url]
		cells := r.classifier.Timeline(tl, board.Slots)
		ranked = append(ranked, RankedIssuer{
			URL:      tl.URL,
			Subject:  tl.Subject,
			Severity: severityOf(cells, tl.PresentSlots(), expected),
			Cells:    cells,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Severity != ranked[j].Severity {
			return ranked[i].Severity > ranked[j].Severity
		}
		li, lj := strings.ToLower(ranked[i].URL), strings.ToLower(ranked[j].URL)
		if li != lj {
			return li < lj
		}
		return ranked[i].URL < ranked[j].URL
	})

	return ranked
}
