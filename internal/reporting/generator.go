package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/crlwatch/crlwatch/internal/status"
	"github.com/crlwatch/crlwatch/pkg/models"
)

// Generator renders the aggregated run output: the static HTML heatmap and a
// machine-readable JSON export of every issuer's statuses.
type Generator struct {
	config models.ReportingConfig
	logger *logrus.Logger
	tm     *TemplateManager
}

func NewGenerator(config models.ReportingConfig, logger *logrus.Logger) (*Generator, error) {
	if logger == nil {
		logger = logrus.New()
	}
	tm := NewTemplateManager()
	if err := tm.Register("heatmap", heatmapTemplate, nil); err != nil {
		return nil, fmt.Errorf("register heatmap template: %w", err)
	}
	return &Generator{config: config, logger: logger, tm: tm}, nil
}

type heatmapView struct {
	Title   string
	Columns int
	Slots   []string
	Issuers []issuerRow
	Logs    []logRow
}

type issuerRow struct {
	URL        string
	DisplayURL string
	Subject    string
	Severity   string
	Cells      []cellView
}

type cellView struct {
	Color  string
	Marker string
	Data   string
}

type logRow struct {
	ShortURL string
	EntryLag string
	TimeDiff string
	TreeSize string
	Ratio    string
	Error    string
	Failed   bool
}

// cellData is the per-cell metadata embedded in the page. It carries every
// input to the classification decision so the report can be audited without
// re-running the aggregation.
type cellData struct {
	URL         string                  `json:"url"`
	Date        string                  `json:"date"`
	Issuer      string                  `json:"issuer,omitempty"`
	Kind        string                  `json:"kind,omitempty"`
	Errors      string                  `json:"errors,omitempty"`
	Revocations *models.RevocationCount `json:"revocations,omitempty"`
	RevChange   *int64                  `json:"rev_change,omitempty"`
	Age         string                  `json:"age,omitempty"`
	SHA256Sum   string                  `json:"sha256sum,omitempty"`
	Category    string                  `json:"category,omitempty"`
	Stale       bool                    `json:"stale,omitempty"`
	Anomaly     string                  `json:"anomaly,omitempty"`
}

const (
	colorValid   = "#90EE90"
	colorWarning = "#FFEB3B"
	colorError   = "#FFB6C1"
	colorMissing = "#f0f0f0"
)

func cellColor(cell status.Cell) string {
	if !cell.Present {
		return colorMissing
	}
	switch cell.Category {
	case models.HealthValid:
		if cell.Stale {
			return colorWarning
		}
		return colorValid
	case models.HealthWarning:
		return colorWarning
	default:
		return colorError
	}
}

func cellMarker(cell status.Cell) string {
	switch cell.Anomaly {
	case models.AnomalyRising:
		return "▲"
	case models.AnomalyFalling:
		return "▼"
	default:
		return ""
	}
}

func truncateURL(url string, max int) string {
	if max <= 0 || len(url) <= max {
		return url
	}
	return url[:max] + "..."
}

// BuildView assembles the template view from ranked issuers and log records.
func (g *Generator) BuildView(slots []models.Slot, ranked []status.RankedIssuer, logs []models.LogStatus) (*heatmapView, error) {
	view := &heatmapView{
		Title:   g.config.Title,
		Columns: len(slots),
	}
	for _, slot := range slots {
		view.Slots = append(view.Slots, slot.String())
	}

	for _, issuer := range ranked {
		row := issuerRow{
			URL:        issuer.URL,
			DisplayURL: truncateURL(issuer.URL, g.config.URLDisplay),
			Subject:    issuer.Subject,
			Severity:   issuer.Severity.String(),
		}
		for _, cell := range issuer.Cells {
			data := cellData{URL: issuer.URL, Date: cell.Slot.String()}
			if cell.Present {
				data.Issuer = issuer.Subject
				data.Kind = cell.Entry.Kind
				data.Errors = cell.Entry.Errors
				data.Revocations = &cell.Entry.NumRevocations
				data.Age = cell.Entry.Age
				data.SHA256Sum = cell.Entry.SHA256Sum
				data.Category = cell.Category.String()
				data.Stale = cell.Stale
				if cell.HasDelta {
					delta := cell.Delta
					data.RevChange = &delta
				}
				if cell.Anomaly != models.AnomalyNone {
					data.Anomaly = cell.Anomaly.String()
				}
			}
			encoded, err := json.Marshal(data)
			if err != nil {
				return nil, fmt.Errorf("encode cell data for %s %s: %w", issuer.URL, cell.Slot, err)
			}
			row.Cells = append(row.Cells, cellView{
				Color:  cellColor(cell),
				Marker: cellMarker(cell),
				Data:   string(encoded),
			})
		}
		view.Issuers = append(view.Issuers, row)
	}

	for _, lg := range logs {
		row := logRow{
			ShortURL: lg.ShortURL,
			EntryLag: "N/A",
			TimeDiff: "N/A",
			TreeSize: "N/A",
			Ratio:    "N/A",
			Error:    lg.PollError,
			Failed:   lg.PollError != "",
		}
		if lg.HasEntryLag {
			row.EntryLag = strconv.FormatInt(lg.EntryLag, 10)
		}
		if lg.HasTimeDiff {
			row.TimeDiff = fmt.Sprintf("%+.2fh", lg.TimeDiffHours)
		}
		if lg.Polled {
			row.TreeSize = strconv.FormatInt(lg.TreeSize, 10)
		}
		if lg.HasRatio {
			row.Ratio = fmt.Sprintf("%.2f%%", lg.IngestRatio)
		}
		view.Logs = append(view.Logs, row)
	}

	return view, nil
}

// WriteHTML renders the heatmap page to the configured path.
func (g *Generator) WriteHTML(slots []models.Slot, ranked []status.RankedIssuer, logs []models.LogStatus) error {
	view, err := g.BuildView(slots, ranked, logs)
	if err != nil {
		return err
	}

	start := time.Now()
	tpl := g.tm.MustGet("heatmap")
	if err := g.writeAtomic(g.config.HTMLPath, func(f *os.File) error {
		return tpl.Execute(f, view)
	}); err != nil {
		return fmt.Errorf("render heatmap: %w", err)
	}

	g.logger.Infof("Report written to %s in %v", g.config.HTMLPath, time.Since(start).Round(time.Millisecond))
	return nil
}

type slotExport struct {
	Kind           string                 `json:"kind"`
	NumRevocations models.RevocationCount `json:"num_revocations"`
	Errors         string                 `json:"errors"`
	Age            string                 `json:"age"`
	SHA256Sum      string                 `json:"sha256sum"`
	Category       string                 `json:"category"`
	Stale          bool                   `json:"stale"`
	RevChange      *int64                 `json:"rev_change,omitempty"`
	Anomaly        string                 `json:"anomaly,omitempty"`
}

type issuerExport struct {
	URL      string                `json:"url"`
	Issuer   string                `json:"issuer"`
	Severity string                `json:"severity"`
	Statuses map[string]slotExport `json:"statuses"`
}

// WriteJSON exports the aggregated issuer statuses, including their
// classification results, next to the HTML report.
func (g *Generator) WriteJSON(ranked []status.RankedIssuer) error {
	if g.config.JSONPath == "" {
		return nil
	}

	out := make(map[string]issuerExport, len(ranked))
	for _, issuer := range ranked {
		exp := issuerExport{
			URL:      issuer.URL,
			Issuer:   issuer.Subject,
			Severity: issuer.Severity.String(),
			Statuses: make(map[string]slotExport),
		}
		for _, cell := range issuer.Cells {
			if !cell.Present {
				continue
			}
			se := slotExport{
				Kind:           cell.Entry.Kind,
				NumRevocations: cell.Entry.NumRevocations,
				Errors:         cell.Entry.Errors,
				Age:            cell.Entry.Age,
				SHA256Sum:      cell.Entry.SHA256Sum,
				Category:       cell.Category.String(),
				Stale:          cell.Stale,
			}
			if cell.HasDelta {
				delta := cell.Delta
				se.RevChange = &delta
			}
			if cell.Anomaly != models.AnomalyNone {
				se.Anomaly = cell.Anomaly.String()
			}
			exp.Statuses[cell.Slot.String()] = se
		}
		out[issuer.URL] = exp
	}

	if err := g.writeAtomic(g.config.JSONPath, func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}); err != nil {
		return fmt.Errorf("write issuer statuses: %w", err)
	}

	g.logger.Infof("Issuer statuses written to %s", g.config.JSONPath)
	return nil
}

func (g *Generator) writeAtomic(path string, write func(*os.File) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if err := write(tmp); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}
