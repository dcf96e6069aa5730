package reporting

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/crlwatch/crlwatch/internal/status"
	"github.com/crlwatch/crlwatch/pkg/models"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testReportingConfig(dir string) models.ReportingConfig {
	return models.ReportingConfig{
		HTMLPath:   filepath.Join(dir, "output.html"),
		JSONPath:   filepath.Join(dir, "issuer_statuses.json"),
		Title:      "CRLite CRL Downloader Statuses",
		URLDisplay: 40,
	}
}

func testEntry(url, kind string, revocations int64, age string) models.AuditEntry {
	return models.AuditEntry{
		URL:            url,
		IssuerSubject:  "CN=Test CA",
		Kind:           kind,
		NumRevocations: models.RevocationCount{N: revocations, Valid: true},
		Age:            age,
		SHA256Sum:      "deadbeef",
	}
}

func rankedFixture() ([]models.Slot, []status.RankedIssuer) {
	slots := []models.Slot{
		{Date: "20250610", Gen: 0},
		{Date: "20250610", Gen: 1},
	}

	board := &models.StatusBoard{
		Timelines: make(map[string]*models.IssuerTimeline),
		Slots:     slots,
	}
	jumpy := models.NewIssuerTimeline("http://jumpy.example/crl", "CN=Test CA")
	e0 := testEntry("http://jumpy.example/crl", "Valid", 100, "10h0m0s")
	e1 := testEntry("http://jumpy.example/crl", "Warning: Expired", 500, "1h0m0s")
	jumpy.Entries[slots[0]] = &e0
	jumpy.Entries[slots[1]] = &e1
	board.Timelines[jumpy.URL] = jumpy

	gappy := models.NewIssuerTimeline("http://gappy.example/crl", "CN=Test CA")
	g0 := testEntry("http://gappy.example/crl", "Valid", 100, "1h0m0s")
	gappy.Entries[slots[0]] = &g0
	board.Timelines[gappy.URL] = gappy

	ranked := status.NewRanker(status.NewClassifier(336, 250)).Rank(board)
	return slots, ranked
}

func TestWriteHTML(t *testing.T) {
	dir := t.TempDir()
	slots, ranked := rankedFixture()
	logs := []models.LogStatus{
		{ShortURL: "ct.example/log", EntryLag: 1234, HasEntryLag: true, TimeDiffHours: 5.5, HasTimeDiff: true, TreeSize: 9999, Polled: true},
		{ShortURL: "down.example/log", PollError: "Failed to get STH"},
	}

	g, err := NewGenerator(testReportingConfig(dir), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := g.WriteHTML(slots, ranked, logs); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "output.html"))
	if err != nil {
		t.Fatal(err)
	}
	page := string(data)

	for _, want := range []string{
		"CRLite CRL Downloader Statuses",
		"http://jumpy.example/crl",
		"http://gappy.example/crl",
		"20250610-0",
		"20250610-1",
		colorWarning,
		colorMissing,
		"▲",
		"ct.example/log",
		"Failed to get STH",
	} {
		if !strings.Contains(page, want) {
			t.Errorf("report page missing %q", want)
		}
	}

	// Warning issuer sorts before the missing-data one.
	if strings.Index(page, "http://jumpy.example/crl") > strings.Index(page, "http://gappy.example/crl") {
		t.Error("issuers should render worst first")
	}
}

func TestBuildViewCellData(t *testing.T) {
	slots, ranked := rankedFixture()

	g, err := NewGenerator(testReportingConfig(t.TempDir()), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	view, err := g.BuildView(slots, ranked, nil)
	if err != nil {
		t.Fatal(err)
	}
	if view.Columns != 2 {
		t.Errorf("Columns = %d, want 2", view.Columns)
	}

	// ranked[0] is the warning issuer; its second cell carries the delta.
	var data cellData
	if err := json.Unmarshal([]byte(view.Issuers[0].Cells[1].Data), &data); err != nil {
		t.Fatalf("cell data is not valid JSON: %v", err)
	}
	if data.Kind != "Warning: Expired" {
		t.Errorf("Kind = %q", data.Kind)
	}
	if data.RevChange == nil || *data.RevChange != 400 {
		t.Errorf("RevChange = %v, want 400", data.RevChange)
	}
	if data.Anomaly != "rising" {
		t.Errorf("Anomaly = %q, want rising", data.Anomaly)
	}
	if view.Issuers[0].Cells[1].Marker != "▲" {
		t.Errorf("Marker = %q, want rising marker", view.Issuers[0].Cells[1].Marker)
	}

	// The gappy issuer's absent cell renders grey with no marker.
	absent := view.Issuers[1].Cells[1]
	if absent.Color != colorMissing || absent.Marker != "" {
		t.Errorf("absent cell = %+v", absent)
	}
}

func TestWriteJSON(t *testing.T) {
	dir := t.TempDir()
	_, ranked := rankedFixture()

	g, err := NewGenerator(testReportingConfig(dir), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := g.WriteJSON(ranked); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "issuer_statuses.json"))
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]struct {
		URL      string `json:"url"`
		Issuer   string `json:"issuer"`
		Severity string `json:"severity"`
		Statuses map[string]struct {
			Kind           string          `json:"kind"`
			NumRevocations json.RawMessage `json:"num_revocations"`
			Category       string          `json:"category"`
			RevChange      *int64          `json:"rev_change"`
			Anomaly        string          `json:"anomaly"`
		} `json:"statuses"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}

	jumpy, ok := out["http://jumpy.example/crl"]
	if !ok {
		t.Fatal("export missing the warning issuer")
	}
	if jumpy.Severity != "warning" {
		t.Errorf("Severity = %q, want warning", jumpy.Severity)
	}
	second, ok := jumpy.Statuses["20250610-1"]
	if !ok {
		t.Fatal("export missing the second slot")
	}
	if second.Category != "warning" || second.Anomaly != "rising" {
		t.Errorf("second slot = %+v", second)
	}
	if second.RevChange == nil || *second.RevChange != 400 {
		t.Errorf("RevChange = %v, want 400", second.RevChange)
	}

	gappy := out["http://gappy.example/crl"]
	if gappy.Severity != "missing-data" {
		t.Errorf("gappy severity = %q, want missing-data", gappy.Severity)
	}
	if _, ok := gappy.Statuses["20250610-1"]; ok {
		t.Error("absent slots must not appear in the export")
	}
}

func TestTruncateURL(t *testing.T) {
	long := "http://example.com/a/very/long/path/to/a/certificate/revocation/list.crl"
	got := truncateURL(long, 20)
	if got != long[:20]+"..." {
		t.Errorf("truncateURL = %q", got)
	}
	if truncateURL("short", 20) != "short" {
		t.Error("short URLs pass through unchanged")
	}
	if truncateURL(long, 0) != long {
		t.Error("zero max disables truncation")
	}
}
