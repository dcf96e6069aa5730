package snapshot

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/crlwatch/crlwatch/pkg/models"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

const sampleDoc = `[
  {"Url":"http://crl.example.com/a.crl","IssuerSubject":"CN=Example CA","Kind":"Valid","NumRevocations":100,"Age":"10h5m0s","SHA256Sum":"abc"},
  {"Url":"http://crl.example.com/b.crl","IssuerSubject":"CN=Other CA","Kind":"Warning: Expired","NumRevocations":"N/A","Age":"400h0m0s","SHA256Sum":"def"}
]`

func TestCacheWriteReadRoundtrip(t *testing.T) {
	cache, err := NewCache(t.TempDir(), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	slot := models.Slot{Date: "20250610", Gen: 0}

	if cache.Has(slot) {
		t.Fatal("fresh cache should not contain the slot")
	}
	if err := cache.Write(slot, []byte(sampleDoc)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !cache.Has(slot) {
		t.Fatal("cache should contain the slot after Write")
	}

	entries, err := cache.Read(slot)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].URL != "http://crl.example.com/a.crl" {
		t.Errorf("entries[0].URL = %q", entries[0].URL)
	}
	if !entries[0].NumRevocations.Valid || entries[0].NumRevocations.N != 100 {
		t.Errorf("entries[0].NumRevocations = %+v", entries[0].NumRevocations)
	}
	if entries[1].NumRevocations.Valid {
		t.Error("N/A revocation count should not be valid")
	}
}

func TestDecodeEntriesShapes(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    int
		wantErr bool
	}{
		{"bare array", sampleDoc, 2, false},
		{"wrapped object", `{"Entries":` + sampleDoc + `}`, 2, false},
		{"empty array", `[]`, 0, false},
		{"object without entries", `{}`, 0, false},
		{"garbage", `<html>not found</html>`, 0, true},
		{"truncated", `[{"Url":"x"`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := DecodeEntries([]byte(tt.payload))
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(entries) != tt.want {
				t.Errorf("got %d entries, want %d", len(entries), tt.want)
			}
		})
	}
}

func TestCacheReconcile(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewCache(dir, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	keep := models.Slot{Date: "20250610", Gen: 0}
	stale := models.Slot{Date: "20250501", Gen: 1}
	for _, slot := range []models.Slot{keep, stale} {
		if err := cache.Write(slot, []byte(`[]`)); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "stray.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	cache.Reconcile([]models.Slot{keep})

	if !cache.Has(keep) {
		t.Error("expected slot should survive reconciliation")
	}
	if cache.Has(stale) {
		t.Error("out-of-window slot should be removed")
	}
	if _, err := os.Stat(filepath.Join(dir, "stray.txt")); !os.IsNotExist(err) {
		t.Error("stray file should be removed")
	}
}

func TestCacheStats(t *testing.T) {
	cache, err := NewCache(t.TempDir(), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	a := models.Slot{Date: "20250610", Gen: 0}
	b := models.Slot{Date: "20250610", Gen: 1}
	broken := models.Slot{Date: "20250611", Gen: 0}

	if err := cache.Write(a, []byte(sampleDoc)); err != nil {
		t.Fatal(err)
	}
	if err := cache.Write(b, []byte(sampleDoc)); err != nil {
		t.Fatal(err)
	}
	if err := cache.Write(broken, []byte(`not json`)); err != nil {
		t.Fatal(err)
	}

	infos, err := cache.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 3 {
		t.Fatalf("got %d infos, want 3", len(infos))
	}

	// Identical payloads fingerprint identically; the broken one differs
	// and is flagged unparseable.
	if infos[0].Fingerprint != infos[1].Fingerprint {
		t.Error("identical payloads should share a fingerprint")
	}
	if !infos[0].Parseable || infos[0].Entries != 2 {
		t.Errorf("infos[0] = %+v", infos[0])
	}
	if infos[2].Parseable {
		t.Error("broken payload should be unparseable")
	}
}
