package snapshot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/crlwatch/crlwatch/pkg/models"
)

func testSnapshotConfig(baseURL string) models.SnapshotConfig {
	return models.SnapshotConfig{
		BaseURL:      baseURL,
		AuditFile:    "crl-audit.json",
		FetchTimeout: 5 * time.Second,
		Concurrency:  2,
	}
}

func TestFetcherUpdate(t *testing.T) {
	good := models.Slot{Date: "20250610", Gen: 0}
	missing := models.Slot{Date: "20250610", Gen: 1}
	garbage := models.Slot{Date: "20250611", Gen: 0}

	mux := http.NewServeMux()
	mux.HandleFunc("/"+good.String()+"/crl-audit.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleDoc))
	})
	mux.HandleFunc("/"+garbage.String()+"/crl-audit.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>oops</html>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cache, err := NewCache(t.TempDir(), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	fetcher := NewFetcher(testSnapshotConfig(srv.URL), "test-agent", testLogger())

	res := fetcher.Update(context.Background(), cache, []models.Slot{good, missing, garbage})

	if len(res.Fetched) != 1 || res.Fetched[0] != good {
		t.Errorf("Fetched = %v, want [%v]", res.Fetched, good)
	}
	if len(res.Failed) != 2 {
		t.Errorf("Failed = %v, want both the 404 and the garbage slot", res.Failed)
	}
	if !cache.Has(good) {
		t.Error("fetched slot should be cached")
	}
	if cache.Has(missing) || cache.Has(garbage) {
		t.Error("failed slots must not be cached")
	}
}

func TestFetcherUpdateSkipsCached(t *testing.T) {
	slot := models.Slot{Date: "20250610", Gen: 0}

	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	cache, err := NewCache(t.TempDir(), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := cache.Write(slot, []byte(`[]`)); err != nil {
		t.Fatal(err)
	}

	fetcher := NewFetcher(testSnapshotConfig(srv.URL), "test-agent", testLogger())
	res := fetcher.Update(context.Background(), cache, []models.Slot{slot})

	if hits != 0 {
		t.Errorf("cached slot was fetched %d times, want 0", hits)
	}
	if len(res.Fetched) != 0 || len(res.Failed) != 0 {
		t.Errorf("result = %+v, want empty", res)
	}
}

func TestFetcherLoadAll(t *testing.T) {
	cache, err := NewCache(t.TempDir(), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	good := models.Slot{Date: "20250610", Gen: 0}
	bad := models.Slot{Date: "20250610", Gen: 1}
	absent := models.Slot{Date: "20250611", Gen: 0}

	if err := cache.Write(good, []byte(sampleDoc)); err != nil {
		t.Fatal(err)
	}
	if err := cache.Write(bad, []byte(`broken`)); err != nil {
		t.Fatal(err)
	}

	fetcher := NewFetcher(testSnapshotConfig("http://unused"), "test-agent", testLogger())
	docs := fetcher.LoadAll(cache, []models.Slot{good, bad, absent})

	if len(docs) != 1 {
		t.Fatalf("got %d docs, want 1", len(docs))
	}
	if len(docs[good]) != 2 {
		t.Errorf("good slot yielded %d entries, want 2", len(docs[good]))
	}
}
