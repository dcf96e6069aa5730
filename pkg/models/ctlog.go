package models

// ManifestEntry is one row of the daily ct-logs.json manifest published
// alongside the snapshot files. An empty LogID marks an inactive log that is
// skipped entirely.
type ManifestEntry struct {
	ShortURL     string `json:"ShortURL"`
	LogID        string `json:"LogID"`
	MinEntry     int64  `json:"MinEntry"`
	MaxEntry     int64  `json:"MaxEntry"`
	MaxTimestamp int64  `json:"MaxTimestamp"`
}

func (m ManifestEntry) Active() bool {
	return m.LogID != ""
}

// LogStatus is the lag/freshness record produced for one monitored CT log.
// PollError is set when the log's STH endpoint could not be reached or
// returned garbage; such records carry no numeric comparison fields but still
// appear in output, sorted as worst.
type LogStatus struct {
	ShortURL     string `json:"url"`
	LogID        string `json:"log_id"`
	MinEntry     int64  `json:"min_entry"`
	MaxEntry     int64  `json:"max_entry"`
	MaxTimestamp int64  `json:"max_timestamp"`

	TreeSize     int64 `json:"tree_size,omitempty"`
	STHTimestamp int64 `json:"sth_timestamp,omitempty"`
	Polled       bool  `json:"polled"`

	EntryLag      int64   `json:"entry_lag,omitempty"`
	HasEntryLag   bool    `json:"-"`
	TimeDiffHours float64 `json:"time_diff_hours,omitempty"`
	HasTimeDiff   bool    `json:"-"`
	IngestRatio   float64 `json:"ingest_ratio,omitempty"`
	HasRatio      bool    `json:"-"`

	PollError string `json:"error,omitempty"`
}
