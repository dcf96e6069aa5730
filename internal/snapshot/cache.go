package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/zeebo/xxh3"

	"github.com/crlwatch/crlwatch/pkg/models"
)

// Cache stores one JSON file per snapshot slot under a root directory.
// Presence of the file means the slot is already fetched. The cache is owned
// exclusively by the current run; overlapping invocations are not guarded.
type Cache struct {
	dir    string
	logger *logrus.Logger
}

func NewCache(dir string, logger *logrus.Logger) (*Cache, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &Cache{dir: dir, logger: logger}, nil
}

func (c *Cache) Path(slot models.Slot) string {
	return filepath.Join(c.dir, slot.String()+".json")
}

func (c *Cache) Has(slot models.Slot) bool {
	_, err := os.Stat(c.Path(slot))
	return err == nil
}

// Write persists one slot's raw payload via temp file and rename, so a
// crashed run never leaves a truncated cache file behind.
func (c *Cache) Write(slot models.Slot, data []byte) error {
	tmp, err := os.CreateTemp(c.dir, "."+slot.String()+"_*.json.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
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
	if err := os.Rename(tmp.Name(), c.Path(slot)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}

// snapshotDocument tolerates both published shapes: a bare JSON array of
// audit entries and an object wrapping them in an "Entries" field.
type snapshotDocument struct {
	Entries []models.AuditEntry `json:"Entries"`
}

// DecodeEntries parses a snapshot payload into audit entries.
func DecodeEntries(data []byte) ([]models.AuditEntry, error) {
	trimmed := strings.TrimLeftFunc(string(data), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if strings.HasPrefix(trimmed, "[") {
		var entries []models.AuditEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("parse entry array: %w", err)
		}
		return entries, nil
	}
	var doc snapshotDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse snapshot document: %w", err)
	}
	return doc.Entries, nil
}

// Read loads and parses one cached slot.
func (c *Cache) Read(slot models.Slot) ([]models.AuditEntry, error) {
	data, err := os.ReadFile(c.Path(slot))
	if err != nil {
		return nil, fmt.Errorf("read cached slot %s: %w", slot, err)
	}
	entries, err := DecodeEntries(data)
	if err != nil {
		return nil, fmt.Errorf("slot %s: %w", slot, err)
	}
	return entries, nil
}

// Reconcile removes cache files whose slot identity is no longer in the
// expected window. Removal failures are logged and do not stop the sweep.
// This is a side-effecting step kept separate from the pure aggregation.
func (c *Cache) Reconcile(expected []models.Slot) {
	keep := make(map[string]struct{}, len(expected))
	for _, s := range expected {
		keep[filepath.Base(c.Path(s))] = struct{}{}
	}

	files, err := os.ReadDir(c.dir)
	if err != nil {
		c.logger.Warnf("Failed to read cache directory: %v", err)
		return
	}
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		if _, ok := keep[f.Name()]; ok {
			continue
		}
		p := filepath.Join(c.dir, f.Name())
		if err := os.Remove(p); err != nil {
			c.logger.Warnf("Failed to remove unexpected file %s: %v", p, err)
		} else {
			c.logger.Infof("Removed unexpected file: %s", p)
		}
	}
}

// CachedSlots lists the slots currently present in the cache, ascending.
func (c *Cache) CachedSlots() ([]models.Slot, error) {
	files, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("read cache directory: %w", err)
	}
	slots := make([]models.Slot, 0, len(files))
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		slot, err := models.ParseSlot(strings.TrimSuffix(f.Name(), ".json"))
		if err != nil {
			continue
		}
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Less(slots[j]) })
	return slots, nil
}

// FileInfo describes one cached slot file for the stats command.
type FileInfo struct {
	Slot        models.Slot `json:"slot"`
	SizeBytes   int64       `json:"size_bytes"`
	Fingerprint string      `json:"fingerprint"`
	Entries     int         `json:"entries"`
	Parseable   bool        `json:"parseable"`
}

// Stats fingerprints every cached file with xxh3 so operators can spot
// corrupt payloads and identical day generations without re-fetching.
func (c *Cache) Stats() ([]FileInfo, error) {
	slots, err := c.CachedSlots()
	if err != nil {
		return nil, err
	}

	infos := make([]FileInfo, 0, len(slots))
	for _, slot := range slots {
		data, err := os.ReadFile(c.Path(slot))
		if err != nil {
			c.logger.Warnf("Failed to read %s: %v", c.Path(slot), err)
			continue
		}
		info := FileInfo{
			Slot:        slot,
			SizeBytes:   int64(len(data)),
			Fingerprint: fmt.Sprintf("%016x", xxh3.Hash(data)),
		}
		if entries, err := DecodeEntries(data); err == nil {
			info.Entries = len(entries)
			info.Parseable = true
		}
		infos = append(infos, info)
	}
	return infos, nil
}
