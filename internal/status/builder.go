package status

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/crlwatch/crlwatch/pkg/models"
)

// Builder folds per-slot snapshot documents into per-issuer timelines. The
// fold is pure: the result depends only on slot contents, never on retrieval
// order.
type Builder struct {
	logger *logrus.Logger
}

func NewBuilder(logger *logrus.Logger) *Builder {
	if logger == nil {
		logger = logrus.New()
	}
	return &Builder{logger: logger}
}

// Build merges the given documents into a StatusBoard. Slots lists every
// expected slot whether or not it has data, so the board keeps uniform
// columns. Entries carrying the "Not Fresh" marker are discarded before they
// reach any timeline; duplicate issuer entries within one slot overwrite,
// last one wins.
func (b *Builder) Build(slots []models.Slot, docs map[models.Slot][]models.AuditEntry) *models.StatusBoard {
	ordered := make([]models.Slot, len(slots))
	copy(ordered, slots)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Less(ordered[j]) })

	board := &models.StatusBoard{
		Timelines: make(map[string]*models.IssuerTimeline),
		Slots:     ordered,
	}

	for _, slot := range ordered {
		entries, ok := docs[slot]
		if !ok {
			continue
		}
		for i := range entries {
			entry := entries[i]
			if models.IsNotFresh(entry.Kind) {
				continue
			}
			tl, ok := board.Timelines[entry.URL]
			if !ok {
				tl = models.NewIssuerTimeline(entry.URL, entry.IssuerSubject)
				board.Timelines[entry.URL] = tl
			}
			tl.Entries[slot] = &entry
		}
	}

	b.logger.Debugf("Built timelines for %d issuers across %d slots", len(board.Timelines), len(ordered))
	return board
}
