// Package media assembles the read side of the evidence gallery: the latest
// day mosaics of an experiment, resolved to signed URLs for display.
package media

import (
	"context"
	"log/slog"

	"sporelab/internal/evidence"
	"sporelab/pkg/domain"
)

// Item is one displayable mosaic with its provenance coordinates.
type Item struct {
	TestID           string            `json:"test_id"`
	RepetitionNumber int               `json:"repetition_number"`
	TestNumber       int               `json:"test_number"`
	Day              domain.CheckDay   `json:"day"`
	Asset            domain.PhotoAsset `json:"asset"`
	URL              string            `json:"url,omitempty"`
}

// Service reads mosaic assets and resolves their URLs.
type Service struct {
	db       domain.PersistentStore
	evidence *evidence.Store
	log      *slog.Logger
}

// NewService wires the media read surface.
func NewService(db domain.PersistentStore, ev *evidence.Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{db: db, evidence: ev, log: log}
}

// ExperimentMosaics returns the newest merged mosaic per (test, day) across
// the experiment, ordered by repetition, test number, then day. Tests with
// no mosaic for a day are simply absent; a URL that cannot be signed comes
// back empty rather than failing the listing.
func (s *Service) ExperimentMosaics(ctx context.Context, experimentID string) ([]Item, error) {
	var items []Item
	err := s.db.View(ctx, func(v domain.TransactionView) error {
		if _, ok := v.GetExperiment(experimentID); !ok {
			return domain.ErrNotFound{Entity: "experiment", ID: experimentID}
		}
		for _, rec := range v.ListTestsByExperiment(experimentID) {
			for _, day := range []domain.CheckDay{domain.Day7, domain.Day14} {
				asset, ok := v.LatestMerged(rec.ID, day)
				if !ok {
					continue
				}
				items = append(items, Item{
					TestID:           rec.ID,
					RepetitionNumber: rec.RepetitionNumber,
					TestNumber:       rec.TestNumber,
					Day:              day,
					Asset:            asset,
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(items))
	for i, it := range items {
		paths[i] = it.Asset.StoragePath
	}
	urls := s.evidence.SignedURLs(ctx, paths)
	for i := range items {
		items[i].URL = urls[i]
	}
	return items, nil
}

// TestMosaic returns the newest mosaic of one test and day.
func (s *Service) TestMosaic(ctx context.Context, testID string, day domain.CheckDay) (Item, bool, error) {
	var (
		item  Item
		found bool
	)
	err := s.db.View(ctx, func(v domain.TransactionView) error {
		rec, ok := v.GetTest(testID)
		if !ok {
			return domain.ErrNotFound{Entity: "test", ID: testID}
		}
		asset, ok := v.LatestMerged(testID, day)
		if !ok {
			return nil
		}
		found = true
		item = Item{
			TestID:           testID,
			RepetitionNumber: rec.RepetitionNumber,
			TestNumber:       rec.TestNumber,
			Day:              day,
			Asset:            asset,
		}
		return nil
	})
	if err != nil || !found {
		return Item{}, false, err
	}
	item.URL = s.evidence.SignedURLs(ctx, []string{item.Asset.StoragePath})[0]
	return item, true, nil
}
