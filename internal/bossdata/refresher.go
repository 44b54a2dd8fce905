package bossdata

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/captbunzo/rotom-bot-sub001/internal/storage"
)

// Store is the persistence surface the refresher writes to.
type Store interface {
	UpsertBoss(ctx context.Context, b *storage.Boss) error
	UpsertLinkCandidate(ctx context.Context, c *storage.LinkCandidate) error
}

// Fetcher provides the remote dataset.
type Fetcher interface {
	FetchDataset(ctx context.Context) (*Dataset, error)
}

// Refresher runs an initial dataset load and then refreshes on a cron
// schedule. Battles only ever read boss rows, so refreshes never need to
// coordinate with interaction handling.
type Refresher struct {
	fetcher Fetcher
	store   Store
	cron    *cron.Cron
	spec    string
}

// NewRefresher creates a refresher with a cron spec such as "@every 6h".
func NewRefresher(fetcher Fetcher, store Store, spec string) *Refresher {
	return &Refresher{
		fetcher: fetcher,
		store:   store,
		cron:    cron.New(),
		spec:    spec,
	}
}

// Start performs the initial refresh and schedules recurring ones.
func (r *Refresher) Start(ctx context.Context) error {
	if err := r.Refresh(ctx); err != nil {
		return fmt.Errorf("initial boss data refresh failed: %w", err)
	}

	_, err := r.cron.AddFunc(r.spec, func() {
		if err := r.Refresh(context.Background()); err != nil {
			slog.Error("Scheduled boss data refresh failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", r.spec, err)
	}

	r.cron.Start()
	slog.Info("Boss data refresher started", "schedule", r.spec)
	return nil
}

// Stop halts the refresh schedule.
func (r *Refresher) Stop() {
	r.cron.Stop()
}

// Refresh fetches the dataset and upserts every boss and link candidate.
// Row-level failures are logged and skipped so one bad record cannot block
// the rest of the load.
func (r *Refresher) Refresh(ctx context.Context) error {
	dataset, err := r.fetcher.FetchDataset(ctx)
	if err != nil {
		return err
	}

	bosses := 0
	for _, rec := range dataset.Bosses {
		boss := &storage.Boss{
			Name:        rec.Name,
			BossType:    storage.BossType(rec.BossType),
			CreatureID:  rec.CreatureID,
			Form:        rec.Form,
			Tier:        rec.Tier,
			IsMega:      rec.IsMega,
			IsShadow:    rec.IsShadow,
			IsActive:    rec.IsActive,
			IsShinyable: rec.IsShinyable,
			TemplateID:  rec.TemplateID,
		}
		if err := r.store.UpsertBoss(ctx, boss); err != nil {
			slog.Error("Failed to upsert boss", "templateID", rec.TemplateID, "error", err)
			continue
		}
		bosses++
	}

	links := 0
	for _, rec := range dataset.Links {
		candidate := &storage.LinkCandidate{
			CreatureID:       rec.CreatureID,
			TemplateID:       rec.TemplateID,
			Form:             rec.Form,
			IsMega:           rec.IsMega,
			IsSpecialVariant: rec.IsSpecialVariant,
			URL:              rec.URL,
			Title:            rec.Title,
		}
		if err := r.store.UpsertLinkCandidate(ctx, candidate); err != nil {
			slog.Error("Failed to upsert link candidate", "creatureID", rec.CreatureID, "error", err)
			continue
		}
		links++
	}

	slog.Info("Boss data refreshed", "bosses", bosses, "links", links)
	return nil
}
