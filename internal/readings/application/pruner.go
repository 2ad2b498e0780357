package application

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"noise-monitor/internal/observability/metrics"
	readings "noise-monitor/internal/readings/domain"
)

const pruneBatchSize = 500

// Pruner removes readings older than the retention period on a fixed interval.
type Pruner struct {
	store     readings.ReadingStore
	ingest    *IngestService
	retention time.Duration
	interval  time.Duration
	clock     Clock
	logger    zerolog.Logger
}

// NewPruner constructs a Pruner. Deletions go through the ingest service so
// that each removal raises its own ReadingWritten.
func NewPruner(store readings.ReadingStore, ingest *IngestService, retention, interval time.Duration, logger zerolog.Logger) (*Pruner, error) {
	if store == nil || ingest == nil {
		return nil, errors.New("pruner: nil dependency")
	}
	if retention <= 0 {
		return nil, errors.New("pruner: retention must be positive")
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Pruner{
		store:     store,
		ingest:    ingest,
		retention: retention,
		interval:  interval,
		clock:     ingest.clock,
		logger:    logger,
	}, nil
}

// Start runs the prune loop until ctx is cancelled.
func (p *Pruner) Start(ctx context.Context) {
	if p == nil {
		return
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.PruneOnce(ctx); err != nil {
				p.logger.Error().Err(err).Msg("prune failed")
			}
		}
	}
}

// PruneOnce deletes every reading older than now minus retention.
func (p *Pruner) PruneOnce(ctx context.Context) (int, error) {
	bound := p.clock.Now().Add(-p.retention).Unix()
	removed := 0
	defer func() { metrics.AddPruned(removed) }()
	for {
		refs, err := p.store.ListKeysBefore(ctx, bound, pruneBatchSize)
		if err != nil {
			return removed, err
		}
		if len(refs) == 0 {
			break
		}
		batch := 0
		for _, ref := range refs {
			ok, err := p.ingest.Delete(ctx, ref.DeviceID, ref.Key)
			if err != nil {
				return removed, err
			}
			if ok {
				batch++
				removed++
			}
		}
		if batch == 0 || len(refs) < pruneBatchSize {
			break
		}
	}
	if removed > 0 {
		p.logger.Info().Int("removed", removed).Int64("bound", bound).Msg("pruned readings")
	}
	return removed, nil
}
