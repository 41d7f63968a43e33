// Package maintenance runs background upkeep jobs alongside the main
// request path, currently a periodic compaction sweep.
package maintenance

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/haasonsaas/agentcore/internal/compaction"
	"github.com/haasonsaas/agentcore/internal/observability"
	"github.com/haasonsaas/agentcore/pkg/protocol"
)

// HistoryAccessor is the subset of the history store the ticker needs,
// narrowed for testability.
type HistoryAccessor interface {
	GetCurated() []protocol.Content
	Replace([]protocol.Content)
}

// Ticker periodically runs a threshold-gated compaction pass (TryCompress
// with force=false) on a session's history, a
// safety net against unbounded growth between user turns (e.g. a long-idle
// session resuming with a stale, oversized log).
type Ticker struct {
	cron       *cron.Cron
	compressor *compaction.Compressor
	accessor   HistoryAccessor
	logger     *observability.Logger
}

// New builds a Ticker bound to accessor and compressor, unstarted.
func New(accessor HistoryAccessor, compressor *compaction.Compressor, logger *observability.Logger) *Ticker {
	return &Ticker{
		cron:       cron.New(),
		compressor: compressor,
		accessor:   accessor,
		logger:     logger,
	}
}

// Start schedules the compaction sweep at the given cron spec (e.g.
// "@every 30m") and starts the cron runner. Call Stop to shut it down.
func (t *Ticker) Start(spec string) error {
	_, err := t.cron.AddFunc(spec, t.sweep)
	if err != nil {
		return err
	}
	t.cron.Start()
	return nil
}

// Stop halts the cron runner and waits for any in-flight job to finish.
func (t *Ticker) Stop() {
	<-t.cron.Stop().Done()
}

func (t *Ticker) sweep() {
	ctx := context.Background()
	curated := t.accessor.GetCurated()
	record, newHistory, err := t.compressor.TryCompress(ctx, curated, false)
	if err != nil {
		if t.logger != nil {
			t.logger.Warn(ctx, "maintenance: compaction sweep failed", "error", err)
		}
		return
	}
	if record == nil {
		return
	}
	t.accessor.Replace(newHistory)
	if t.logger != nil {
		t.logger.Info(ctx, "maintenance: compacted history on schedule",
			"original_tokens", record.OriginalTokens, "new_tokens", record.NewTokens)
	}
}
