package orchestrator

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	apperrors "context-engine/internal/common/errors"
	"context-engine/internal/common/logging"
	"context-engine/internal/models"
	"context-engine/internal/registry"
)

// tier groups the registrations of one priority band together with the share
// of the remaining budget the band may spend.
type tier struct {
	name  string
	share float64
	regs  []*registry.Registration
}

// partitionTiers splits providers into execution bands, preserving the
// incoming (dependency-resolved) order within each band. The critical band
// waits for every provider with the full remaining budget; later bands get a
// shrinking share and cancel whatever has not finished inside their window.
// Optional providers ride along in the low band.
func partitionTiers(regs []*registry.Registration) []*tier {
	tiers := []*tier{
		{name: "critical", share: 1.0},
		{name: "high", share: 0.8},
		{name: "medium", share: 0.5},
		{name: "low", share: 1.0},
	}

	for _, reg := range regs {
		switch reg.Metadata.Priority {
		case models.PriorityCritical:
			tiers[0].regs = append(tiers[0].regs, reg)
		case models.PriorityHigh:
			tiers[1].regs = append(tiers[1].regs, reg)
		case models.PriorityMedium:
			tiers[2].regs = append(tiers[2].regs, reg)
		default:
			tiers[3].regs = append(tiers[3].regs, reg)
		}
	}
	return tiers
}

// fanOut runs the selected providers tier by tier. Each tier's window is a
// share of the budget still remaining when the tier starts, so total latency
// stays bounded by the original budget no matter how many tiers are
// populated. Providers whose tier never gets a window are reported as timed
// out rather than dropped silently.
func (o *Orchestrator) fanOut(ctx context.Context, regs []*registry.Registration, customerID, conversationID string, start time.Time, budget time.Duration) []models.ProviderResult {
	var results []models.ProviderResult

	for _, t := range partitionTiers(regs) {
		if len(t.regs) == 0 {
			continue
		}

		remaining := budget - time.Since(start)
		if remaining <= 0 || ctx.Err() != nil {
			for _, reg := range t.regs {
				results = append(results, budgetExhaustedResult(reg.Metadata.Name))
			}
			continue
		}

		window := time.Duration(float64(remaining) * t.share)
		o.logger.Debug("Running provider tier",
			logging.String("tier", t.name),
			logging.Int("providers", len(t.regs)),
			logging.Duration("window", window),
		)
		results = append(results, o.runTier(ctx, t, window, customerID, conversationID)...)
	}

	return results
}

// runTier launches every provider in the tier concurrently and collects all
// results. The tier context expires at the end of the window, so stragglers
// cancel cooperatively and come back as timeout results; the collection
// itself always returns by the window's end.
func (o *Orchestrator) runTier(ctx context.Context, t *tier, window time.Duration, customerID, conversationID string) []models.ProviderResult {
	tierCtx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	results := make([]models.ProviderResult, len(t.regs))
	var wg sync.WaitGroup
	for i, reg := range t.regs {
		wg.Add(1)
		go func(i int, reg *registry.Registration) {
			defer wg.Done()
			results[i] = o.runProvider(tierCtx, reg, customerID, conversationID)
		}(i, reg)
	}
	wg.Wait()

	return results
}

// runProvider executes one provider call under its own timeout. A panic,
// error or timeout yields a result with the corresponding status and the
// latency spent; it never aborts the enrichment.
func (o *Orchestrator) runProvider(ctx context.Context, reg *registry.Registration, customerID, conversationID string) (result models.ProviderResult) {
	name := reg.Metadata.Name

	timeout := reg.Metadata.Timeout
	if timeout <= 0 {
		timeout = o.providerTimeout
	}
	provCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Provider panicked", nil,
				logging.String("provider", name),
				logging.Any("panic", r),
			)
			result = models.ProviderResult{
				ProviderName: name,
				Status:       models.ProviderStatusFailed,
				Error:        fmt.Sprintf("panic: %v", r),
				Latency:      time.Since(start),
				CompletedAt:  time.Now(),
			}
		}
	}()

	data, err := reg.Provider.Fetch(provCtx, customerID, conversationID)
	latency := time.Since(start)

	if err != nil {
		status := models.ProviderStatusFailed
		if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) ||
			apperrors.IsType(err, apperrors.ErrTypeTimeout) || provCtx.Err() != nil {
			status = models.ProviderStatusTimeout
		}
		o.logger.Debug("Provider call did not complete",
			logging.String("provider", name),
			logging.String("status", string(status)),
			logging.Duration("latency", latency),
			logging.Err(err),
		)
		return models.ProviderResult{
			ProviderName: name,
			Status:       status,
			Error:        err.Error(),
			Latency:      latency,
			CompletedAt:  time.Now(),
		}
	}

	if data == nil {
		return models.ProviderResult{
			ProviderName: name,
			Status:       models.ProviderStatusFailed,
			Error:        "provider returned no data",
			Latency:      latency,
			CompletedAt:  time.Now(),
		}
	}

	return models.ProviderResult{
		ProviderName: name,
		Status:       models.ProviderStatusSuccess,
		Data:         data,
		Latency:      latency,
		CompletedAt:  time.Now(),
	}
}

func budgetExhaustedResult(name string) models.ProviderResult {
	return models.ProviderResult{
		ProviderName: name,
		Status:       models.ProviderStatusTimeout,
		Error:        "timeout budget exhausted before tier started",
		CompletedAt:  time.Now(),
	}
}
