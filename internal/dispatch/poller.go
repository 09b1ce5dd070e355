package dispatch

import (
	"context"
	"time"

	"github.com/enrichloop/core/internal/enrichment"
	"github.com/enrichloop/core/internal/provider"
)

const (
	pollInitialInterval = time.Second
	pollFactor          = 1.5
	pollMaxInterval     = 5 * time.Second
	pollTotalCap        = 30 * time.Second
)

// pollToCompletion drives an AsyncPoller from the initial enrichment-id
// response until it reaches a terminal state, per §4.8. It counts as a
// single dispatch attempt: the caller's retry loop never re-enters this
// function for the same attempt.
func pollToCompletion(ctx context.Context, poller provider.AsyncPoller, enrichmentID string) (*provider.PollResult, error) {
	deadline := time.Now().Add(pollTotalCap)
	interval := pollInitialInterval

	for {
		result, err := poller.Poll(ctx, enrichmentID)
		if err != nil {
			return nil, err
		}

		if result.Status.Terminal() {
			if result.Status == provider.PollFailed {
				return nil, enrichment.NewError(enrichment.CodeProviderUnavailable, "async enrichment failed")
			}
			return &result, nil
		}

		if time.Now().Add(interval).After(deadline) {
			return nil, enrichment.NewError(enrichment.CodeTimeout, "async enrichment polling exceeded 30s cap")
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, enrichment.NewError(enrichment.CodeTimeout, "polling cancelled: "+ctx.Err().Error())
		case <-timer.C:
		}

		interval = time.Duration(float64(interval) * pollFactor)
		if interval > pollMaxInterval {
			interval = pollMaxInterval
		}
	}
}
