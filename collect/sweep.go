package collect

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// sweepConcurrency bounds the fan-out across users during a batch sweep.
const sweepConcurrency = 4

// Sweep refreshes the cached mailbox of every stored user. Each user's fetch
// runs independently: one failure is recorded in that user's outcome and
// never aborts the sweep for the others. Only listing the credentials can
// fail the sweep as a whole.
func (s *Service) Sweep(ctx context.Context, limit int64) ([]SweepOutcome, error) {
	creds, err := s.creds.ListCredentials(ctx)
	if err != nil {
		return nil, err
	}

	outcomes := make([]SweepOutcome, len(creds))
	var group errgroup.Group
	group.SetLimit(sweepConcurrency)
	for i, cred := range creds {
		group.Go(func() error {
			outcomes[i] = s.sweepOne(ctx, cred.UserEmail, limit)
			return nil
		})
	}
	group.Wait()

	succeeded := 0
	for _, outcome := range outcomes {
		if outcome.Success {
			succeeded++
		}
	}
	slog.Info("Sweep finished", "users", len(outcomes), "succeeded", succeeded, "failed", len(outcomes)-succeeded)
	return outcomes, nil
}

func (s *Service) sweepOne(ctx context.Context, userEmail string, limit int64) SweepOutcome {
	result, err := s.Fetch(ctx, userEmail, limit)
	if err != nil {
		slog.Error("Sweep fetch failed", "user", userEmail, "error", err)
		return SweepOutcome{UserEmail: userEmail, Error: err.Error()}
	}
	if result == nil {
		// Credential vanished between listing and fetching.
		return SweepOutcome{UserEmail: userEmail, Error: fmt.Sprintf("no credential stored for %s", userEmail)}
	}
	return SweepOutcome{UserEmail: userEmail, ItemCount: result.Count(), Success: true}
}
