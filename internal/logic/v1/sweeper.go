package v1

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/mso328/headscale-ui/middleware"
)

// RunSweeper deletes expired sessions on a fixed interval until ctx is
// cancelled. It is routine housekeeping independent of request handling —
// lookups already ignore expired rows — and runs on its own goroutine so it
// never blocks request serving. An immediate sweep runs at startup to clear
// rows accumulated while the process was down.
func RunSweeper(ctx context.Context, svc *AuthService, interval time.Duration, logger zerolog.Logger) {
	sweep := func() {
		n, err := svc.SweepExpired(ctx)
		if err != nil {
			if ctx.Err() == nil {
				logger.Error().Err(err).Msg("Session sweep failed")
			}
			return
		}
		if n > 0 {
			middleware.SessionsSwept.Add(float64(n))
			logger.Info().Int64("deleted", n).Msg("Expired sessions removed")
		}
	}

	sweep()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("Session sweeper stopped")
			return
		case <-ticker.C:
			sweep()
		}
	}
}
