package app

import (
	"context"
	"errors"
	"time"

	"github.com/ayusman/signify/internal/landmark"
	"github.com/ayusman/signify/internal/source"
)

// runPipeline is the detection loop. Every tick it pulls one frame from the
// source and hands it to the session. A source failure counts as a tick
// with nothing detected, which the validity gate drops.
func (a *App) runPipeline(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(a.config.TickInterval)
	defer ticker.Stop()

	exhausted := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frame, err := a.config.Source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			switch {
			case errors.Is(err, source.ErrExhausted):
				if !exhausted {
					a.log.Info("frame source exhausted")
					exhausted = true
				}
			default:
				a.log.WithError(err).Debug("no frame this tick")
			}
			frame = landmark.Frame{}
		}

		a.session.Tick(ctx, frame)
	}
}
