package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"surveydraw/service"

	log "github.com/sirupsen/logrus"
)

// DefaultDrawInterval is used when the worker is given a non-positive interval
const DefaultDrawInterval = 5 * time.Minute

// DrawWorker runs the prize draw of every lottery survey whose response window has ended
type DrawWorker struct {
	drawService service.DrawService
	interval    time.Duration
}

// NewDrawWorker creates a new draw worker
func NewDrawWorker(drawService service.DrawService, interval time.Duration) *DrawWorker {
	if interval <= 0 {
		log.WithField("interval", interval).Warn("Non-positive draw worker interval, using default")
		interval = DefaultDrawInterval
	}
	return &DrawWorker{
		drawService: drawService,
		interval:    interval,
	}
}

// Start begins the draw worker and returns a function that stops it
func (w *DrawWorker) Start(ctx context.Context) func() {
	stopChan := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		log.WithField("interval", w.interval).Info("Draw worker started")

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			if err := w.ProcessDueDraws(ctx); err != nil {
				log.WithError(err).Error("Error processing due draws")
			}

			select {
			case <-ctx.Done():
				log.Info("Draw worker shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.Info("Draw worker shutting down (stop requested)...")
				return
			case <-ticker.C:
			}
		}
	}()

	return func() {
		close(stopChan)
		<-done
	}
}

// ProcessDueDraws runs every draw that is due. Each draw is attempted independently;
// a failed draw stays due and is retried on the next tick.
func (w *DrawWorker) ProcessDueDraws(ctx context.Context) error {
	due, err := w.drawService.ListDueDraws(ctx)
	if err != nil {
		return fmt.Errorf("failed to list due draws: %w", err)
	}

	if len(due) == 0 {
		log.Debug("No due survey draws to process")
		return nil
	}

	log.Infof("Found %d due survey draws to process", len(due))

	var successCount, skippedCount, failureCount int
	for _, survey := range due {
		record, err := w.drawService.RunDraw(ctx, survey.ID)
		switch {
		case err == nil:
			successCount++
			log.WithFields(log.Fields{
				"survey_id":           survey.ID,
				"draw_id":             record.ID,
				"candidate_count":     record.CandidateCount,
				"notification_status": record.NotificationStatus,
			}).Info("Survey draw completed")
		case errors.Is(err, service.ErrAlreadyDrawn), errors.Is(err, service.ErrNoEligibleCandidates):
			// Neither is a failure: the draw already ran elsewhere, or no entry qualifies
			skippedCount++
			log.WithFields(log.Fields{
				"survey_id": survey.ID,
			}).WithError(err).Warn("Skipping survey draw")
		default:
			failureCount++
			log.WithFields(log.Fields{
				"survey_id": survey.ID,
			}).WithError(err).Error("Error running survey draw")
		}
	}

	log.WithFields(log.Fields{
		"total_draws": len(due),
		"successful":  successCount,
		"skipped":     skippedCount,
		"failed":      failureCount,
	}).Info("Completed due draw processing")

	return nil
}
