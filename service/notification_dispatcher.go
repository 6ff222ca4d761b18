package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"surveydraw/models"

	log "github.com/sirupsen/logrus"
)

// notificationDispatcher routes a winner notification to the transport for its contact kind
type notificationDispatcher struct {
	transports map[ContactKind]NotificationTransport
	timeout    time.Duration
}

// NewNotificationDispatcher creates a dispatcher. Contact kinds without a transport fail delivery.
func NewNotificationDispatcher(transports map[ContactKind]NotificationTransport, timeout time.Duration) NotificationDispatcher {
	return &notificationDispatcher{
		transports: transports,
		timeout:    timeout,
	}
}

// Notify makes exactly one delivery attempt bounded by the notify timeout
func (d *notificationDispatcher) Notify(ctx context.Context, record *models.DrawRecord, contactAddress string, prizeDescription string) models.NotificationStatus {
	if contactAddress == "" {
		record.NotificationStatus = models.NotificationStatusNotApplicable
		return record.NotificationStatus
	}

	logger := log.WithFields(log.Fields{
		"draw_id":   record.ID,
		"survey_id": record.SurveyInstanceID,
		"attempt":   record.NotificationAttempts + 1,
	})

	kind, destination, err := ParseContact(contactAddress)
	if err != nil {
		logger.WithError(err).Warn("Winner contact address rejected")
		record.MarkFailed(err.Error())
		return record.NotificationStatus
	}

	transport, ok := d.transports[kind]
	if !ok || transport == nil {
		logger.WithField("contact_kind", kind).Warn("No transport configured for winner contact")
		record.MarkFailed(fmt.Sprintf("%s: %s", ErrUnsupportedContact, kind))
		return record.NotificationStatus
	}

	sendCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	err = transport.Send(sendCtx, WinnerNotification{
		DrawID:           record.ID,
		SurveyInstanceID: record.SurveyInstanceID,
		ContactAddress:   destination,
		WinnerToken:      record.WinnerToken,
		PrizeDescription: prizeDescription,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("delivery timed out after %s: %w", d.timeout, err)
		}
		logger.WithError(err).WithField("contact_kind", kind).Warn("Winner notification failed")
		record.MarkFailed(err.Error())
		return record.NotificationStatus
	}

	record.MarkSent(time.Now().UTC())
	logger.WithField("contact_kind", kind).Info("Winner notification sent")
	return record.NotificationStatus
}
