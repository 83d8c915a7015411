package service

import (
	"context"

	"github.com/namanxajmera/stock-alerts/pkg/logger"
	"github.com/namanxajmera/stock-alerts/pkg/telegram"
)

// Alert is one triggered symbol queued for one user in the current cycle.
type Alert struct {
	Symbol  string
	Price   float64
	PctDiff float64
	P16     float64
	P84     float64
	IsOwned bool
}

// NotifierService delivers one batched notification per user per cycle.
type NotifierService interface {
	SendBatchedAlerts(ctx context.Context, userID int64, alerts []Alert) bool
}

type notifierService struct {
	notifier telegram.Notifier
	log      *logger.Logger
}

func NewNotifierService(notifier telegram.Notifier, log *logger.Logger) NotifierService {
	return &notifierService{
		notifier: notifier,
		log:      log,
	}
}

// SendBatchedAlerts formats and sends a single message covering all of a
// user's pending alerts. Returns false on delivery failure; the caller
// records the outcome in alert history.
func (s *notifierService) SendBatchedAlerts(ctx context.Context, userID int64, alerts []Alert) bool {
	if len(alerts) == 0 {
		return true
	}

	batched := make([]telegram.BatchedAlert, 0, len(alerts))
	for _, a := range alerts {
		batched = append(batched, telegram.BatchedAlert{
			Symbol:  a.Symbol,
			Price:   a.Price,
			PctDiff: a.PctDiff,
			P16:     a.P16,
			P84:     a.P84,
			IsOwned: a.IsOwned,
		})
	}

	message := telegram.FormatBatchedAlerts(batched)
	if err := s.notifier.SendMessageUser(message, userID); err != nil {
		s.log.ErrorContext(ctx, "Failed to send batched alerts",
			logger.ErrorField(err),
			logger.Field("user_id", userID),
			logger.IntField("alert_count", len(alerts)))
		return false
	}

	s.log.InfoContext(ctx, "Sent batched alerts",
		logger.Field("user_id", userID),
		logger.IntField("alert_count", len(alerts)))
	return true
}
