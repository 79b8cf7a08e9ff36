package worker

import (
	"context"
	"fmt"
	"log"

	"go.uber.org/zap"

	"pos-service/internal/broker"
	"pos-service/internal/models"
	"pos-service/internal/store"
	"pos-service/internal/util"
)

// NotificationWorker consumes sale and ledger events and renders the
// user-facing description strings the UI layer shows as toasts. Core services
// never render anything themselves; this is the only place the strings leave
// the process.
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	repo         store.Repository
	logger       *zap.Logger
}

// NewNotificationWorker creates a worker wired to the event handler.
func NewNotificationWorker(consumer *broker.Consumer, repo store.Repository) *NotificationWorker {
	w := &NotificationWorker{
		consumer: consumer,
		repo:     repo,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnSaleCompleted(w.handleSaleCompleted)
	eventHandler.OnDebtPaymentRecorded(w.handleDebtPaymentRecorded)
	eventHandler.OnStockAdjusted(w.handleStockAdjusted)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	log.Println("Starting notification worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	log.Println("Stopping notification worker...")
	return w.consumer.Close()
}

func (w *NotificationWorker) alreadyProcessed(ctx context.Context, eventID string) (bool, error) {
	processed, err := w.repo.IsEventProcessed(ctx, eventID)
	if err != nil {
		return false, fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		w.logger.Info("Event already processed", zap.String("event_id", eventID))
	}
	return processed, nil
}

func (w *NotificationWorker) markProcessed(ctx context.Context, eventID, eventType string) {
	if err := w.repo.MarkEventProcessed(ctx, eventID, eventType); err != nil {
		w.logger.Error("Failed to mark event processed", zap.Error(err))
	}
}

func (w *NotificationWorker) handleSaleCompleted(ctx context.Context, event *models.SaleCompletedEvent) error {
	processed, err := w.alreadyProcessed(ctx, event.EventID)
	if err != nil || processed {
		return err
	}

	w.logger.Info("notification",
		zap.String("description", fmt.Sprintf("Purchase of %s recorded", event.Total.StringFixed(2))),
		zap.String("purchase_id", event.PurchaseID),
		zap.String("payment_method", event.PaymentMethod),
		zap.String("customer_id", event.CustomerID))

	w.markProcessed(ctx, event.EventID, event.EventType)
	return nil
}

func (w *NotificationWorker) handleDebtPaymentRecorded(ctx context.Context, event *models.DebtPaymentRecordedEvent) error {
	processed, err := w.alreadyProcessed(ctx, event.EventID)
	if err != nil || processed {
		return err
	}

	w.logger.Info("notification",
		zap.String("description", fmt.Sprintf("Debt payment of %s recorded", event.Amount.StringFixed(2))),
		zap.String("customer_id", event.CustomerID),
		zap.String("new_balance", event.NewBalance.StringFixed(2)))

	w.markProcessed(ctx, event.EventID, event.EventType)
	return nil
}

func (w *NotificationWorker) handleStockAdjusted(ctx context.Context, event *models.StockAdjustedEvent) error {
	processed, err := w.alreadyProcessed(ctx, event.EventID)
	if err != nil || processed {
		return err
	}

	w.logger.Info("notification",
		zap.String("description", fmt.Sprintf("Stock of product %s set to %d", event.ProductID, event.NewStock)),
		zap.Int("old_stock", event.OldStock))

	w.markProcessed(ctx, event.EventID, event.EventType)
	return nil
}
