package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"waiter-station/internal/common/config"
	"waiter-station/internal/common/logger"
	"waiter-station/internal/connections/rabbitmq"
	"waiter-station/internal/domain"
)

// Run tails the notifications fanout and logs every order status change.
func Run(ctx context.Context, appCfg *config.Config) error {
	lg := logger.New("notification-subscriber")

	broker, err := rabbitmq.Dial(appCfg.RabbitMQ, false)
	if err != nil {
		return fmt.Errorf("connect rabbitmq: %w", err)
	}
	defer broker.Close()
	if err := broker.DeclareAll(); err != nil {
		return fmt.Errorf("declare broker topology: %w", err)
	}

	deliveries, err := broker.Consume(rabbitmq.QueueNotifications, "notification-subscriber", 1)
	if err != nil {
		return fmt.Errorf("consume notifications queue: %w", err)
	}

	lg.Info("subscriber_started", nil)
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			var n domain.StatusNotification
			if err := json.Unmarshal(d.Body, &n); err != nil {
				lg.Error("decode_notification", err, nil)
				_ = d.Nack(false, false)
				continue
			}
			lg.Info("notification", map[string]any{
				"order_name": n.OrderName,
				"table_id":   n.TableID,
				"status":     n.Status,
				"message":    n.Message,
			})
			_ = d.Ack(false)
		}
	}
}
