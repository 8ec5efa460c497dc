package kitchen

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"waiter-station/internal/common/config"
	"waiter-station/internal/common/logger"
	"waiter-station/internal/connections/database"
	"waiter-station/internal/connections/rabbitmq"
	"waiter-station/internal/domain"
	"waiter-station/internal/posserver/repository"
)

type Config struct {
	WorkerName string
	PrepTime   time.Duration // per stage: received -> preparing -> ready
	Prefetch   int
}

// Run consumes kitchen order events and walks each order through
// preparing -> ready, publishing a notification per step. The table screen
// picks the statuses up on its next refresh.
func Run(ctx context.Context, appCfg *config.Config, cfg Config) error {
	lg := logger.New("kitchen-worker")

	pool, err := database.Connect(ctx, appCfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	repo := repository.NewPG(pool)

	broker, err := rabbitmq.Dial(appCfg.RabbitMQ, false)
	if err != nil {
		return fmt.Errorf("connect rabbitmq: %w", err)
	}
	defer broker.Close()
	if err := broker.DeclareAll(); err != nil {
		return fmt.Errorf("declare broker topology: %w", err)
	}

	deliveries, err := broker.Consume(rabbitmq.QueueKitchen, cfg.WorkerName, cfg.Prefetch)
	if err != nil {
		return fmt.Errorf("consume kitchen queue: %w", err)
	}

	lg.Info("worker_started", map[string]any{"worker": cfg.WorkerName, "prep_time": cfg.PrepTime.String()})
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			if err := handle(ctx, lg, repo, broker, cfg, d); err != nil {
				lg.Error("order_failed", err, map[string]any{"routing_key": d.RoutingKey})
				_ = d.Nack(false, false) // dead-letter, no requeue
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func handle(ctx context.Context, lg *logger.Logger, repo *repository.PG, broker *rabbitmq.Client, cfg Config, d amqp.Delivery) error {
	var msg domain.KitchenOrderMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		return fmt.Errorf("decode kitchen event: %w", err)
	}
	lg.Info("order_received", map[string]any{"order_name": msg.OrderName, "table_id": msg.TableID})

	for _, status := range []string{"preparing", "ready"} {
		select {
		case <-time.After(cfg.PrepTime):
		case <-ctx.Done():
			return ctx.Err()
		}
		order, err := repo.SetOrderStatus(ctx, msg.OrderID, status)
		if err != nil {
			return fmt.Errorf("set status %s: %w", status, err)
		}
		notify(ctx, lg, broker, order, status)
		lg.Info("status_changed", map[string]any{"order_name": msg.OrderName, "status": status})
	}
	return nil
}

func notify(ctx context.Context, lg *logger.Logger, broker *rabbitmq.Client, order *domain.Order, status string) {
	body, err := json.Marshal(domain.StatusNotification{
		OrderID:   order.ID,
		OrderName: order.Name,
		TableID:   order.TableID,
		Status:    status,
		Message:   fmt.Sprintf("Order %s is %s", order.Name, status),
	})
	if err != nil {
		lg.Error("marshal_notification", err, nil)
		return
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := broker.Publish(pctx, rabbitmq.ExchangeNotifications, "", body, false); err != nil {
		lg.Error("publish_notification", err, map[string]any{"order_name": order.Name})
	}
}
