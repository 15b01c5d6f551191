package ports

import (
	"context"

	messagebrokerdto "ride-dispatch/internal/dispatch-service/core/domain/message_broker_dto"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	OrderCreatedQueue = "order_created"
	OrderCreatedKey   = "order.created"
)

type IDispatchBroker interface {
	Close() error
	PublishOrderStatus(ctx context.Context, msg messagebrokerdto.OrderStatus) error
	ConsumeOrderCreated(ctx context.Context, consumerName string) (<-chan amqp.Delivery, error)
}
