package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"ride-dispatch/internal/mylogger"

	messagebrokerdto "ride-dispatch/internal/dispatch-service/core/domain/message_broker_dto"
	"ride-dispatch/internal/dispatch-service/core/myerrors"
	"ride-dispatch/internal/dispatch-service/core/ports"

	"github.com/rabbitmq/amqp091-go"
)

// Consumer bridges the order-creation collaborator to the matcher: every
// order.created delivery becomes an Announce.
type Consumer struct {
	ctx     context.Context
	wg      *sync.WaitGroup
	mylog   mylogger.Logger
	broker  ports.IDispatchBroker
	matcher ports.IMatcher
}

func New(
	ctx context.Context,
	wg *sync.WaitGroup,
	log mylogger.Logger,
	broker ports.IDispatchBroker,
	matcher ports.IMatcher,
) *Consumer {
	return &Consumer{
		ctx:     ctx,
		wg:      wg,
		mylog:   log,
		broker:  broker,
		matcher: matcher,
	}
}

func (c *Consumer) Run() error {
	deliveries, err := c.broker.ConsumeOrderCreated(c.ctx, "dispatch-matcher")
	if err != nil {
		return err
	}

	c.wg.Add(1)
	go c.work(c.ctx, deliveries)
	return nil
}

func (c *Consumer) work(ctx context.Context, ch <-chan amqp091.Delivery) {
	log := c.mylog.Action("work")
	defer func() {
		log.Info("order-created worker is done")
		c.wg.Done()
	}()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := c.handleOrderCreated(ctx, msg); err != nil {
				continue
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Consumer) handleOrderCreated(ctx context.Context, msg amqp091.Delivery) error {
	log := c.mylog.Action("handleOrderCreated")

	m := messagebrokerdto.OrderCreated{}
	if err := json.Unmarshal(msg.Body, &m); err != nil {
		log.Error("cannot unmarshal", err)
		msg.Nack(false, false)
		return err
	}

	if err := c.matcher.Announce(ctx, m.OrderID); err != nil {
		// A not-found or no-longer-pending order is not worth a requeue.
		if errors.Is(err, myerrors.ErrNotFound) || errors.Is(err, myerrors.ErrConflict) {
			log.Warn("skipping stale announcement", "order_id", m.OrderID)
			msg.Nack(false, false)
			return nil
		}
		log.Error("cannot announce order", err, "order_id", m.OrderID)
		msg.Nack(false, true)
		return err
	}

	return msg.Ack(false)
}
