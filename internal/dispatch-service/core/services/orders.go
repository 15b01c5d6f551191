package services

import (
	"context"
	"fmt"
	"time"

	"ride-dispatch/internal/mylogger"

	"ride-dispatch/internal/dispatch-service/core/domain/model"
	"ride-dispatch/internal/dispatch-service/core/myerrors"
	"ride-dispatch/internal/dispatch-service/core/ports"

	"github.com/google/uuid"
)

// OrdersService drives the order lifecycle. Every transition is a
// precondition-checked conditional write: the store only applies the patch
// while the status still matches, so concurrent callers race on the CAS and
// exactly one wins.
type OrdersService struct {
	ctx   context.Context
	mylog mylogger.Logger

	orders   ports.IOrdersRepo
	drivers  ports.IDriversRepo
	payments ports.IPaymentsRepo
	fanout   ports.IFanout

	// OnOrderAbandoned is invoked when a cancellation takes an order out of
	// PENDING, so outstanding offers can be retracted. Set once at wiring
	// time.
	OnOrderAbandoned func(orderID string)
}

func NewOrdersService(
	ctx context.Context,
	log mylogger.Logger,
	orders ports.IOrdersRepo,
	drivers ports.IDriversRepo,
	payments ports.IPaymentsRepo,
	fanout ports.IFanout,
) *OrdersService {
	return &OrdersService{
		ctx:      ctx,
		mylog:    log,
		orders:   orders,
		drivers:  drivers,
		payments: payments,
		fanout:   fanout,
	}
}

func (os *OrdersService) Accept(ctx context.Context, orderID, driverID string) (model.Order, error) {
	log := os.mylog.Action("Accept")
	if orderID == "" || driverID == "" {
		return model.Order{}, fmt.Errorf("%w: empty order or driver id", myerrors.ErrValidation)
	}

	order, err := os.orders.GetOrder(ctx, orderID)
	if err != nil {
		return model.Order{}, err
	}
	if order.Status != model.StatusPending {
		return model.Order{}, fmt.Errorf("%w: order %s is %s", myerrors.ErrConflict, orderID, order.Status)
	}

	now := time.Now()
	ok, err := os.orders.UpdateOrderStatus(ctx, orderID, model.StatusPending, ports.OrderPatch{
		Status:     model.StatusAccepted,
		DriverID:   &driverID,
		AcceptedAt: &now,
	})
	if err != nil {
		return model.Order{}, err
	}
	if !ok {
		// lost the race to another driver
		return model.Order{}, fmt.Errorf("%w: order %s no longer available", myerrors.ErrConflict, orderID)
	}

	order.Status = model.StatusAccepted
	order.DriverID = driverID
	order.AcceptedAt = &now

	if err := os.orders.AppendStatusHistory(ctx, orderID, model.StatusAccepted, ""); err != nil {
		log.Error("cannot append status history", err, "order_id", orderID)
	}
	if err := os.drivers.UpdateDriverStatus(ctx, driverID, model.DriverBusy); err != nil {
		log.Error("cannot set driver busy", err, "driver_id", driverID)
	}

	driver, err := os.drivers.GetDriver(ctx, driverID)
	if err != nil {
		log.Error("cannot load driver profile", err, "driver_id", driverID)
		driver = model.Driver{ID: driverID}
	}
	os.fanout.OrderAccepted(ctx, order, driver)

	log.Info("order accepted", "order_id", orderID, "driver_id", driverID)
	return order, nil
}

func (os *OrdersService) Arrive(ctx context.Context, orderID, driverID string) (model.Order, error) {
	now := time.Now()
	return os.driverTransition(ctx, "Arrive", orderID, driverID,
		model.StatusAccepted, model.StatusArrived,
		ports.OrderPatch{Status: model.StatusArrived, ArrivedAt: &now})
}

func (os *OrdersService) Start(ctx context.Context, orderID, driverID string) (model.Order, error) {
	now := time.Now()
	return os.driverTransition(ctx, "Start", orderID, driverID,
		model.StatusArrived, model.StatusInProgress,
		ports.OrderPatch{Status: model.StatusInProgress, StartedAt: &now})
}

// driverTransition covers the arrive/start legs: same authorization rule,
// same CAS discipline, same side effects.
func (os *OrdersService) driverTransition(
	ctx context.Context,
	action, orderID, driverID, expected, next string,
	patch ports.OrderPatch,
) (model.Order, error) {
	log := os.mylog.Action(action)

	order, err := os.orders.GetOrder(ctx, orderID)
	if err != nil {
		return model.Order{}, err
	}
	if order.DriverID != driverID {
		return model.Order{}, fmt.Errorf("%w: driver %s is not assigned to order %s", myerrors.ErrForbidden, driverID, orderID)
	}
	if order.Status != expected {
		return model.Order{}, fmt.Errorf("%w: order %s is %s, want %s", myerrors.ErrConflict, orderID, order.Status, expected)
	}

	ok, err := os.orders.UpdateOrderStatus(ctx, orderID, expected, patch)
	if err != nil {
		return model.Order{}, err
	}
	if !ok {
		return model.Order{}, fmt.Errorf("%w: order %s changed underneath", myerrors.ErrConflict, orderID)
	}

	order.Status = next
	order.ArrivedAt = coalesceTime(order.ArrivedAt, patch.ArrivedAt)
	order.StartedAt = coalesceTime(order.StartedAt, patch.StartedAt)

	if err := os.orders.AppendStatusHistory(ctx, orderID, next, ""); err != nil {
		log.Error("cannot append status history", err, "order_id", orderID)
	}
	os.fanout.OrderStatus(ctx, order)

	log.Info("order transitioned", "order_id", orderID, "status", next)
	return order, nil
}

func (os *OrdersService) Complete(ctx context.Context, orderID, driverID string) (model.Order, error) {
	log := os.mylog.Action("Complete")

	order, err := os.orders.GetOrder(ctx, orderID)
	if err != nil {
		return model.Order{}, err
	}
	if order.DriverID != driverID {
		return model.Order{}, fmt.Errorf("%w: driver %s is not assigned to order %s", myerrors.ErrForbidden, driverID, orderID)
	}
	if order.Status != model.StatusInProgress {
		return model.Order{}, fmt.Errorf("%w: order %s is %s, want %s", myerrors.ErrConflict, orderID, order.Status, model.StatusInProgress)
	}

	now := time.Now()
	finalPrice := order.Price
	duration := 0.0
	if order.StartedAt != nil {
		duration = now.Sub(*order.StartedAt).Minutes()
	}

	ok, err := os.orders.UpdateOrderStatus(ctx, orderID, model.StatusInProgress, ports.OrderPatch{
		Status:      model.StatusCompleted,
		FinalPrice:  &finalPrice,
		DurationMin: &duration,
		CompletedAt: &now,
	})
	if err != nil {
		return model.Order{}, err
	}
	if !ok {
		return model.Order{}, fmt.Errorf("%w: order %s changed underneath", myerrors.ErrConflict, orderID)
	}

	order.Status = model.StatusCompleted
	order.FinalPrice = finalPrice
	order.DurationMin = duration
	order.CompletedAt = &now

	if err := os.orders.AppendStatusHistory(ctx, orderID, model.StatusCompleted, ""); err != nil {
		log.Error("cannot append status history", err, "order_id", orderID)
	}
	if err := os.drivers.ApplyTripCompletion(ctx, driverID, finalPrice); err != nil {
		log.Error("cannot apply trip completion", err, "driver_id", driverID)
	}

	paymentStatus := model.PaymentStatusPending
	if order.PaymentMethod == model.PaymentMethodCash {
		paymentStatus = model.PaymentStatusCompleted
	}
	payment := model.Payment{
		ID:      uuid.NewString(),
		OrderID: orderID,
		UserID:  order.ClientID,
		Amount:  finalPrice,
		Method:  order.PaymentMethod,
		Status:  paymentStatus,
	}
	if err := os.payments.CreatePayment(ctx, payment); err != nil {
		log.Error("cannot create payment record", err, "order_id", orderID)
	}

	os.fanout.OrderCompleted(ctx, order)

	log.Info("order completed", "order_id", orderID, "final_price", finalPrice, "duration_min", duration)
	return order, nil
}

func (os *OrdersService) Cancel(ctx context.Context, orderID, actorID, actorRole, reason string) (model.Order, error) {
	log := os.mylog.Action("Cancel")

	order, err := os.orders.GetOrder(ctx, orderID)
	if err != nil {
		return model.Order{}, err
	}

	var cancelledBy string
	switch {
	case actorRole == model.CancelledByAdmin:
		cancelledBy = model.CancelledByAdmin
	case actorID == order.ClientID:
		cancelledBy = model.CancelledByClient
	case order.DriverID != "" && actorID == order.DriverID:
		cancelledBy = model.CancelledByDriver
	default:
		return model.Order{}, fmt.Errorf("%w: actor %s has no standing on order %s", myerrors.ErrForbidden, actorID, orderID)
	}

	if !model.CanTransition(order.Status, model.StatusCancelled) {
		return model.Order{}, fmt.Errorf("%w: order %s is %s", myerrors.ErrConflict, orderID, order.Status)
	}
	wasPending := order.Status == model.StatusPending

	now := time.Now()
	ok, err := os.orders.UpdateOrderStatus(ctx, orderID, order.Status, ports.OrderPatch{
		Status:       model.StatusCancelled,
		CancelledAt:  &now,
		CancelReason: &reason,
		CancelledBy:  &cancelledBy,
	})
	if err != nil {
		return model.Order{}, err
	}
	if !ok {
		return model.Order{}, fmt.Errorf("%w: order %s changed underneath", myerrors.ErrConflict, orderID)
	}

	order.Status = model.StatusCancelled
	order.CancelledAt = &now
	order.CancelReason = reason
	order.CancelledBy = cancelledBy

	if err := os.orders.AppendStatusHistory(ctx, orderID, model.StatusCancelled, reason); err != nil {
		log.Error("cannot append status history", err, "order_id", orderID)
	}
	if order.DriverID != "" {
		if err := os.drivers.UpdateDriverStatus(ctx, order.DriverID, model.DriverOnline); err != nil {
			log.Error("cannot set driver online", err, "driver_id", order.DriverID)
		}
	}
	if wasPending && os.OnOrderAbandoned != nil {
		os.OnOrderAbandoned(orderID)
	}
	os.fanout.OrderCancelled(ctx, order)

	log.Info("order cancelled", "order_id", orderID, "cancelled_by", cancelledBy, "reason", reason)
	return order, nil
}

func (os *OrdersService) ActiveForClient(ctx context.Context, clientID string) (model.Order, error) {
	return os.orders.FindActiveByClient(ctx, clientID)
}

func (os *OrdersService) ActiveForDriver(ctx context.Context, driverID string) (model.Order, error) {
	return os.orders.FindActiveByDriver(ctx, driverID)
}

// AvailableFor returns recent PENDING orders the driver's class can serve,
// the pull-style counterpart of the push offer.
func (os *OrdersService) AvailableFor(ctx context.Context, driverID string) ([]model.Order, error) {
	driver, err := os.drivers.GetDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}

	pending, err := os.orders.FindPendingOrders(ctx, catchUpWindow)
	if err != nil {
		return nil, err
	}

	var out []model.Order
	for _, o := range pending {
		if driver.CarClass.CanServe(o.CarClass) {
			out = append(out, o)
		}
	}
	return out, nil
}

func coalesceTime(current, next *time.Time) *time.Time {
	if next != nil {
		return next
	}
	return current
}
