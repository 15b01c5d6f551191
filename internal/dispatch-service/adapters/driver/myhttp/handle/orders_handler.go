package handle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"ride-dispatch/internal/mylogger"

	"ride-dispatch/internal/dispatch-service/core/domain/dto"
	"ride-dispatch/internal/dispatch-service/core/domain/model"
	"ride-dispatch/internal/dispatch-service/core/myerrors"
	"ride-dispatch/internal/dispatch-service/core/ports"
)

// OrdersHandler is the synchronous command/query surface, used when no live
// channel is up (initial page load, flaky mobile network). It mirrors the
// websocket commands one-to-one.
type OrdersHandler struct {
	orders  ports.IOrdersService
	matcher ports.IMatcher
	reviews ports.IReviewsService
	log     mylogger.Logger
}

func NewOrdersHandler(
	orders ports.IOrdersService,
	matcher ports.IMatcher,
	reviews ports.IReviewsService,
	log mylogger.Logger,
) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		matcher: matcher,
		reviews: reviews,
		log:     log,
	}
}

func (oh *OrdersHandler) AvailableOrders() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		driverID := r.Header.Get("X-DriverId")
		if driverID == "" {
			JsonError(w, http.StatusForbidden, errors.New("driver-only endpoint"))
			return
		}

		orders, err := oh.orders.AvailableFor(r.Context(), driverID)
		if err != nil {
			JsonError(w, myerrors.HTTPStatus(err), err)
			return
		}

		out := make([]dto.OrderResponse, 0, len(orders))
		for _, o := range orders {
			out = append(out, dto.FromOrder(o))
		}
		jsonResponse(w, http.StatusOK, out)
	}
}

func (oh *OrdersHandler) ActiveOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var order model.Order
		var err error

		if driverID := r.Header.Get("X-DriverId"); driverID != "" {
			order, err = oh.orders.ActiveForDriver(r.Context(), driverID)
		} else {
			order, err = oh.orders.ActiveForClient(r.Context(), r.Header.Get("X-UserId"))
		}
		if err != nil {
			JsonError(w, myerrors.HTTPStatus(err), err)
			return
		}
		jsonResponse(w, http.StatusOK, dto.FromOrder(order))
	}
}

func (oh *OrdersHandler) AcceptOrder() http.HandlerFunc {
	return oh.driverTransition(func(ctx context.Context, orderID, driverID string) (model.Order, error) {
		return oh.matcher.AttemptAccept(ctx, orderID, driverID)
	})
}

func (oh *OrdersHandler) ArriveOrder() http.HandlerFunc {
	return oh.driverTransition(func(ctx context.Context, orderID, driverID string) (model.Order, error) {
		return oh.orders.Arrive(ctx, orderID, driverID)
	})
}

func (oh *OrdersHandler) StartOrder() http.HandlerFunc {
	return oh.driverTransition(func(ctx context.Context, orderID, driverID string) (model.Order, error) {
		return oh.orders.Start(ctx, orderID, driverID)
	})
}

func (oh *OrdersHandler) CompleteOrder() http.HandlerFunc {
	return oh.driverTransition(func(ctx context.Context, orderID, driverID string) (model.Order, error) {
		return oh.orders.Complete(ctx, orderID, driverID)
	})
}

func (oh *OrdersHandler) driverTransition(
	do func(ctx context.Context, orderID, driverID string) (model.Order, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		driverID := r.Header.Get("X-DriverId")
		if driverID == "" {
			JsonError(w, http.StatusForbidden, errors.New("driver-only endpoint"))
			return
		}

		order, err := do(r.Context(), r.PathValue("order_id"), driverID)
		if err != nil {
			JsonError(w, myerrors.HTTPStatus(err), err)
			return
		}
		jsonResponse(w, http.StatusOK, dto.FromOrder(order))
	}
}

func (oh *OrdersHandler) CancelOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := dto.CancelRequestDto{}
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				JsonError(w, http.StatusBadRequest, err)
				return
			}
		}

		actorID, actorRole := callerIdentity(r)
		order, err := oh.orders.Cancel(r.Context(), r.PathValue("order_id"), actorID, actorRole, req.Reason)
		if err != nil {
			JsonError(w, myerrors.HTTPStatus(err), err)
			return
		}
		jsonResponse(w, http.StatusOK, dto.FromOrder(order))
	}
}

func (oh *OrdersHandler) SubmitReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := dto.ReviewRequestDto{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			JsonError(w, http.StatusBadRequest, err)
			return
		}

		orderID := r.PathValue("order_id")
		actorID, _ := callerIdentity(r)

		newRating, err := oh.reviews.SubmitReview(r.Context(), orderID, actorID, req.Rating, req.Comment)
		if err != nil {
			JsonError(w, myerrors.HTTPStatus(err), err)
			return
		}
		jsonResponse(w, http.StatusCreated, dto.ReviewResponseDto{OrderID: orderID, NewRating: newRating})
	}
}

// callerIdentity reads what the auth middleware stashed on the request: a
// driver acts under its driver id, everyone else under the user id.
func callerIdentity(r *http.Request) (actorID, actorRole string) {
	if driverID := r.Header.Get("X-DriverId"); driverID != "" {
		return driverID, model.CancelledByDriver
	}
	if r.Header.Get("X-Role") == "ADMIN" {
		return r.Header.Get("X-UserId"), model.CancelledByAdmin
	}
	return r.Header.Get("X-UserId"), model.CancelledByClient
}
