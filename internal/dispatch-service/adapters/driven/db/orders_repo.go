package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ride-dispatch/internal/dispatch-service/core/domain/model"
	"ride-dispatch/internal/dispatch-service/core/myerrors"
	"ride-dispatch/internal/dispatch-service/core/ports"

	"github.com/jackc/pgx/v5"
)

const orderColumns = `
	order_id, client_id, COALESCE(driver_id, ''),
	pickup_lat, pickup_lng, pickup_address,
	dropoff_lat, dropoff_lng, dropoff_address,
	distance_km, duration_min, price, final_price,
	car_class, payment_method, status,
	created_at, accepted_at, arrived_at, started_at, completed_at, cancelled_at,
	COALESCE(cancel_reason, ''), COALESCE(cancelled_by, '')`

type OrdersRepo struct {
	db *DB
}

func NewOrdersRepo(db *DB) ports.IOrdersRepo {
	return &OrdersRepo{db: db}
}

func (or *OrdersRepo) GetOrder(ctx context.Context, orderID string) (model.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE order_id = $1`

	row := or.db.pool.QueryRow(ctx, q, orderID)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Order{}, fmt.Errorf("%w: order %s", myerrors.ErrNotFound, orderID)
	}
	return o, err
}

// UpdateOrderStatus is the conditional write all transition races resolve
// through: the patch applies only while status still equals expected, and
// the affected-row count says who won.
func (or *OrdersRepo) UpdateOrderStatus(ctx context.Context, orderID, expected string, patch ports.OrderPatch) (bool, error) {
	set := []string{"status = $3"}
	args := []any{orderID, expected, patch.Status}

	add := func(column string, val any) {
		args = append(args, val)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.DriverID != nil {
		add("driver_id", *patch.DriverID)
	}
	if patch.FinalPrice != nil {
		add("final_price", *patch.FinalPrice)
	}
	if patch.DurationMin != nil {
		add("duration_min", *patch.DurationMin)
	}
	if patch.AcceptedAt != nil {
		add("accepted_at", *patch.AcceptedAt)
	}
	if patch.ArrivedAt != nil {
		add("arrived_at", *patch.ArrivedAt)
	}
	if patch.StartedAt != nil {
		add("started_at", *patch.StartedAt)
	}
	if patch.CompletedAt != nil {
		add("completed_at", *patch.CompletedAt)
	}
	if patch.CancelledAt != nil {
		add("cancelled_at", *patch.CancelledAt)
	}
	if patch.CancelReason != nil {
		add("cancel_reason", *patch.CancelReason)
	}
	if patch.CancelledBy != nil {
		add("cancelled_by", *patch.CancelledBy)
	}

	q := fmt.Sprintf(`UPDATE orders SET %s WHERE order_id = $1 AND status = $2`, strings.Join(set, ", "))

	tag, err := or.db.pool.Exec(ctx, q, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (or *OrdersRepo) AppendStatusHistory(ctx context.Context, orderID, status, comment string) error {
	q := `INSERT INTO order_status_history(order_id, status, comment) VALUES ($1, $2, NULLIF($3, ''))`
	_, err := or.db.pool.Exec(ctx, q, orderID, status, comment)
	return err
}

func (or *OrdersRepo) FindActiveByClient(ctx context.Context, clientID string) (model.Order, error) {
	q := `SELECT ` + orderColumns + `
	FROM orders
	WHERE client_id = $1 AND status NOT IN ('COMPLETED', 'CANCELLED')
	ORDER BY created_at DESC
	LIMIT 1`

	row := or.db.pool.QueryRow(ctx, q, clientID)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Order{}, fmt.Errorf("%w: no active order for client %s", myerrors.ErrNotFound, clientID)
	}
	return o, err
}

func (or *OrdersRepo) FindActiveByDriver(ctx context.Context, driverID string) (model.Order, error) {
	q := `SELECT ` + orderColumns + `
	FROM orders
	WHERE driver_id = $1 AND status NOT IN ('COMPLETED', 'CANCELLED')
	ORDER BY created_at DESC
	LIMIT 1`

	row := or.db.pool.QueryRow(ctx, q, driverID)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Order{}, fmt.Errorf("%w: no active order for driver %s", myerrors.ErrNotFound, driverID)
	}
	return o, err
}

func (or *OrdersRepo) FindPendingOrders(ctx context.Context, limit int) ([]model.Order, error) {
	q := `SELECT ` + orderColumns + `
	FROM orders
	WHERE status = 'PENDING'
	ORDER BY created_at DESC
	LIMIT $1`

	rows, err := or.db.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (model.Order, error) {
	var o model.Order
	var carClass string
	err := row.Scan(
		&o.ID, &o.ClientID, &o.DriverID,
		&o.Pickup.Latitude, &o.Pickup.Longitude, &o.Pickup.Address,
		&o.Dropoff.Latitude, &o.Dropoff.Longitude, &o.Dropoff.Address,
		&o.DistanceKm, &o.DurationMin, &o.Price, &o.FinalPrice,
		&carClass, &o.PaymentMethod, &o.Status,
		&o.CreatedAt, &o.AcceptedAt, &o.ArrivedAt, &o.StartedAt, &o.CompletedAt, &o.CancelledAt,
		&o.CancelReason, &o.CancelledBy,
	)
	if err != nil {
		return model.Order{}, err
	}
	o.CarClass = model.CarClass(carClass)
	return o, nil
}
