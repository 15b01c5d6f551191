package db

import (
	"context"

	"ride-dispatch/internal/dispatch-service/core/domain/model"
	"ride-dispatch/internal/dispatch-service/core/ports"
)

type PaymentsRepo struct {
	db *DB
}

func NewPaymentsRepo(db *DB) ports.IPaymentsRepo {
	return &PaymentsRepo{db: db}
}

func (pr *PaymentsRepo) CreatePayment(ctx context.Context, p model.Payment) error {
	q := `INSERT INTO payments(payment_id, order_id, user_id, amount, method, status)
	VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := pr.db.pool.Exec(ctx, q, p.ID, p.OrderID, p.UserID, p.Amount, p.Method, p.Status)
	return err
}
