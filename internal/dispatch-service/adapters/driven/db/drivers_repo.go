package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ride-dispatch/internal/dispatch-service/core/domain/model"
	"ride-dispatch/internal/dispatch-service/core/myerrors"
	"ride-dispatch/internal/dispatch-service/core/ports"

	"github.com/jackc/pgx/v5"
)

const driverColumns = `
	driver_id, user_id, name, car_class, status, verified,
	rating, total_trips, earnings, latitude, longitude, located_at`

type DriversRepo struct {
	db *DB
}

func NewDriversRepo(db *DB) ports.IDriversRepo {
	return &DriversRepo{db: db}
}

func (dr *DriversRepo) GetDriver(ctx context.Context, driverID string) (model.Driver, error) {
	q := `SELECT ` + driverColumns + ` FROM drivers WHERE driver_id = $1`

	row := dr.db.pool.QueryRow(ctx, q, driverID)
	d, err := scanDriver(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Driver{}, fmt.Errorf("%w: driver %s", myerrors.ErrNotFound, driverID)
	}
	return d, err
}

func (dr *DriversRepo) UpdateDriverStatus(ctx context.Context, driverID, status string) error {
	q := `UPDATE drivers SET status = $2 WHERE driver_id = $1`

	tag, err := dr.db.pool.Exec(ctx, q, driverID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: driver %s", myerrors.ErrNotFound, driverID)
	}
	return nil
}

func (dr *DriversRepo) UpdateDriverLocation(ctx context.Context, driverID string, lat, lng float64, at time.Time) error {
	q := `UPDATE drivers SET latitude = $2, longitude = $3, located_at = $4 WHERE driver_id = $1`

	_, err := dr.db.pool.Exec(ctx, q, driverID, lat, lng, at)
	return err
}

func (dr *DriversRepo) FindDriversByStatus(ctx context.Context, status string) ([]model.Driver, error) {
	q := `SELECT ` + driverColumns + ` FROM drivers WHERE status = $1`

	rows, err := dr.db.pool.Query(ctx, q, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (dr *DriversRepo) ApplyTripCompletion(ctx context.Context, driverID string, earnings float64) error {
	q := `UPDATE drivers
	SET status = 'ONLINE', total_trips = total_trips + 1, earnings = earnings + $2
	WHERE driver_id = $1`

	tag, err := dr.db.pool.Exec(ctx, q, driverID, earnings)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: driver %s", myerrors.ErrNotFound, driverID)
	}
	return nil
}

func scanDriver(row pgx.Row) (model.Driver, error) {
	var d model.Driver
	var carClass string
	err := row.Scan(
		&d.ID, &d.UserID, &d.Name, &carClass, &d.Status, &d.Verified,
		&d.Rating, &d.TotalTrips, &d.Earnings, &d.Latitude, &d.Longitude, &d.LocatedAt,
	)
	if err != nil {
		return model.Driver{}, err
	}
	d.CarClass = model.CarClass(carClass)
	return d, nil
}
