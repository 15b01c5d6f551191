package db

import (
	"context"

	"ride-dispatch/internal/dispatch-service/core/domain/model"
	"ride-dispatch/internal/dispatch-service/core/ports"
)

type ReviewsRepo struct {
	db *DB
}

func NewReviewsRepo(db *DB) ports.IReviewsRepo {
	return &ReviewsRepo{db: db}
}

func (rr *ReviewsRepo) AddReview(ctx context.Context, r model.Review) error {
	q := `INSERT INTO reviews(review_id, order_id, author_id, target_id, rating, comment)
	VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))`

	_, err := rr.db.pool.Exec(ctx, q, r.ID, r.OrderID, r.AuthorID, r.TargetID, r.Rating, r.Comment)
	return err
}

func (rr *ReviewsRepo) RatingsFor(ctx context.Context, targetID string) ([]int, error) {
	q := `SELECT rating FROM reviews WHERE target_id = $1`

	rows, err := rr.db.pool.Query(ctx, q, targetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ratings []int
	for rows.Next() {
		var r int
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		ratings = append(ratings, r)
	}
	return ratings, rows.Err()
}

// SetRating lands on the drivers row when the target is a driver and is a
// no-op for client targets (client ratings live with the profile
// collaborator).
func (rr *ReviewsRepo) SetRating(ctx context.Context, targetID string, rating float64) error {
	q := `UPDATE drivers SET rating = $2 WHERE driver_id = $1`

	_, err := rr.db.pool.Exec(ctx, q, targetID, rating)
	return err
}
