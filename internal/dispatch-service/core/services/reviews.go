package services

import (
	"context"
	"fmt"
	"math"

	"ride-dispatch/internal/mylogger"

	"ride-dispatch/internal/dispatch-service/core/domain/model"
	"ride-dispatch/internal/dispatch-service/core/myerrors"
	"ride-dispatch/internal/dispatch-service/core/ports"

	"github.com/google/uuid"
)

// ReviewsService accepts a review for a completed order and recomputes the
// target's rating as the mean of everything they ever received, rounded to
// one decimal. Full recompute per review is O(n) and fine at this scale.
type ReviewsService struct {
	mylog   mylogger.Logger
	orders  ports.IOrdersRepo
	reviews ports.IReviewsRepo
}

func NewReviewsService(log mylogger.Logger, orders ports.IOrdersRepo, reviews ports.IReviewsRepo) *ReviewsService {
	return &ReviewsService{
		mylog:   log,
		orders:  orders,
		reviews: reviews,
	}
}

func (rs *ReviewsService) SubmitReview(ctx context.Context, orderID, authorID string, rating int, comment string) (float64, error) {
	log := rs.mylog.Action("SubmitReview")

	if rating < 1 || rating > 5 {
		return 0, fmt.Errorf("%w: rating must be in [1, 5]", myerrors.ErrValidation)
	}

	order, err := rs.orders.GetOrder(ctx, orderID)
	if err != nil {
		return 0, err
	}
	if order.Status != model.StatusCompleted {
		return 0, fmt.Errorf("%w: order %s is %s", myerrors.ErrConflict, orderID, order.Status)
	}

	// the target is whichever party the author is not
	var targetID string
	switch authorID {
	case order.ClientID:
		targetID = order.DriverID
	case order.DriverID:
		targetID = order.ClientID
	default:
		return 0, fmt.Errorf("%w: author %s is not a party to order %s", myerrors.ErrForbidden, authorID, orderID)
	}

	review := model.Review{
		ID:       uuid.NewString(),
		OrderID:  orderID,
		AuthorID: authorID,
		TargetID: targetID,
		Rating:   rating,
		Comment:  comment,
	}
	if err := rs.reviews.AddReview(ctx, review); err != nil {
		return 0, err
	}

	ratings, err := rs.reviews.RatingsFor(ctx, targetID)
	if err != nil {
		return 0, err
	}
	mean := MeanRating(ratings)
	if err := rs.reviews.SetRating(ctx, targetID, mean); err != nil {
		return 0, err
	}

	log.Info("review submitted", "order_id", orderID, "target_id", targetID, "rating", mean)
	return mean, nil
}

// MeanRating is the arithmetic mean rounded to one decimal place.
func MeanRating(ratings []int) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	return math.Round(float64(sum)/float64(len(ratings))*10) / 10
}
