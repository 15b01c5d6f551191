package dto

import (
	"time"

	"ride-dispatch/internal/dispatch-service/core/domain/model"
)

type OrderResponse struct {
	OrderID       string     `json:"order_id"`
	ClientID      string     `json:"client_id"`
	DriverID      string     `json:"driver_id,omitempty"`
	PickupLat     float64    `json:"pickup_lat"`
	PickupLng     float64    `json:"pickup_lng"`
	PickupAddress string     `json:"pickup_address"`
	DropoffLat    float64    `json:"dropoff_lat"`
	DropoffLng    float64    `json:"dropoff_lng"`
	DropoffAddr   string     `json:"dropoff_address"`
	DistanceKm    float64    `json:"distance_km"`
	DurationMin   float64    `json:"duration_min,omitempty"`
	Price         float64    `json:"price"`
	FinalPrice    float64    `json:"final_price,omitempty"`
	CarClass      string     `json:"car_class"`
	PaymentMethod string     `json:"payment_method"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
	CancelledBy   string     `json:"cancelled_by,omitempty"`
	CancelReason  string     `json:"cancel_reason,omitempty"`
}

func FromOrder(o model.Order) OrderResponse {
	return OrderResponse{
		OrderID:       o.ID,
		ClientID:      o.ClientID,
		DriverID:      o.DriverID,
		PickupLat:     o.Pickup.Latitude,
		PickupLng:     o.Pickup.Longitude,
		PickupAddress: o.Pickup.Address,
		DropoffLat:    o.Dropoff.Latitude,
		DropoffLng:    o.Dropoff.Longitude,
		DropoffAddr:   o.Dropoff.Address,
		DistanceKm:    o.DistanceKm,
		DurationMin:   o.DurationMin,
		Price:         o.Price,
		FinalPrice:    o.FinalPrice,
		CarClass:      string(o.CarClass),
		PaymentMethod: o.PaymentMethod,
		Status:        o.Status,
		CreatedAt:     o.CreatedAt,
		CompletedAt:   o.CompletedAt,
		CancelledAt:   o.CancelledAt,
		CancelledBy:   o.CancelledBy,
		CancelReason:  o.CancelReason,
	}
}

type CancelRequestDto struct {
	Reason string `json:"reason,omitempty"`
}

type ReviewRequestDto struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

type ReviewResponseDto struct {
	OrderID   string  `json:"order_id"`
	NewRating float64 `json:"new_rating"`
}
