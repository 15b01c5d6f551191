package model

import (
	"strings"
	"time"
)

const (
	DriverOnline  = "ONLINE"
	DriverOffline = "OFFLINE"
	DriverBusy    = "BUSY"
)

// CarClass is a ranked tier: a higher-ranked driver may serve a
// lower-ranked order, never the other way around.
type CarClass string

const (
	Economy  CarClass = "ECONOMY"
	Comfort  CarClass = "COMFORT"
	Business CarClass = "BUSINESS"
	Premium  CarClass = "PREMIUM"
)

var carClassRank = map[CarClass]int{
	Economy:  1,
	Comfort:  2,
	Business: 3,
	Premium:  4,
}

func ParseCarClass(s string) (CarClass, bool) {
	c := CarClass(strings.ToUpper(s))
	_, ok := carClassRank[c]
	return c, ok
}

func (c CarClass) Rank() int {
	return carClassRank[c]
}

// CanServe reports whether a driver of class c may take an order of class o.
func (c CarClass) CanServe(o CarClass) bool {
	return carClassRank[c] >= carClassRank[o]
}

func IsValidDriverStatus(s string) bool {
	switch s {
	case DriverOnline, DriverOffline, DriverBusy:
		return true
	}
	return false
}

// Driver is the durable profile; Status mirrors live presence.
type Driver struct {
	ID         string
	UserID     string
	Name       string
	CarClass   CarClass
	Status     string
	Verified   bool
	Rating     float64
	TotalTrips int64
	Earnings   float64

	Latitude   *float64
	Longitude  *float64
	LocatedAt  *time.Time
}

type Review struct {
	ID       string
	OrderID  string
	AuthorID string
	TargetID string
	Rating   int
	Comment  string
}
