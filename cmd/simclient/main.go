package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	websocketdto "ride-dispatch/internal/dispatch-service/core/domain/websocket_dto"
)

const locationUpdateInterval = 3 * time.Second

// simclient drives the dispatch websocket protocol end to end: it connects
// as a driver, authenticates, reports a wandering location, and accepts the
// first offer it sees.
func main() {
	driverID := flag.String("driver_id", "", "driver id to connect as")
	token := flag.String("token", "", "bearer token for authentication")
	wsURL := flag.String("url", "ws://localhost:3000/ws", "dispatch websocket endpoint")
	autoAccept := flag.Bool("accept", true, "accept the first offered order")
	flag.Parse()

	if *driverID == "" || *token == "" {
		log.Fatal("driver_id and token are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := &Logger{}
	client := NewWebSocketClient(ctx, logger)
	if err := client.Connect(*wsURL); err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer client.Close()

	auth, err := websocketdto.NewEvent(websocketdto.InAuth, websocketdto.AuthMessage{
		Token:    *token,
		DriverID: *driverID,
		Type:     "driver",
	})
	if err != nil {
		log.Fatalf("failed to build auth message: %v", err)
	}
	if err := client.SendMessage(auth); err != nil {
		log.Fatalf("failed to authenticate: %v", err)
	}

	go reportLocations(ctx, client, logger, *driverID)

	err = client.ReadMessages(func(payload []byte) error {
		var event websocketdto.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			return err
		}

		switch event.Type {
		case websocketdto.OutAuthSuccess:
			logger.Info("authenticated as %s", *driverID)

		case websocketdto.OutOrderAvailable:
			var offer websocketdto.OrderSummary
			if err := json.Unmarshal(event.Data, &offer); err != nil {
				return err
			}
			logger.Info("offer received: order %s (%s, %.0f)", offer.OrderID, offer.CarClass, offer.Price)
			if *autoAccept {
				accept, err := websocketdto.NewEvent(websocketdto.InOrderAccept, websocketdto.OrderActionMessage{
					OrderID:  offer.OrderID,
					DriverID: *driverID,
				})
				if err != nil {
					return err
				}
				return client.SendMessage(accept)
			}

		case websocketdto.OutAcceptSuccess:
			logger.Info("accept confirmed")

		case websocketdto.OutAcceptError:
			logger.Warn("accept rejected: %s", string(event.Data))

		case websocketdto.OutOrderTaken:
			logger.Warn("offer retracted: %s", string(event.Data))

		default:
			logger.WebSocket("event %s: %s", event.Type, string(event.Data))
		}
		return nil
	})
	if err != nil {
		logger.Error("read loop ended: %v", err)
	}
}

func reportLocations(ctx context.Context, client *WebSocketClient, logger *Logger, driverID string) {
	lat, lng := 51.1694, 71.4491
	t := time.NewTicker(locationUpdateInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			lat += (rand.Float64() - 0.5) / 500
			lng += (rand.Float64() - 0.5) / 500
			event, err := websocketdto.NewEvent(websocketdto.InLocation, websocketdto.LocationMessage{
				DriverID:  driverID,
				Latitude:  lat,
				Longitude: lng,
			})
			if err != nil {
				continue
			}
			if err := client.SendMessage(event); err != nil {
				logger.Error("location report failed: %v", err)
				return
			}
		}
	}
}
