package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

type WebSocketClient struct {
	conn   *websocket.Conn
	ctx    context.Context
	logger *Logger
}

func NewWebSocketClient(ctx context.Context, logger *Logger) *WebSocketClient {
	return &WebSocketClient{
		ctx:    ctx,
		logger: logger,
	}
}

func (w *WebSocketClient) Connect(url string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(w.ctx, url, nil)
	if err != nil {
		return fmt.Errorf("connecting to websocket: %w", err)
	}

	w.conn = conn
	w.logger.WebSocket("connected to %s", url)
	return nil
}

func (w *WebSocketClient) Close() error {
	if w.conn != nil {
		return w.conn.Close()
	}
	return nil
}

func (w *WebSocketClient) SendMessage(message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}

	if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}

	time.Sleep(50 * time.Millisecond) // don't flood the server
	return nil
}

func (w *WebSocketClient) ReadMessages(handler func(payload []byte) error) error {
	for {
		select {
		case <-w.ctx.Done():
			w.logger.WebSocket("read loop stopped: context cancelled")
			return nil
		default:
			_, payload, err := w.conn.ReadMessage()
			if err != nil {
				return fmt.Errorf("reading message: %w", err)
			}

			if err := handler(payload); err != nil {
				w.logger.Error("error handling message: %v", err)
			}
		}
	}
}
