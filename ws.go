package main

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// EchoHandler mirrors messages back; useful for connectivity checks from
// the frontend.
func EchoHandler(w http.ResponseWriter, r *http.Request) {
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		ENV.Logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer c.Close()
	for {
		mt, message, err := c.ReadMessage()
		if err != nil {
			return
		}
		if err = c.WriteMessage(mt, message); err != nil {
			return
		}
	}
}

// TelemetryHandler streams decoded telemetry records as JSON messages until
// the client disconnects. Bus timeouts produce no message; the poll just
// continues.
func TelemetryHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		ENV.Logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// Reads only carry control frames here; run them down in the background
	// so close handshakes work.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		default:
		}

		rec, err := ENV.Brain.PumpTelemetry(100 * time.Millisecond)
		if err != nil {
			ENV.Logger.Warn("telemetry pump failed", zap.Error(err))
			return
		}
		if rec == nil {
			continue
		}
		if err := conn.WriteJSON(rec); err != nil {
			return
		}
	}
}
