// Package ws fans engine events out to websocket clients. Every socket gets
// its own bus subscription and writer goroutine; a slow or dead socket is
// dropped without touching the match path or other clients.
package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/SparshBisen/Crypto/bus"
	"github.com/SparshBisen/Crypto/service"
)

const writeWait = 5 * time.Second

type Hub struct {
	engine   *service.MatchingEngine
	log      *logrus.Logger
	upgrader websocket.Upgrader
}

func NewHub(engine *service.MatchingEngine, log *logrus.Logger) *Hub {
	return &Hub{
		engine: engine,
		log:    log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Register mounts the stream routes on an echo instance.
func (h *Hub) Register(e *echo.Echo) {
	e.GET("/ws/trades", h.handleTrades)
	e.GET("/ws/market-data/:symbol", h.handleMarketData)
	e.GET("/ws/bbo/:symbol", h.handleBbo)
}

func (h *Hub) handleTrades(c echo.Context) error {
	return h.stream(c, bus.KindTrade, "", nil)
}

func (h *Hub) handleMarketData(c echo.Context) error {
	symbol := c.Param("symbol")
	var initial any
	if snap, err := h.engine.Snapshot(symbol, 0); err == nil {
		initial = snap
	}
	return h.stream(c, bus.KindDepth, symbol, initial)
}

func (h *Hub) handleBbo(c echo.Context) error {
	symbol := c.Param("symbol")
	var initial any
	if bbo, err := h.engine.Bbo(symbol); err == nil {
		initial = bbo
	}
	return h.stream(c, bus.KindBbo, symbol, initial)
}

// stream upgrades the connection, optionally sends an initial snapshot, and
// forwards matching events until either side goes away.
func (h *Hub) stream(c echo.Context, kind bus.Kind, symbol string, initial any) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	sub := h.engine.Subscribe(kind)
	defer h.engine.Unsubscribe(sub)
	defer conn.Close()

	if initial != nil {
		if err := h.writeJSON(conn, initial); err != nil {
			return nil
		}
	}

	// Reader goroutine: we ignore client frames but need the read pump to
	// notice a closed socket.
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
			return nil
		case e, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if symbol != "" && e.Symbol != symbol {
				continue
			}
			if err := h.writeJSON(conn, e.Payload); err != nil {
				h.log.WithError(err).Debug("ws: client dropped")
				return nil
			}
		}
	}
}

func (h *Hub) writeJSON(conn *websocket.Conn, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, payload)
}
