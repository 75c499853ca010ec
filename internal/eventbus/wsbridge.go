package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"nhooyr.io/websocket"
)

// frame is the JSON shape rebroadcast to observer connections.
type frame struct {
	Kind string `json:"kind"`
	Data any    `json:"data"`
}

// WSBridge is an http.Handler that upgrades each connection to a
// websocket and rebroadcasts bus events to it as JSON frames. It is an
// observer transport, not a UI: it has no rendering, only a frame format.
type WSBridge struct {
	bus    *Bus
	logger *slog.Logger
}

// NewWSBridge wires a bridge for bus. logger may be nil.
func NewWSBridge(bus *Bus, logger *slog.Logger) *WSBridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSBridge{bus: bus, logger: logger}
}

// ServeHTTP implements http.Handler.
func (b *WSBridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		b.logger.Warn("eventbus: websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	id, events := b.bus.Subscribe()
	defer b.bus.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		case e, ok := <-events:
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			f := toFrame(e)
			if err := writeFrame(ctx, conn, f); err != nil {
				b.logger.Debug("eventbus: write failed, closing observer", "error", err)
				return
			}
		}
	}
}

func toFrame(e Event) frame {
	switch v := e.(type) {
	case StateChanged:
		return frame{Kind: v.eventKind(), Data: v}
	case Progress:
		return frame{Kind: v.eventKind(), Data: v}
	default:
		return frame{Kind: "unknown", Data: v}
	}
}

func writeFrame(ctx context.Context, conn *websocket.Conn, f frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
