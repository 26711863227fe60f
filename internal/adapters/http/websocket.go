package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/cityplanner/internal/core/domain"
	"github.com/samirrijal/cityplanner/internal/mapview"
	"github.com/samirrijal/cityplanner/internal/pkg/metrics"
)

const wsPingInterval = 30 * time.Second

// wsMessage is sent from the page. The only action is "refresh", which resends
// the current view.
type wsMessage struct {
	Action string `json:"action"`
}

// wsEvent is pushed to the page.
type wsEvent struct {
	Type string        `json:"type"` // "view" | "error"
	View *mapview.View `json:"view,omitempty"`
	Err  string        `json:"error,omitempty"`
}

// WebSocketHandler pushes the full map view on connect and after every store
// or client change. Bursts of changes are coalesced into one push of the latest
// state.
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		remoteAddr := c.RemoteAddr().String()
		slog.Debug("ws client connected", "remote", remoteAddr)

		var mu sync.Mutex
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		dirty := make(chan struct{}, 1)
		markDirty := func() {
			select {
			case dirty <- struct{}{}:
			default:
			}
		}
		cancelStore := deps.Store.Subscribe(func(domain.MarkerSnapshot) { markDirty() })
		defer cancelStore()
		cancelClient := deps.Client.Subscribe(func(domain.ClientStatus) { markDirty() })
		defer cancelClient()

		done := make(chan struct{})
		defer close(done)
		markDirty()

		go func() {
			ticker := time.NewTicker(wsPingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-dirty:
					v := deps.View()
					if err := writeJSON(wsEvent{Type: "view", View: &v}); err != nil {
						return
					}
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(wsEvent{Type: "error", Err: "invalid JSON"})
				continue
			}
			switch m.Action {
			case "refresh":
				markDirty()
			default:
				_ = writeJSON(wsEvent{Type: "error", Err: "unknown action: " + m.Action})
			}
		}

		slog.Debug("ws client disconnected", "remote", remoteAddr)
	}
}
