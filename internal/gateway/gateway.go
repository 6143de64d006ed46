package gateway

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

// Gateway upgrades websocket clients and keeps one registry per event
// stream. Content clients subscribe by ownerId, search clients by searchId.
type Gateway struct {
	content  *Registry
	search   *Registry
	upgrader websocket.Upgrader
}

func New() *Gateway {
	return &Gateway{
		content: NewRegistry(),
		search:  NewRegistry(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (g *Gateway) ContentRegistry() *Registry { return g.content }
func (g *Gateway) SearchRegistry() *Registry  { return g.search }

// HandleContent serves GET /ws/content?userId=<ownerId>.
func (g *Gateway) HandleContent(w http.ResponseWriter, r *http.Request) {
	g.serve(w, r, g.content, "userId")
}

// HandleSearch serves GET /ws/search?searchId=<searchId>.
func (g *Gateway) HandleSearch(w http.ResponseWriter, r *http.Request) {
	g.serve(w, r, g.search, "searchId")
}

func (g *Gateway) serve(w http.ResponseWriter, r *http.Request, registry *Registry, param string) {
	key := r.URL.Query().Get(param)
	if key == "" {
		slog.Warn("websocket connection rejected, missing key", "param", param)
		http.Error(w, param+" query parameter is required", http.StatusBadRequest)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	registry.Register(key, conn)
	slog.Info("websocket client connected", "param", param, "key", key)

	go func() {
		defer func() {
			registry.Unregister(key, conn)
			conn.Close()
			slog.Info("websocket client disconnected", "param", param, "key", key)
		}()
		for {
			// Inbound messages are ignored; the read loop only detects close.
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
