package gateway

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Conn is the subset of a websocket connection the registry needs.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Registry maps a correlation key (ownerId for content jobs, searchId for
// searches) to at most one live connection. A new connection under the same
// key replaces the previous one.
type Registry struct {
	mu    sync.Mutex
	conns map[string]Conn
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]Conn)}
}

func (r *Registry) Register(key string, conn Conn) {
	r.mu.Lock()
	prev := r.conns[key]
	r.conns[key] = conn
	r.mu.Unlock()
	if prev != nil {
		prev.Close()
	}
}

// Unregister removes the entry for key only when it still points at conn, so
// a stale reader goroutine cannot evict a newer connection for the same key.
func (r *Registry) Unregister(key string, conn Conn) {
	r.mu.Lock()
	if r.conns[key] == conn {
		delete(r.conns, key)
	}
	r.mu.Unlock()
}

// Send delivers payload to the connection registered under key. Missing keys
// and write failures drop the payload; a broken connection is evicted so the
// next event does not hit it again.
func (r *Registry) Send(key string, payload []byte) bool {
	r.mu.Lock()
	conn, ok := r.conns[key]
	r.mu.Unlock()
	if !ok {
		return false
	}

	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		r.Unregister(key, conn)
		conn.Close()
		return false
	}
	return true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}
