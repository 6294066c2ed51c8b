package presence

import (
	"sync"

	errprocess "social_network_service/pkg/err"

	"go.uber.org/zap"
)

// Handle 一條可以推送事件的連線
type Handle interface {
	ID() string
	Emit(event string, data interface{}) error
}

// Registry member id -> 目前的連線，每個 member 只保留最後一次連上的連線
type Registry struct {
	mu      sync.RWMutex
	handles map[string]Handle
}

// NewRegistry create Registry
func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]Handle)}
}

// Register 覆蓋舊連線，回傳被取代的 handle (沒有則 nil)
func (r *Registry) Register(memberID string, h Handle) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.handles[memberID]
	r.handles[memberID] = h
	return prev
}

// Lookup 不在線回傳 false
func (r *Registry) Lookup(memberID string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[memberID]
	return h, ok
}

// Remove 可重複呼叫
func (r *Registry) Remove(memberID string) {
	r.mu.Lock()
	delete(r.handles, memberID)
	r.mu.Unlock()
}

// Release 只有當 member 目前的連線還是 h 時才移除
func (r *Registry) Release(memberID string, h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.handles[memberID]
	if !ok || cur.ID() != h.ID() {
		return false
	}
	delete(r.handles, memberID)
	return true
}

// Len online member 數
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// Emit 推給單一 member，不在線時不做事
func (r *Registry) Emit(memberID, event string, data interface{}) bool {
	h, ok := r.Lookup(memberID)
	if !ok {
		return false
	}
	if err := h.Emit(event, data); err != nil {
		_ = errprocess.Log("emit failed", err, zap.String("member", memberID), zap.String("event", event))
		return false
	}
	return true
}

// Broadcast 推給 except 以外的所有連線
func (r *Registry) Broadcast(event string, data interface{}, except string) int {
	r.mu.RLock()
	targets := make(map[string]Handle, len(r.handles))
	for id, h := range r.handles {
		if id != except {
			targets[id] = h
		}
	}
	r.mu.RUnlock()

	sent := 0
	for id, h := range targets {
		if err := h.Emit(event, data); err != nil {
			_ = errprocess.Log("broadcast failed", err, zap.String("member", id), zap.String("event", event))
			continue
		}
		sent++
	}
	return sent
}
