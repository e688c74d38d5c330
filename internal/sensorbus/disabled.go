package sensorbus

import (
	"context"
	"net/http"
	"sync"
)

// DisabledBus is a no-op Bus implementation used when the motion board is
// absent (for -imu ""). It allows the daemon and admin routes to run without
// real hardware; gestures can still be driven through the HTTP API. It tracks
// subscribers so their channels can be deterministically closed on
// Unsubscribe() or Close(), allowing readers to unblock predictably during
// shutdown.
type DisabledBus struct {
	mu          sync.Mutex
	subscribers map[string]chan string
	closing     bool
}

func NewDisabledBus() *DisabledBus {
	return &DisabledBus{
		subscribers: make(map[string]chan string),
	}
}

func (d *DisabledBus) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string)

	d.mu.Lock()
	if d.closing {
		// If already closing, return a closed channel so callers don't block.
		close(ch)
		d.mu.Unlock()
		return id, ch
	}
	d.subscribers[id] = ch
	d.mu.Unlock()
	return id, ch
}

func (d *DisabledBus) Unsubscribe(id string) {
	d.mu.Lock()
	if ch, ok := d.subscribers[id]; ok {
		close(ch)
		delete(d.subscribers, id)
	}
	d.mu.Unlock()
}

func (d *DisabledBus) SendCommand(string) error { return nil }

func (d *DisabledBus) Monitor(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }

func (d *DisabledBus) Close() error {
	d.mu.Lock()
	if d.closing {
		d.mu.Unlock()
		return nil
	}
	d.closing = true
	for id, ch := range d.subscribers {
		close(ch)
		delete(d.subscribers, id)
	}
	d.mu.Unlock()
	return nil
}

func (d *DisabledBus) Initialize() error { return nil }

func (d *DisabledBus) AttachAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/debug/imu-disabled", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("imu disabled"))
	})
}
