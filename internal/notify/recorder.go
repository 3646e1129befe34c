package notify

import (
	"context"
	"sync"

	"alice/internal/core"
)

// Recorder keeps the most recent notifications in a fixed-size ring so the
// API can show them back to the user.
type Recorder struct {
	mu    sync.Mutex
	buf   []core.Notification
	next  int
	count int
}

func NewRecorder(size int) *Recorder {
	if size < 1 {
		size = 1
	}
	return &Recorder{buf: make([]core.Notification, size)}
}

func (r *Recorder) Notify(_ context.Context, n core.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = n
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
	return nil
}

// Recent returns up to limit notifications for email, newest first. An empty
// email matches every notification; limit <= 0 means no limit.
func (r *Recorder) Recent(email string, limit int) []core.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.Notification, 0, r.count)
	for i := 1; i <= r.count; i++ {
		n := r.buf[(r.next-i+len(r.buf))%len(r.buf)]
		if email != "" && n.Email != email {
			continue
		}
		out = append(out, n)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
