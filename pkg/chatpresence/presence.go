// Package chatpresence keeps the latest typing state reported by the gateway
// for each contact phone. Entries go stale after a short window because the
// gateway does not always send the matching "paused" callback.
package chatpresence

import (
	"context"
	"strings"
	"sync"
	"time"
)

const DefaultTTL = 12 * time.Second

const (
	StateComposing = "COMPOSING"
	StateRecording = "RECORDING"
	StatePaused    = "PAUSED"
	StateAvailable = "AVAILABLE"
	StateUnknown   = "UNKNOWN"
)

type entry struct {
	state      string
	instanceID string
	updatedAt  time.Time
}

// Snapshot is the presence of one phone as last reported.
type Snapshot struct {
	Phone      string    `json:"phone"`
	State      string    `json:"state"`
	InstanceID string    `json:"instance_id,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

type Tracker struct {
	mu    sync.Mutex
	ttl   time.Duration
	store map[string]entry
	now   func() time.Time
}

func NewTracker(ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tracker{ttl: ttl, store: map[string]entry{}, now: time.Now}
}

func (t *Tracker) Update(instanceID, phone, state string) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return
	}
	state = strings.ToUpper(strings.TrimSpace(state))
	if state == "" {
		state = StateUnknown
	}

	t.mu.Lock()
	t.store[phone] = entry{state: state, instanceID: instanceID, updatedAt: t.now()}
	t.mu.Unlock()
}

// Lookup returns the current snapshot; stale entries are dropped and reported as unknown.
func (t *Tracker) Lookup(phone string) Snapshot {
	phone = strings.TrimSpace(phone)
	snap := Snapshot{Phone: phone, State: StateUnknown}

	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.store[phone]
	if !ok {
		return snap
	}
	if t.now().Sub(e.updatedAt) > t.ttl {
		delete(t.store, phone)
		return snap
	}
	snap.State = e.state
	snap.InstanceID = e.instanceID
	snap.UpdatedAt = e.updatedAt
	return snap
}

func (t *Tracker) IsComposing(phone string) bool {
	switch t.Lookup(phone).State {
	case StateComposing, StateRecording:
		return true
	}
	return false
}

// WaitIdle polls until the phone stops typing, the timeout passes or ctx is done.
func (t *Tracker) WaitIdle(ctx context.Context, phone string, timeout time.Duration) bool {
	if timeout <= 0 {
		return !t.IsComposing(phone)
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	poll := time.NewTicker(250 * time.Millisecond)
	defer poll.Stop()

	for {
		if !t.IsComposing(phone) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case <-poll.C:
		}
	}
}
