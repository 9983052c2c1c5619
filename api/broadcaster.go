package api

import "sync"

// EventType tags a broadcast message's kind.
type EventType string

const (
	EventState EventType = "state"
	EventExec  EventType = "event"
)

// BroadcastEvent is one message pushed to subscribed WebSocket clients.
type BroadcastEvent struct {
	Type      EventType              `json:"type"`
	SessionID string                 `json:"sessionId"`
	Data      map[string]interface{} `json:"data"`
}

// Subscription filters the broadcast stream down to one client's interest.
type Subscription struct {
	SessionID string
	Channel   chan BroadcastEvent
}

// Broadcaster fans state-change events out to every subscribed inspector
// client, dropping events for subscribers that can't keep up rather than
// blocking the session driving them.
type Broadcaster struct {
	mu            sync.RWMutex
	subscriptions map[*Subscription]bool
	broadcast     chan BroadcastEvent
	register      chan *Subscription
	unregister    chan *Subscription
	done          chan struct{}
}

func NewBroadcaster() *Broadcaster {
	b := &Broadcaster{
		subscriptions: make(map[*Subscription]bool),
		broadcast:     make(chan BroadcastEvent, 256),
		register:      make(chan *Subscription),
		unregister:    make(chan *Subscription),
		done:          make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Broadcaster) run() {
	for {
		select {
		case sub := <-b.register:
			b.mu.Lock()
			b.subscriptions[sub] = true
			b.mu.Unlock()

		case sub := <-b.unregister:
			b.mu.Lock()
			if b.subscriptions[sub] {
				delete(b.subscriptions, sub)
				close(sub.Channel)
			}
			b.mu.Unlock()

		case event := <-b.broadcast:
			b.mu.RLock()
			for sub := range b.subscriptions {
				if sub.SessionID != "" && sub.SessionID != event.SessionID {
					continue
				}
				select {
				case sub.Channel <- event:
				default:
				}
			}
			b.mu.RUnlock()

		case <-b.done:
			b.mu.Lock()
			for sub := range b.subscriptions {
				close(sub.Channel)
			}
			b.subscriptions = make(map[*Subscription]bool)
			b.mu.Unlock()
			return
		}
	}
}

func (b *Broadcaster) Subscribe(sessionID string) *Subscription {
	sub := &Subscription{SessionID: sessionID, Channel: make(chan BroadcastEvent, 64)}
	b.register <- sub
	return sub
}

func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	b.unregister <- sub
}

func (b *Broadcaster) Broadcast(event BroadcastEvent) {
	select {
	case b.broadcast <- event:
	default:
	}
}

// BroadcastState pushes a StateSnapshot, flattened to a JSON-friendly map,
// after a step/run/reset mutates a session's VM.
func (b *Broadcaster) BroadcastState(sessionID string, snap StateSnapshot) {
	b.Broadcast(BroadcastEvent{
		Type:      EventState,
		SessionID: sessionID,
		Data: map[string]interface{}{
			"status":        snap.Status,
			"exitCode":      snap.ExitCode,
			"message":       snap.Message,
			"ip":            snap.IP,
			"callStackSize": snap.CallStackSize,
		},
	})
}

func (b *Broadcaster) Close() {
	close(b.done)
}
