// Package sse implements a Server-Sent Events broker that pushes store
// changes and deadline alerts to connected clients.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"sync/atomic"
	"time"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Event types.
const (
	TypeStoreChanged        = "store.changed"
	TypeTreeUpdated         = "tree.updated"
	TypeDeadlineApproaching = "deadline.approaching"
	TypeDeadlineOverdue     = "deadline.overdue"
)

// DefaultKeepAlive is the interval of comment pings on idle streams.
const DefaultKeepAlive = 30 * time.Second

// StoreChange is the payload of a store.changed event.
type StoreChange struct {
	Op         string `json:"op"`
	Collection string `json:"collection,omitempty"`
	Path       string `json:"path,omitempty"`
	ID         int64  `json:"id,omitempty"`
}

// TreeUpdate is the payload of a tree.updated event: the collections touched
// since the previous one. Empty means the whole tree (reload, clear).
type TreeUpdate struct {
	Collections []string `json:"collections"`
}

// Option configures a Broker.
type Option func(*Broker)

// WithKeepAlive sets the ping interval for idle streams.
func WithKeepAlive(d time.Duration) Option {
	return func(b *Broker) { b.keepAlive = d }
}

// Broker manages SSE client connections and broadcasts events.
//
// A single event loop goroutine owns the client set, the event sequence and
// the tree.updated throttle; public methods talk to it over channels.
//
// tree.updated is throttled to one per treeMin. A change inside the window
// is not lost: it is coalesced into one trailing event when the window ends.
type Broker struct {
	treeMin   time.Duration
	keepAlive time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	storeEventCh  chan StoreChange
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker with the given tree.updated throttle
// interval.
func NewBroker(treeThrottle time.Duration, opts ...Option) *Broker {
	if treeThrottle <= 0 {
		treeThrottle = 2 * time.Second
	}

	b := &Broker{
		treeMin:       treeThrottle,
		keepAlive:     DefaultKeepAlive,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		storeEventCh:  make(chan StoreChange, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.run()
	return b
}

// pendingTree accumulates collections for the next tree.updated.
type pendingTree struct {
	dirty bool
	whole bool
	colls []string
}

func (p *pendingTree) add(ch StoreChange) {
	p.dirty = true
	if ch.Collection == "" {
		p.whole = true
		return
	}
	if !slices.Contains(p.colls, ch.Collection) {
		p.colls = append(p.colls, ch.Collection)
	}
}

func (p *pendingTree) take() TreeUpdate {
	u := TreeUpdate{Collections: []string{}}
	if !p.whole {
		u.Collections = append(u.Collections, p.colls...)
	}
	*p = pendingTree{}
	return u
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var seq uint64
	var lastTree time.Time
	var pending pendingTree
	var trailing *time.Timer
	var trailingC <-chan time.Time

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		seq++
		raw := []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, event.Type, payload))

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Slow client; drop rather than block the loop.
			}
		}
	}

	flushTree := func(now time.Time) {
		lastTree = now
		broadcast(Event{Type: TypeTreeUpdated, Data: pending.take()})
	}

	for {
		select {
		case <-b.stopCh:
			if trailing != nil {
				trailing.Stop()
			}
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case ch := <-b.storeEventCh:
			broadcast(Event{Type: TypeStoreChanged, Data: ch})
			pending.add(ch)

			now := time.Now()
			if wait := b.treeMin - now.Sub(lastTree); wait <= 0 {
				flushTree(now)
			} else if trailingC == nil {
				trailing = time.NewTimer(wait)
				trailingC = trailing.C
			}

		case now := <-trailingC:
			trailingC = nil
			if pending.dirty {
				flushTree(now)
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishStoreChange publishes a store change and schedules tree.updated.
func (b *Broker) PublishStoreChange(ch StoreChange) {
	if b.closed.Load() {
		return
	}
	select {
	case b.storeEventCh <- ch:
	case <-b.stopped:
	}
}

// PublishDeadline publishes a deadline alert. approaching selects between
// deadline.approaching and deadline.overdue.
func (b *Broker) PublishDeadline(approaching bool, data any) {
	typ := TypeDeadlineOverdue
	if approaching {
		typ = TypeDeadlineApproaching
	}
	b.Publish(Event{Type: typ, Data: data})
}

// ServeHTTP is the SSE endpoint handler (GET /api/events). CORS headers are
// left to the router middleware.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, "retry: 3000\n\n")
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(b.keepAlive)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			_, _ = fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
