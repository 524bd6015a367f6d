// Package events delivers category snapshots to subscribers in publish order.
package events

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/starford/mldataset/internal/models"
)

// EventSnapshot is the SSE event name used for published snapshots.
const EventSnapshot = "snapshot"

type subscribeReq struct {
	sub   *subscriber
	prime bool
}

// Broker fans snapshots out to subscribers.
//
// Concurrency model: a single internal event loop (goroutine) owns the
// subscriber set and the last published snapshot. Public methods talk to the
// loop through channels. Each subscriber has its own unbounded queue drained
// by a pump goroutine, so a slow reader never stalls the loop and never
// misses or reorders a snapshot.
type Broker struct {
	subscribeCh   chan subscribeReq
	unsubscribeCh chan (<-chan models.Snapshot)
	publishCh     chan models.Snapshot
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker and starts its event loop.
func NewBroker() *Broker {
	b := &Broker{
		subscribeCh:   make(chan subscribeReq),
		unsubscribeCh: make(chan (<-chan models.Snapshot)),
		// Unbuffered: once Subscribe returns, no earlier Publish can reach
		// the new subscriber.
		publishCh:  make(chan models.Snapshot),
		countReqCh: make(chan chan int),
		stopCh:     make(chan struct{}),
		stopped:    make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[<-chan models.Snapshot]*subscriber)
	var last models.Snapshot
	var hasLast bool

	for {
		select {
		case <-b.stopCh:
			for _, sub := range clients {
				sub.stop()
			}
			return

		case req := <-b.subscribeCh:
			clients[req.sub.out] = req.sub
			if req.prime && hasLast {
				req.sub.enqueue(last.Clone())
			}

		case ch := <-b.unsubscribeCh:
			if sub, ok := clients[ch]; ok {
				delete(clients, ch)
				sub.stop()
			}

		case snap := <-b.publishCh:
			last, hasLast = snap, true
			for _, sub := range clients {
				sub.enqueue(snap.Clone())
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the event loop and closes all subscriber channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a subscriber that receives every snapshot published
// after this call returns.
func (b *Broker) Subscribe() <-chan models.Snapshot {
	return b.subscribe(false)
}

// SubscribeLatest is Subscribe, but the last published snapshot (if any) is
// delivered first.
func (b *Broker) SubscribeLatest() <-chan models.Snapshot {
	return b.subscribe(true)
}

func (b *Broker) subscribe(prime bool) <-chan models.Snapshot {
	sub := newSubscriber()
	if b.closed.Load() {
		close(sub.out)
		return sub.out
	}

	select {
	case b.subscribeCh <- subscribeReq{sub: sub, prime: prime}:
		go sub.pump()
	case <-b.stopped:
		close(sub.out)
	}
	return sub.out
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(ch <-chan models.Snapshot) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of subscribers.
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

// Publish queues snap for every current subscriber. It never waits on
// subscribers.
func (b *Broker) Publish(snap models.Snapshot) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- snap.Clone():
	case <-b.stopped:
	}
}

// ServeHTTP streams snapshots as Server-Sent Events, starting with the latest.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.SubscribeLatest()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(snap)
			if err != nil {
				continue
			}
			_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", EventSnapshot, payload)
			flusher.Flush()
		}
	}
}

type subscriber struct {
	out  chan models.Snapshot
	wake chan struct{}
	done chan struct{}
	once sync.Once

	mu    sync.Mutex
	queue []models.Snapshot
}

func newSubscriber() *subscriber {
	return &subscriber{
		out:  make(chan models.Snapshot),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (s *subscriber) enqueue(snap models.Snapshot) {
	s.mu.Lock()
	s.queue = append(s.queue, snap)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

// pump is the only sender on out, so it also owns closing it.
func (s *subscriber) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		next := s.queue[0]
		s.queue[0] = models.Snapshot{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- next:
		case <-s.done:
			return
		}
	}
}
