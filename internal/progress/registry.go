// Package progress routes upload progress percentages to the one websocket
// subscriber that registered the matching correlation id.
//
// Wire protocol: the client opens GET /progress?uploadId=<id>, waits for the
// {"subscribed":"<id>"} acknowledgement and only then starts POST /upload with
// X-Upload-ID: <id>. Events published before the acknowledgement are dropped
// unless a replay buffer is configured.
package progress

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/abduss/filestore/internal/metrics"
	"go.uber.org/zap"
)

// ErrEmptyKey is returned when subscribing without a correlation id.
var ErrEmptyKey = errors.New("empty progress key")

// Config tunes queueing, replay and liveness.
type Config struct {
	// QueueSize bounds undelivered events per subscriber; the oldest is
	// dropped when full so the latest percentage always survives.
	QueueSize int
	// ReplayBuffer, when positive, keeps that many events per key published
	// before anyone subscribed and replays them on subscribe.
	ReplayBuffer int
	ReplayTTL    time.Duration
	// IdleTimeout evicts subscribers not touched within it. Zero disables.
	IdleTimeout time.Duration
}

// Key scopes a client-chosen correlation id to its owner.
func Key(owner, correlationID string) string {
	return owner + "/" + correlationID
}

// Registry is safe for concurrent use.
type Registry struct {
	mu     sync.Mutex
	subs   map[string]*Subscription
	replay map[string]*replayBuffer
	cfg    Config
	log    *zap.Logger
	now    func() time.Time
}

type replayBuffer struct {
	events  []int
	created time.Time
}

// NewRegistry builds an empty Registry.
func NewRegistry(cfg Config, log *zap.Logger) *Registry {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		subs:   make(map[string]*Subscription),
		replay: make(map[string]*replayBuffer),
		cfg:    cfg,
		log:    log,
		now:    time.Now,
	}
}

// Subscribe registers a new subscription for key. An existing subscription
// for the same key is closed and replaced.
func (r *Registry) Subscribe(key string) (*Subscription, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	sub := newSubscription(key, r.cfg.QueueSize, r.now())

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.subs[key]; ok {
		old.close()
		metrics.SubscriberRemoved()
		r.log.Debug("progress subscriber replaced", zap.String("key", key))
	}
	r.subs[key] = sub
	metrics.SubscriberAdded()

	if buf, ok := r.replay[key]; ok {
		delete(r.replay, key)
		if r.now().Sub(buf.created) < r.cfg.ReplayTTL {
			for _, p := range buf.events {
				sub.push(p)
				metrics.ProgressEvent(metrics.OutcomeReplayed)
			}
		}
	}
	return sub, nil
}

// Publish routes percent to the subscriber for key and reports whether one
// was live. With no subscriber the event is dropped, or buffered for replay
// when that is enabled.
func (r *Registry) Publish(key string, percent int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sub, ok := r.subs[key]; ok {
		if sub.push(percent) {
			metrics.ProgressEvent(metrics.OutcomeCoalesced)
		}
		metrics.ProgressEvent(metrics.OutcomeDelivered)
		return true
	}

	if r.cfg.ReplayBuffer > 0 {
		buf, ok := r.replay[key]
		if !ok {
			buf = &replayBuffer{created: r.now()}
			r.replay[key] = buf
		}
		if len(buf.events) == r.cfg.ReplayBuffer {
			buf.events = buf.events[1:]
		}
		buf.events = append(buf.events, percent)
		return false
	}

	metrics.ProgressEvent(metrics.OutcomeDropped)
	r.log.Debug("progress event without subscriber", zap.String("key", key), zap.Int("percent", percent))
	return false
}

// Unsubscribe removes sub if it is still the registered subscriber for its
// key and closes it. Safe to call more than once.
func (r *Registry) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	r.mu.Lock()
	if cur, ok := r.subs[sub.key]; ok && cur == sub {
		delete(r.subs, sub.key)
		metrics.SubscriberRemoved()
	}
	r.mu.Unlock()
	sub.close()
}

// Sweep evicts idle subscribers and expired replay buffers.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	if r.cfg.IdleTimeout > 0 {
		for key, sub := range r.subs {
			if now.Sub(sub.LastSeen()) > r.cfg.IdleTimeout {
				delete(r.subs, key)
				sub.close()
				metrics.SubscriberRemoved()
				evicted++
			}
		}
	}
	for key, buf := range r.replay {
		if now.Sub(buf.created) >= r.cfg.ReplayTTL {
			delete(r.replay, key)
		}
	}
	return evicted
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := r.Sweep(now); n > 0 {
				r.log.Info("idle progress subscribers evicted", zap.Int("count", n))
			}
		}
	}
}

// Len reports the number of live subscriptions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Subscription is one live progress channel.
type Subscription struct {
	key       string
	mu        sync.Mutex
	queue     []int
	limit     int
	notify    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	lastSeen  atomic.Int64
}

func newSubscription(key string, limit int, now time.Time) *Subscription {
	s := &Subscription{
		key:    key,
		limit:  limit,
		queue:  make([]int, 0, limit),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	s.lastSeen.Store(now.UnixNano())
	return s
}

// Key returns the registry key the subscription was created for.
func (s *Subscription) Key() string { return s.key }

// Ready fires whenever new events were queued.
func (s *Subscription) Ready() <-chan struct{} { return s.notify }

// Done is closed once the subscription was unsubscribed, replaced or evicted.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Drain returns and clears the queued events in publish order.
func (s *Subscription) Drain() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil
	}
	out := make([]int, len(s.queue))
	copy(out, s.queue)
	s.queue = s.queue[:0]
	return out
}

// Touch marks the subscriber as alive.
func (s *Subscription) Touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

// LastSeen returns the last Touch time.
func (s *Subscription) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// push queues percent and reports whether an older event had to be dropped.
func (s *Subscription) push(percent int) bool {
	s.mu.Lock()
	coalesced := false
	if len(s.queue) >= s.limit {
		copy(s.queue, s.queue[1:])
		s.queue = s.queue[:len(s.queue)-1]
		coalesced = true
	}
	s.queue = append(s.queue, percent)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return coalesced
}

func (s *Subscription) close() {
	s.closeOnce.Do(func() { close(s.done) })
}
