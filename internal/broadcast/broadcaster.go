// Package broadcast fans duel notifications out to connected observers.
//
// Membership is an explicit map of duel ID to observer IDs. Publishing and
// membership changes are separate operations: publishers are expected to call
// Publish from inside the duel's serialization domain so every observer sees
// updates in the order the store applied them.
package broadcast

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/MrAlexPushkin/LetsGoDuel/pkg/duel"
)

// Observer is a connected client that receives notifications.
// Send must not block; transports queue internally and return an error when
// the observer can no longer keep up.
type Observer interface {
	ID() string
	Send(msg *duel.Message) error
}

// States is the read side of the state store plus its per-duel lock.
type States interface {
	Get(id string) (*duel.State, bool)
	List() []*duel.State
	Lock(id string) (unlock func())
}

// Mirror receives a copy of every notification, e.g. the Redis duel_events channel.
type Mirror interface {
	PublishMessage(ctx context.Context, msg *duel.Message) error
}

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithMirror copies every notification to m from a background goroutine.
// At most buffer messages are queued; overflow is dropped and logged.
func WithMirror(m Mirror, buffer int) Option {
	return func(b *Broadcaster) {
		if buffer < 1 {
			buffer = 1
		}
		b.mirror = m
		b.mirrorQueue = make(chan *duel.Message, buffer)
	}
}

// WithClock overrides the timestamp source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(b *Broadcaster) {
		b.now = now
	}
}

// Broadcaster tracks observer subscriptions and pushes notifications.
type Broadcaster struct {
	states States
	now    func() time.Time

	mu         sync.RWMutex
	observers  map[string]Observer
	members    map[string]map[string]struct{} // duelID -> observerIDs
	byObserver map[string]map[string]struct{} // observerID -> duelIDs

	mirror       Mirror
	mirrorMu     sync.RWMutex
	mirrorQueue  chan *duel.Message
	mirrorDone   chan struct{}
	mirrorClosed bool
}

// New creates a Broadcaster reading snapshots from states.
func New(states States, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		states:     states,
		now:        time.Now,
		observers:  make(map[string]Observer),
		members:    make(map[string]map[string]struct{}),
		byObserver: make(map[string]map[string]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.mirror != nil {
		b.mirrorDone = make(chan struct{})
		go b.mirrorLoop()
	}

	return b
}

// Close stops the mirror goroutine after draining queued messages.
// Notifications published after Close are still delivered to observers but not mirrored.
func (b *Broadcaster) Close() {
	if b.mirrorQueue == nil {
		return
	}

	b.mirrorMu.Lock()
	if b.mirrorClosed {
		b.mirrorMu.Unlock()
		return
	}
	b.mirrorClosed = true
	close(b.mirrorQueue)
	b.mirrorMu.Unlock()

	<-b.mirrorDone
}

// Connect registers an observer and sends it the full duel list.
func (b *Broadcaster) Connect(obs Observer) {
	b.mu.Lock()
	b.register(obs)
	b.mu.Unlock()

	msg := b.message(duel.MessageActiveDuels)
	msg.Duels = b.states.List()
	b.deliver(obs, msg)
}

// Subscribe adds obs to the duel's subscribers and replays the current
// snapshot, if any. Subscribing twice is a no-op apart from the replay.
//
// The membership change and replay run inside the duel's serialization
// domain, so the replay can never arrive after a newer trade_update.
func (b *Broadcaster) Subscribe(obs Observer, duelID string) {
	unlock := b.states.Lock(duelID)
	defer unlock()

	b.mu.Lock()
	b.register(obs)
	subs, ok := b.members[duelID]
	if !ok {
		subs = make(map[string]struct{})
		b.members[duelID] = subs
	}
	subs[obs.ID()] = struct{}{}
	b.byObserver[obs.ID()][duelID] = struct{}{}
	b.mu.Unlock()

	state, ok := b.states.Get(duelID)
	if !ok {
		return
	}

	msg := b.message(duel.MessageDuelState)
	msg.DuelID = duelID
	msg.Duel = state
	b.deliver(obs, msg)
}

// Unsubscribe removes obs from the duel's subscribers. No-op if absent.
func (b *Broadcaster) Unsubscribe(obs Observer, duelID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeMembership(obs.ID(), duelID)
}

// Disconnect forgets the observer and every membership it held.
func (b *Broadcaster) Disconnect(observerID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for duelID := range b.byObserver[observerID] {
		b.removeMembership(observerID, duelID)
	}
	delete(b.byObserver, observerID)
	delete(b.observers, observerID)
}

// Publish pushes a routine update to every subscriber of the duel.
// trade may be nil when the update was not caused by a ledger event.
func (b *Broadcaster) Publish(duelID string, state *duel.State, trade *duel.TradeRef) {
	msg := b.message(duel.MessageTradeUpdate)
	msg.DuelID = duelID
	msg.Duel = state.Clone()
	msg.Trade = trade
	b.fanOut(b.subscribers(duelID), msg)
}

// PublishCompletion pushes the one-time winner notification to subscribers of the duel.
func (b *Broadcaster) PublishCompletion(duelID string, state *duel.State, winner duel.Side) {
	msg := b.message(duel.MessageDuelWon)
	msg.DuelID = duelID
	msg.Duel = state.Clone()
	msg.Winner = winner
	b.fanOut(b.subscribers(duelID), msg)
}

// Broadcast pushes msg to every connected observer regardless of subscriptions.
func (b *Broadcaster) Broadcast(msg *duel.Message) {
	if msg.AtMs == 0 {
		msg.AtMs = b.now().UnixMilli()
	}

	b.mu.RLock()
	targets := make([]Observer, 0, len(b.observers))
	for _, obs := range b.observers {
		targets = append(targets, obs)
	}
	b.mu.RUnlock()

	b.fanOut(targets, msg)
}

// ObserverCount returns the number of connected observers.
func (b *Broadcaster) ObserverCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.observers)
}

// SubscriberCount returns the number of observers subscribed to a duel.
func (b *Broadcaster) SubscriberCount(duelID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.members[duelID])
}

// register must be called with mu held.
func (b *Broadcaster) register(obs Observer) {
	id := obs.ID()
	b.observers[id] = obs
	if _, ok := b.byObserver[id]; !ok {
		b.byObserver[id] = make(map[string]struct{})
	}
}

// removeMembership must be called with mu held.
func (b *Broadcaster) removeMembership(observerID, duelID string) {
	if subs, ok := b.members[duelID]; ok {
		delete(subs, observerID)
		if len(subs) == 0 {
			delete(b.members, duelID)
		}
	}
	if duels, ok := b.byObserver[observerID]; ok {
		delete(duels, duelID)
	}
}

func (b *Broadcaster) subscribers(duelID string) []Observer {
	b.mu.RLock()
	defer b.mu.RUnlock()

	subs := b.members[duelID]
	out := make([]Observer, 0, len(subs))
	for id := range subs {
		if obs, ok := b.observers[id]; ok {
			out = append(out, obs)
		}
	}
	return out
}

func (b *Broadcaster) message(t duel.MessageType) *duel.Message {
	return &duel.Message{Type: t, AtMs: b.now().UnixMilli()}
}

// fanOut delivers msg to each target and mirrors it once.
func (b *Broadcaster) fanOut(targets []Observer, msg *duel.Message) {
	for _, obs := range targets {
		b.deliver(obs, msg)
	}
	b.enqueueMirror(msg)
}

// deliver sends to one observer and drops it if the transport gave up.
func (b *Broadcaster) deliver(obs Observer, msg *duel.Message) {
	if err := obs.Send(msg); err != nil {
		log.Printf("[Broadcast] Dropping observer %s after failed %s: %v", obs.ID(), msg.Type, err)
		b.Disconnect(obs.ID())
	}
}

func (b *Broadcaster) enqueueMirror(msg *duel.Message) {
	if b.mirrorQueue == nil {
		return
	}

	b.mirrorMu.RLock()
	defer b.mirrorMu.RUnlock()
	if b.mirrorClosed {
		return
	}

	select {
	case b.mirrorQueue <- msg:
	default:
		log.Printf("[Broadcast] Mirror queue full, dropping %s for duel %s", msg.Type, msg.DuelID)
	}
}

func (b *Broadcaster) mirrorLoop() {
	defer close(b.mirrorDone)

	for msg := range b.mirrorQueue {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := b.mirror.PublishMessage(ctx, msg); err != nil {
			log.Printf("[Broadcast] Mirror publish failed for %s: %v", msg.Type, err)
		}
		cancel()
	}
}
