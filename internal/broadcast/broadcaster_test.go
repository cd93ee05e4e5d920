package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrAlexPushkin/LetsGoDuel/internal/store"
	"github.com/MrAlexPushkin/LetsGoDuel/pkg/duel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	id   string
	mu   sync.Mutex
	msgs []*duel.Message
	err  error
}

func newObserver(id string) *recordingObserver {
	return &recordingObserver{id: id}
}

func (o *recordingObserver) ID() string { return o.id }

func (o *recordingObserver) Send(msg *duel.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.msgs = append(o.msgs, msg)
	return nil
}

func (o *recordingObserver) messages() []*duel.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*duel.Message, len(o.msgs))
	copy(out, o.msgs)
	return out
}

func (o *recordingObserver) ofType(t duel.MessageType) []*duel.Message {
	var out []*duel.Message
	for _, m := range o.messages() {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

type recordingMirror struct {
	mu   sync.Mutex
	msgs []*duel.Message
}

func (m *recordingMirror) PublishMessage(_ context.Context, msg *duel.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
	return nil
}

func activeDuel(id string, raisedA uint64) *duel.State {
	return &duel.State{ID: id, Target: 85, Active: true, A: duel.TokenSide{Symbol: "FOO", Raised: raisedA}}
}

func setup(t *testing.T, opts ...Option) (*Broadcaster, *store.Store) {
	s := store.New()
	b := New(s, opts...)
	t.Cleanup(b.Close)
	return b, s
}

func TestConnectSendsGlobalSnapshot(t *testing.T) {
	b, s := setup(t)
	s.Put(activeDuel("D1", 1))
	s.Put(activeDuel("D2", 2))

	obs := newObserver("o1")
	b.Connect(obs)

	msgs := obs.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, duel.MessageActiveDuels, msgs[0].Type)
	assert.Len(t, msgs[0].Duels, 2)
	assert.Equal(t, 1, b.ObserverCount())
}

func TestSubscribe(t *testing.T) {
	b, s := setup(t)
	s.Put(activeDuel("D1", 40))
	obs := newObserver("o1")

	t.Run("replays current snapshot", func(t *testing.T) {
		b.Subscribe(obs, "D1")

		replays := obs.ofType(duel.MessageDuelState)
		require.Len(t, replays, 1)
		assert.Equal(t, "D1", replays[0].DuelID)
		assert.Equal(t, uint64(40), replays[0].Duel.A.Raised)
		assert.Equal(t, 1, b.SubscriberCount("D1"))
	})

	t.Run("is idempotent", func(t *testing.T) {
		b.Subscribe(obs, "D1")
		assert.Equal(t, 1, b.SubscriberCount("D1"))

		b.Publish("D1", activeDuel("D1", 41), nil)
		assert.Len(t, obs.ofType(duel.MessageTradeUpdate), 1)
	})

	t.Run("unknown duel registers without replay", func(t *testing.T) {
		before := len(obs.messages())
		b.Subscribe(obs, "nope")
		assert.Len(t, obs.messages(), before)
		assert.Equal(t, 1, b.SubscriberCount("nope"))
	})
}

func TestPublishOnlyReachesSubscribers(t *testing.T) {
	b, s := setup(t)
	s.Put(activeDuel("D1", 1))
	s.Put(activeDuel("D2", 1))

	sub := newObserver("sub")
	other := newObserver("other")
	b.Connect(sub)
	b.Connect(other)
	b.Subscribe(sub, "D1")
	b.Subscribe(other, "D2")

	trade := &duel.TradeRef{Type: duel.LedgerEventTransfer, Signature: "sig"}
	b.Publish("D1", activeDuel("D1", 5), trade)

	updates := sub.ofType(duel.MessageTradeUpdate)
	require.Len(t, updates, 1)
	assert.Equal(t, "sig", updates[0].Trade.Signature)
	assert.Empty(t, other.ofType(duel.MessageTradeUpdate))
}

func TestPublishCompletion(t *testing.T) {
	b, s := setup(t)
	s.Put(activeDuel("D1", 1))
	obs := newObserver("o1")
	b.Subscribe(obs, "D1")

	won := &duel.State{ID: "D1", Target: 85, Winner: duel.SideA, A: duel.TokenSide{Raised: 86}}
	b.PublishCompletion("D1", won, duel.SideA)

	done := obs.ofType(duel.MessageDuelWon)
	require.Len(t, done, 1)
	assert.Equal(t, duel.SideA, done[0].Winner)
	assert.False(t, done[0].Duel.Active)
}

func TestUnsubscribeAndDisconnect(t *testing.T) {
	b, s := setup(t)
	s.Put(activeDuel("D1", 1))
	s.Put(activeDuel("D2", 1))
	obs := newObserver("o1")

	b.Unsubscribe(obs, "D1") // absent membership is a no-op

	b.Subscribe(obs, "D1")
	b.Subscribe(obs, "D2")
	b.Unsubscribe(obs, "D1")
	b.Unsubscribe(obs, "D1")

	b.Publish("D1", activeDuel("D1", 2), nil)
	b.Publish("D2", activeDuel("D2", 2), nil)
	assert.Len(t, obs.ofType(duel.MessageTradeUpdate), 1)

	b.Disconnect("o1")
	assert.Equal(t, 0, b.SubscriberCount("D2"))
	assert.Equal(t, 0, b.ObserverCount())

	b.Publish("D2", activeDuel("D2", 3), nil)
	assert.Len(t, obs.ofType(duel.MessageTradeUpdate), 1)
}

func TestFailingObserverIsDropped(t *testing.T) {
	b, s := setup(t)
	s.Put(activeDuel("D1", 1))

	bad := newObserver("bad")
	good := newObserver("good")
	b.Subscribe(bad, "D1")
	b.Subscribe(good, "D1")

	bad.mu.Lock()
	bad.err = errors.New("queue full")
	bad.mu.Unlock()

	b.Publish("D1", activeDuel("D1", 2), nil)

	assert.Len(t, good.ofType(duel.MessageTradeUpdate), 1)
	assert.Equal(t, 1, b.SubscriberCount("D1"))
	assert.Equal(t, 1, b.ObserverCount())
}

func TestBroadcastReachesEveryObserver(t *testing.T) {
	b, _ := setup(t)
	o1, o2 := newObserver("o1"), newObserver("o2")
	b.Connect(o1)
	b.Connect(o2)

	b.Broadcast(&duel.Message{
		Type:      duel.MessagePendingDuel,
		Challenge: &duel.ChallengeNotice{ID: "42_bob", TokenSymbol: "FOO"},
	})

	for _, o := range []*recordingObserver{o1, o2} {
		pending := o.ofType(duel.MessagePendingDuel)
		require.Len(t, pending, 1)
		assert.NotZero(t, pending[0].AtMs)
	}
}

func TestPublishPreservesOrder(t *testing.T) {
	b, s := setup(t)
	s.Put(activeDuel("D1", 0))

	observers := []*recordingObserver{newObserver("o1"), newObserver("o2"), newObserver("o3")}
	for _, o := range observers {
		b.Subscribe(o, "D1")
	}

	for i := uint64(1); i <= 50; i++ {
		unlock := s.Lock("D1")
		state := activeDuel("D1", i)
		s.Put(state)
		b.Publish("D1", state, nil)
		unlock()
	}

	for _, o := range observers {
		updates := o.ofType(duel.MessageTradeUpdate)
		require.Len(t, updates, 50)
		for i, m := range updates {
			assert.Equal(t, uint64(i+1), m.Duel.A.Raised)
		}
	}
}

func TestSubscribeRacingPublishNeverRegresses(t *testing.T) {
	b, s := setup(t)
	s.Put(activeDuel("D1", 0))

	const writes = 200
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := uint64(1); i <= writes; i++ {
			unlock := s.Lock("D1")
			state := activeDuel("D1", i)
			s.Put(state)
			b.Publish("D1", state, nil)
			unlock()
		}
	}()

	observers := make([]*recordingObserver, 20)
	for i := range observers {
		observers[i] = newObserver(string(rune('a' + i)))
		b.Subscribe(observers[i], "D1")
		time.Sleep(100 * time.Microsecond)
	}
	wg.Wait()

	for _, o := range observers {
		var last uint64
		msgs := o.messages()
		require.NotEmpty(t, msgs)
		for _, m := range msgs {
			require.GreaterOrEqual(t, m.Duel.A.Raised, last, "observer %s saw state go backwards", o.id)
			last = m.Duel.A.Raised
		}
		assert.Equal(t, uint64(writes), last, "observer %s must end on the store's value", o.id)
	}
}

func TestMirror(t *testing.T) {
	mirror := &recordingMirror{}
	b, s := setup(t, WithMirror(mirror, 16))
	s.Put(activeDuel("D1", 1))

	b.Publish("D1", activeDuel("D1", 2), nil)
	b.PublishCompletion("D1", activeDuel("D1", 3), duel.SideA)
	b.Close()
	b.Close()

	mirror.mu.Lock()
	defer mirror.mu.Unlock()
	require.Len(t, mirror.msgs, 2)
	assert.Equal(t, duel.MessageTradeUpdate, mirror.msgs[0].Type)
	assert.Equal(t, duel.MessageDuelWon, mirror.msgs[1].Type)

	// Publishing after Close still reaches observers and does not panic.
	b.Publish("D1", activeDuel("D1", 4), nil)
}
