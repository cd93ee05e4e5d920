// Package notifier dispatches the one-time "duel won" announcement.
package notifier

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/MrAlexPushkin/LetsGoDuel/internal/announce"
	"github.com/MrAlexPushkin/LetsGoDuel/pkg/duel"
)

// DefaultTimeout bounds a single announcement dispatch.
const DefaultTimeout = 15 * time.Second

// Notifier sends exactly one announcement per completed duel.
// Dispatch happens off the caller's goroutine, so Signal never blocks
// the duel's serialization domain on network I/O.
type Notifier struct {
	sink    announce.Sink
	timeout time.Duration

	mu    sync.Mutex
	fired map[string]struct{}
	wg    sync.WaitGroup
}

// New creates a Notifier. A non-positive timeout uses DefaultTimeout.
func New(sink announce.Sink, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Notifier{
		sink:    sink,
		timeout: timeout,
		fired:   make(map[string]struct{}),
	}
}

// Signal announces the winner of a duel that just completed.
// A second signal for the same duel is dropped and logged.
func (n *Notifier) Signal(state *duel.State) {
	if state == nil || state.Winner == duel.SideNone {
		log.Printf("[Notifier] Ignoring signal without a winner")
		return
	}

	n.mu.Lock()
	if _, ok := n.fired[state.ID]; ok {
		n.mu.Unlock()
		log.Printf("[Notifier] Invariant violation: duel %s already announced, dropping repeat signal", state.ID)
		return
	}
	n.fired[state.ID] = struct{}{}
	n.wg.Add(1)
	n.mu.Unlock()

	text := Text(state)
	go func() {
		defer n.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()

		if err := n.sink.Announce(ctx, text); err != nil {
			log.Printf("[Notifier] Failed to announce winner of duel %s: %v", state.ID, err)
			return
		}
		log.Printf("[Notifier] Announced winner of duel %s", state.ID)
	}()
}

// Wait blocks until every dispatched announcement has finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// Text renders the winner announcement for a completed duel.
func Text(state *duel.State) string {
	side := state.Side(state.Winner)
	return fmt.Sprintf("🏆 DUEL WON! %s (side %s) reached %s SOL", side.Symbol, state.Winner, duel.FormatSOL(side.Raised))
}
