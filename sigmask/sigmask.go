// Package sigmask defers process signals around critical sections.
//
// Some drivers treat a signal-interrupted blocking call as a lost
// connection rather than a retryable interruption. A Guard keeps the
// configured signals from reaching their default disposition while a
// driver call (or a retry backoff sleep) is in flight, and re-raises
// anything that arrived once the outermost section has finished.
package sigmask

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// pendingCap bounds how many deliveries can queue up while a section runs.
// Duplicate signals beyond this are dropped; re-raise is per distinct signal
// anyway.
const pendingCap = 64

// Guard defers a fixed set of signals while one or more nested critical
// sections are active. The zero value is not usable; create guards with New.
type Guard struct {
	mu      sync.Mutex
	signals []os.Signal
	depth   int
	ch      chan os.Signal
}

// New creates a guard for the given signals.
func New(signals ...os.Signal) *Guard {
	return &Guard{signals: signals}
}

// Run executes fn with the guard held and returns fn's error unchanged.
// It is safe to call from within another Run on the same guard; only the
// outermost call touches signal routing.
func (g *Guard) Run(fn func() error) error {
	g.Acquire()
	defer g.Release()
	return fn()
}

// Acquire enters a critical section. The first entry starts capturing the
// configured signals; nested entries only increase the depth.
func (g *Guard) Acquire() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.depth++
	if g.depth > 1 || len(g.signals) == 0 {
		return
	}
	g.ch = make(chan os.Signal, pendingCap)
	signal.Notify(g.ch, g.signals...)
}

// Release exits a critical section. When the outermost section exits the
// guard stops capturing, and every distinct signal that arrived in the
// meantime is re-raised so its normal disposition applies.
func (g *Guard) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.depth == 0 {
		return
	}
	g.depth--
	if g.depth > 0 || g.ch == nil {
		return
	}

	signal.Stop(g.ch)

	var deferred []os.Signal
	seen := make(map[os.Signal]bool)
	for {
		select {
		case sig := <-g.ch:
			if !seen[sig] {
				seen[sig] = true
				deferred = append(deferred, sig)
			}
		default:
			g.ch = nil
			for _, sig := range deferred {
				raise(sig)
			}
			return
		}
	}
}

// Depth returns the current nesting depth.
func (g *Guard) Depth() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.depth
}

// Pending returns how many deliveries are currently queued. Outside a
// critical section it is always zero.
func (g *Guard) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ch == nil {
		return 0
	}
	return len(g.ch)
}

// raise re-delivers sig to the current process.
func raise(sig os.Signal) {
	s, ok := sig.(syscall.Signal)
	if !ok {
		return
	}
	syscall.Kill(syscall.Getpid(), s)
}
