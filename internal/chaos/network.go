// Package chaos implements the fault-injecting network simulator spec.md
// §8 requires for the convergence property: "arbitrary interleavings
// under a chaos-network simulator that drops ..., delays ... and
// reorders packets". No teacher file grounds this directly — the
// teacher's network is real HTTP with no fault injection — so Network
// delays each delivery on its own goroutine, which sleeps for the
// delivery's latency before invoking the receiver's callback.
package chaos

import (
	"math/rand"
	"sync"
	"time"
)

// Config tunes Network's fault injection.
type Config struct {
	// DropRate is the probability, in [0,1], that a given delivery never
	// arrives at all.
	DropRate float64
	// MinDelay/MaxDelay bound each surviving delivery's latency. A
	// delivery is scheduled at MinDelay plus a uniform random jitter up
	// to MaxDelay-MinDelay, so independent deliveries to different
	// participants resolve in different orders — reordering falls out
	// of the same mechanism as delay, not a separate knob.
	MinDelay time.Duration
	MaxDelay time.Duration
	// Seed makes a run reproducible. Zero uses a fixed default seed
	// rather than a time-based one, so a failing run can be reproduced.
	Seed int64
}

// Network is an in-memory broadcast medium connecting a fixed set of
// named participants. It has no notion of message contents — callers
// hand it opaque payloads and a delivery callback per participant.
type Network struct {
	cfg Config
	rng *rand.Rand

	mu       sync.Mutex
	handlers map[string]func(from string, payload []byte)

	wg sync.WaitGroup
}

// NewNetwork constructs a Network with the given fault-injection config.
func NewNetwork(cfg Config) *Network {
	if cfg.Seed == 0 {
		cfg.Seed = 1
	}
	return &Network{
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		handlers: make(map[string]func(from string, payload []byte)),
	}
}

// Join registers id's delivery callback. onDeliver is invoked on its own
// goroutine per delivery, so it may run concurrently with itself —
// including for the same sender-payload pair when that payload is
// broadcast more than once. Callers must synchronize their own state the
// way a real transport handler would.
func (n *Network) Join(id string, onDeliver func(from string, payload []byte)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[id] = onDeliver
}

// Broadcast schedules payload for delivery to every joined participant
// other than from, each independently delayed and subject to drop.
func (n *Network) Broadcast(from string, payload []byte) {
	type delivery struct {
		id    string
		h     func(string, []byte)
		delay time.Duration
	}

	n.mu.Lock()
	deliveries := make([]delivery, 0, len(n.handlers))
	for id, h := range n.handlers {
		if id == from {
			continue
		}
		if n.rng.Float64() < n.cfg.DropRate {
			continue
		}
		deliveries = append(deliveries, delivery{id: id, h: h, delay: n.jitterLocked()})
	}
	n.mu.Unlock()

	for _, d := range deliveries {
		n.wg.Add(1)
		go func(d delivery) {
			defer n.wg.Done()
			time.Sleep(d.delay)
			d.h(from, payload)
		}(d)
	}
}

// jitterLocked picks a delay in [MinDelay, MaxDelay). Callers must hold n.mu.
func (n *Network) jitterLocked() time.Duration {
	if n.cfg.MaxDelay <= n.cfg.MinDelay {
		return n.cfg.MinDelay
	}
	return n.cfg.MinDelay + time.Duration(n.rng.Int63n(int64(n.cfg.MaxDelay-n.cfg.MinDelay)))
}

// Wait blocks until every scheduled (non-dropped) delivery has been
// attempted. Call it once all Broadcast calls for a scenario are issued.
func (n *Network) Wait() {
	n.wg.Wait()
}
