package dispatch

import (
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/modemstack/smsdispatch/internal/sim"
)

// RefAllocator hands out the wrapping 0..255 protocol message reference for
// one subscription and persists every allocation to both the SIM-resident
// store and the subscription store. The two can disagree at load time; the
// SIM value wins, and the next allocation's dual write reconciles them.
//
// Send requests originate on caller goroutines, so allocation takes a
// mutex rather than relying on the dispatch loop.
type RefAllocator struct {
	mu       sync.Mutex
	subID    int
	enabled  bool
	cur      int
	simStore sim.RefStore
	subStore sim.RefStore
}

// NewRefAllocator loads the last persisted reference. With viaModem set the
// modem owns numbering and every allocation returns 0 without persistence.
func NewRefAllocator(subID int, viaModem bool, simStore, subStore sim.RefStore) *RefAllocator {
	a := &RefAllocator{
		subID:    subID,
		enabled:  !viaModem,
		cur:      sim.RefNotSet,
		simStore: simStore,
		subStore: subStore,
	}
	if a.enabled {
		a.cur = a.load()
	}
	return a
}

func (a *RefAllocator) load() int {
	if v, err := a.simStore.LastMessageRef(a.subID); err != nil {
		slog.Warn("failed to read message ref from SIM store", slog.Any("error", err))
	} else if v >= 0 && v <= 255 {
		return v
	}
	if v, err := a.subStore.LastMessageRef(a.subID); err != nil {
		slog.Warn("failed to read message ref from subscription store", slog.Any("error", err))
	} else if v >= 0 && v <= 255 {
		return v
	}
	return sim.RefNotSet
}

// Next allocates the next message reference and persists it. Store write
// failures are logged and do not block the send.
func (a *RefAllocator) Next() int {
	if !a.enabled {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cur = (a.cur + 1) % 256
	if err := a.simStore.SetLastMessageRef(a.subID, a.cur); err != nil {
		slog.Warn("failed to persist message ref to SIM store", slog.Any("error", err))
	}
	if err := a.subStore.SetLastMessageRef(a.subID, a.cur); err != nil {
		slog.Warn("failed to persist message ref to subscription store", slog.Any("error", err))
	}
	return a.cur
}

// concatRef is the process-wide 8-bit concatenation reference shared by the
// parts of one multi-part message. It is seeded randomly at startup and
// lives for the process lifetime; only its low byte goes on the wire.
var concatRef atomic.Uint32

func init() {
	concatRef.Store(rand.Uint32())
}

func nextConcatRef() int {
	return int(concatRef.Add(1) & 0xFF)
}
