package radio

import (
	"log/slog"
	"sync"
)

// Compile-time check
var _ Channel = (*Loopback)(nil)

// Loopback is an in-process channel that acknowledges every submission
// without touching a modem. Results can be scripted per destination, which
// the daemon uses in standalone mode and the tests use to drive failure
// paths.
type Loopback struct {
	mu      sync.Mutex
	nextRef int
	scripts map[string][]Result
}

func NewLoopback() *Loopback {
	return &Loopback{scripts: make(map[string][]Result)}
}

// Script queues canned results for a destination, consumed in order. Once
// the queue drains, submissions succeed again.
func (l *Loopback) Script(dest string, results ...Result) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.scripts[dest] = append(l.scripts[dest], results...)
}

func (l *Loopback) Submit(sub Submission, resolve func(Result)) {
	l.mu.Lock()
	var res Result
	if queued := l.scripts[sub.Dest]; len(queued) > 0 {
		res = queued[0]
		l.scripts[sub.Dest] = queued[1:]
	} else {
		l.nextRef++
		res = Result{AckRef: l.nextRef}
	}
	l.mu.Unlock()

	slog.Debug("loopback submission resolved",
		slog.String("dest", sub.Dest),
		slog.String("err", res.Err.String()),
		slog.Int("ack_ref", res.AckRef),
	)
	go resolve(res)
}
