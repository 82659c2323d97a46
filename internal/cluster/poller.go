package cluster

import (
	"context"
	"time"

	"github.com/go-logr/logr"
)

// Poller repeatedly evaluates a per-node predicate over a shrinking pending
// set until every node satisfies it or a deadline elapses. Nodes that have
// satisfied the predicate once are never re-evaluated.
type Poller struct {
	interval time.Duration
	timeout  time.Duration
	log      logr.Logger

	// Clock hooks, replaced in tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPoller creates a poller that sleeps interval between rounds and gives
// up once timeout has elapsed.
func NewPoller(interval, timeout time.Duration, log logr.Logger) *Poller {
	return &Poller{
		interval: interval,
		timeout:  timeout,
		log:      log,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Wait polls the predicate over the still-pending nodes. It returns nil
// when all nodes pass, or the still-pending subset once the deadline
// elapses; what happens to those nodes is the caller's decision. A non-nil
// error is returned only when the context is cancelled mid-wait, so the
// caller can tell an interrupt apart from a timeout.
func (p *Poller) Wait(ctx context.Context, nodes []*Node, pred func(context.Context, *Node) bool) ([]*Node, error) {
	deadline := p.now().Add(p.timeout)
	pending := append([]*Node(nil), nodes...)

	for {
		next := pending[:0]
		for _, n := range pending {
			if !pred(ctx, n) {
				next = append(next, n)
			}
		}
		pending = next

		if len(pending) == 0 {
			return nil, nil
		}
		// Sleeping past the deadline cannot change the outcome, so a round
		// that would only complete after it never starts.
		if !p.now().Add(p.interval).Before(deadline) {
			p.log.V(1).Info("poll deadline elapsed", "pending", len(pending), "timeout", p.timeout.String())
			return pending, nil
		}
		if err := p.sleep(ctx, p.interval); err != nil {
			return pending, err
		}
	}
}

// sleepContext blocks for d or until the context is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
