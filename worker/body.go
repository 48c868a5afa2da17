package worker

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/oasislabs/relayer/chain"
	"github.com/oasislabs/relayer/internal/logging"
	"github.com/oasislabs/relayer/object"
)

// DefaultBody is the stock worker body wired in when no other is
// supplied: it reconciles on every received Msg, using an exponential
// backoff when reconciliation fails, and exits cleanly when the
// supervisor closes its inbox. Packet batching, proof construction
// and transaction submission — the actual cross-chain action — are
// collaborators outside this repository's scope (§1); Reconcile below
// is that collaborator's entry point.
//
// Reconcile performs whatever action obj implies for one Msg. A nil
// Reconcile makes DefaultBody a pure drain loop, useful for tests
// that only care about WorkerMap bookkeeping.
func DefaultBody(reconcile func(ctx context.Context, obj object.Object, src, dst chain.Handle, msg Msg) error) Body {
	log := logging.GetLogger("worker")

	return func(id ID, obj object.Object, src, dst chain.Handle, inbox <-chan Msg) {
		l := log.With("worker.id", id, "object", obj.String())
		l.Debug("worker started")
		defer l.Debug("worker exiting")

		for msg := range inbox {
			if reconcile == nil {
				continue
			}
			if err := reconcileWithBackoff(context.Background(), reconcile, obj, src, dst, msg); err != nil {
				l.Error("reconcile failed, giving up for this message", "err", err)
			}
		}
	}
}

func reconcileWithBackoff(ctx context.Context, reconcile func(context.Context, object.Object, chain.Handle, chain.Handle, Msg) error, obj object.Object, src, dst chain.Handle, msg Msg) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second
	return backoff.Retry(func() error {
		return reconcile(ctx, obj, src, dst, msg)
	}, backoff.WithContext(bo, ctx))
}
