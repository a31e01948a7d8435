package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/iliyamo/ev-charging-backend/internal/metrics"
)

const DefaultExpirySpec = "0 */10 * * * *"

type StaleExpirer interface {
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}

// ExpiryWorker periodically moves active subscriptions past ends_at to
// expired. Entitlement checks never rely on it: they compare ends_at with
// the clock themselves.
type ExpiryWorker struct {
	subs    StaleExpirer
	log     *zap.Logger
	cron    *cron.Cron
	spec    string
	timeout time.Duration
	now     func() time.Time
}

func NewExpiryWorker(subs StaleExpirer, log *zap.Logger, spec string) *ExpiryWorker {
	if spec == "" {
		spec = DefaultExpirySpec
	}
	return &ExpiryWorker{
		subs:    subs,
		log:     log,
		cron:    cron.New(cron.WithSeconds()),
		spec:    spec,
		timeout: 30 * time.Second,
		now:     time.Now,
	}
}

func (w *ExpiryWorker) Start() error {
	if _, err := w.cron.AddFunc(w.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		defer cancel()
		_, _ = w.RunOnce(ctx)
	}); err != nil {
		return err
	}
	w.cron.Start()
	w.log.Info("expiry worker started", zap.String("spec", w.spec))
	return nil
}

// Stop waits for a running sweep to finish or ctx to end.
func (w *ExpiryWorker) Stop(ctx context.Context) {
	done := w.cron.Stop().Done()
	select {
	case <-done:
		w.log.Info("expiry worker stopped")
	case <-ctx.Done():
		w.log.Warn("expiry worker stop timed out")
	}
}

// RunOnce performs a single sweep and returns how many rows were expired.
func (w *ExpiryWorker) RunOnce(ctx context.Context) (int64, error) {
	n, err := w.subs.ExpireStale(ctx, w.now().UTC())
	if err != nil {
		w.log.Error("expire subscriptions failed", zap.Error(err))
		return 0, err
	}
	if n > 0 {
		metrics.SubscriptionsExpired.Add(float64(n))
		w.log.Info("subscriptions expired", zap.Int64("count", n))
	}
	return n, nil
}
