package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/agrihub-davao/chat-backend/internal/repo"
)

var sweptTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "maintenance_swept_total",
		Help: "Records or value-log files reclaimed by maintenance jobs",
	},
	[]string{"job"},
)

func init() {
	prometheus.MustRegister(sweptTotal)
}

// IdempotencySweep deletes idempotency records whose TTL has passed.
type IdempotencySweep struct {
	DB      *gorm.DB
	Timeout time.Duration
	Now     func() time.Time
	Log     zerolog.Logger
}

// Run implements cron.Job.
func (j *IdempotencySweep) Run() {
	_, _ = j.Sweep(context.Background())
}

// Sweep runs one purge and returns the number of deleted records.
func (j *IdempotencySweep) Sweep(ctx context.Context) (int64, error) {
	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}
	now := time.Now().UTC()
	if j.Now != nil {
		now = j.Now().UTC()
	}

	n, err := repo.DeleteExpiredIdempotency(ctx, j.DB, now)
	if err != nil {
		j.Log.Error().Err(err).Msg("idempotency sweep failed")
		return 0, err
	}
	if n > 0 {
		sweptTotal.WithLabelValues("idempotency").Add(float64(n))
		j.Log.Info().Int64("deleted", n).Msg("idempotency sweep")
	}
	return n, nil
}

// BadgerGC reclaims space in the session store's value log. Expired
// sessions are dropped by Badger itself; GC returns their disk space.
type BadgerGC struct {
	KV           *badger.DB
	DiscardRatio float64
	Log          zerolog.Logger
}

// Run implements cron.Job.
func (j *BadgerGC) Run() {
	_, _ = j.Collect()
}

// Collect rewrites value-log files until Badger reports nothing left to
// reclaim and returns how many files were rewritten.
func (j *BadgerGC) Collect() (int, error) {
	ratio := j.DiscardRatio
	if ratio <= 0 || ratio >= 1 {
		ratio = 0.5
	}
	n := 0
	for {
		err := j.KV.RunValueLogGC(ratio)
		switch {
		case err == nil:
			n++
			continue
		case errors.Is(err, badger.ErrNoRewrite), errors.Is(err, badger.ErrGCInMemoryMode):
			if n > 0 {
				sweptTotal.WithLabelValues("badger_gc").Add(float64(n))
				j.Log.Info().Int("rewritten", n).Msg("badger value-log gc")
			}
			return n, nil
		default:
			j.Log.Warn().Err(err).Msg("badger value-log gc failed")
			return n, err
		}
	}
}
