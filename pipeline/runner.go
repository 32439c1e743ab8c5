package pipeline

import (
	"context"

	uuid "github.com/satori/go.uuid"
	"go.uber.org/zap"
)

// Receipt is returned by Submit so a caller can correlate an async
// dispatch with its eventual log output; Satellite has no persisted job
// queue beyond the per-pass SQL tables, so the receipt is ephemeral.
type Receipt struct {
	ID string
}

// ErrBusy is returned by Submit when the named lock the job needs is
// already held; callers translate this into HTTP 423 Locked (§5/§6).
var ErrBusy = Error.New("lock busy")

// Job is a unit of dispatchable work guarded by one named lock.
type Job struct {
	LockName string
	Run      func(ctx context.Context) error
}

// Runner dispatches Jobs against a shared LockTable, declining (not
// queueing) work whose lock is already held.
type Runner struct {
	locks *LockTable
	log   *zap.Logger
}

// NewRunner builds a Runner over locks.
func NewRunner(locks *LockTable, log *zap.Logger) *Runner {
	return &Runner{locks: locks, log: log.Named("pipeline")}
}

// Locks exposes the Runner's LockTable so callers (e.g. the API layer) can
// take the reader/writer side directly for passes Submit's named-lock
// model doesn't cover.
func (r *Runner) Locks() *LockTable {
	return r.locks
}

// Submit attempts to acquire job.LockName and, if successful, runs
// job.Run in a new goroutine, returning a Receipt immediately. It returns
// ErrBusy without starting anything if the lock is already held.
func (r *Runner) Submit(ctx context.Context, job Job) (Receipt, error) {
	if !r.locks.TryLock(job.LockName) {
		return Receipt{}, ErrBusy
	}

	receipt := Receipt{ID: uuid.NewV4().String()}
	log := r.log.With(zap.String("receipt", receipt.ID), zap.String("lock", job.LockName))

	go func() {
		defer r.locks.Unlock(job.LockName)
		log.Info("job started")
		if err := job.Run(ctx); err != nil {
			log.Error("job failed", zap.Error(err))
			return
		}
		log.Info("job finished")
	}()

	return receipt, nil
}
