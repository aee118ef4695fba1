package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/spec-kit/ticket-sla/pkg/util"
)

// persist writes the entry through to the repository. The caller holds e.mu.
// Failures leave the in-memory state in place and mark the entry dirty for
// the next Flush.
func (r *Registry) persist(ctx context.Context, e *entry, op string) {
	if r.repo == nil {
		return
	}
	rec := e.record()
	err := r.retry(ctx, func(wctx context.Context) error {
		return r.repo.Upsert(wctx, rec)
	})
	if err == nil {
		e.dirty = false
		return
	}
	e.dirty = true
	r.metrics.RecordPersistenceFailure(op)
	r.logger.Error("ticket write-through failed",
		zap.String("ticket_id", rec.Ticket.ID),
		zap.String("op", op),
		zap.Error(apperrors.NewPersistenceFailure(rec.Ticket.ID, err)))
}

func (r *Registry) deleteRecord(ctx context.Context, id string) {
	if r.repo == nil {
		return
	}
	err := r.retry(ctx, func(wctx context.Context) error {
		_, err := r.repo.Delete(wctx, id)
		return err
	})
	if err == nil {
		return
	}
	r.queueDelete(id)
	r.metrics.RecordPersistenceFailure("delete")
	r.logger.Error("ticket delete failed",
		zap.String("ticket_id", id),
		zap.Error(apperrors.NewPersistenceFailure(id, err)))
}

// retry runs write with a bounded timeout per attempt and exponential
// backoff between attempts. An attempt already started outlives the caller's
// cancellation, but a cancelled caller gets no further attempts; Flush picks
// the entry up later.
func (r *Registry) retry(ctx context.Context, write func(context.Context) error) error {
	base := context.WithoutCancel(ctx)
	backoff := r.writeBackoff
	var err error
	for attempt := 0; attempt <= r.writeRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return errors.Join(err, ctx.Err())
			case <-timer.C:
			}
			backoff *= 2
		}
		wctx, cancel := context.WithTimeout(base, r.writeTimeout)
		err = write(wctx)
		cancel()
		if err == nil {
			return nil
		}
	}
	return err
}

func (r *Registry) queueDelete(id string) {
	r.pendingMu.Lock()
	r.pendingDeletes[id] = struct{}{}
	r.pendingMu.Unlock()
}

// Flush re-syncs every entry whose last write-through failed and retries
// pending deletes. It returns a PersistenceFailure if anything is still
// out of sync.
func (r *Registry) Flush(ctx context.Context) error {
	if r.repo == nil {
		return nil
	}

	var failed []string
	for _, e := range r.snapshotEntries() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.mu.Lock()
		if e.dirty && !e.removed {
			r.persist(ctx, e, "flush")
			if e.dirty {
				failed = append(failed, e.ticket.ID)
			}
		}
		e.mu.Unlock()
	}

	r.pendingMu.Lock()
	pending := make([]string, 0, len(r.pendingDeletes))
	for id := range r.pendingDeletes {
		pending = append(pending, id)
	}
	r.pendingDeletes = make(map[string]struct{})
	r.pendingMu.Unlock()

	for _, id := range pending {
		r.deleteRecord(ctx, id)
	}

	r.pendingMu.Lock()
	for id := range r.pendingDeletes {
		failed = append(failed, id)
	}
	r.pendingMu.Unlock()

	if len(failed) > 0 {
		return apperrors.NewPersistenceFailure("", fmt.Errorf("%d tickets out of sync: %s", len(failed), strings.Join(failed, ", ")))
	}
	return nil
}

// Dirty reports how many entries await a successful write.
func (r *Registry) Dirty() int {
	n := 0
	for _, e := range r.snapshotEntries() {
		e.mu.Lock()
		if e.dirty && !e.removed {
			n++
		}
		e.mu.Unlock()
	}
	return n
}
