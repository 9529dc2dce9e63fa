package goOverlay

import (
	"context"
	"strconv"

	"github.com/MrEthical07/goOverlay/identity"
	"github.com/MrEthical07/goOverlay/internal/overlay"
)

// Suspend locks id out for the configured window (24h by default), replacing
// any live suspension so repeated calls restart the window. An "account
// suspended" event is appended to the ledger.
func (e *Engine) Suspend(ctx context.Context, id identity.ID, reason string) (SuspensionRecord, error) {
	if e == nil {
		return SuspensionRecord{}, ErrEngineNotReady
	}
	id = canonical(id)
	if id.IsZero() {
		return SuspensionRecord{}, ErrIdentityRequired
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rec, err := e.suspensions.Apply(ctx, id, reason)
	if err != nil {
		err = storeError(err)
		e.logger.Warn("goOverlay: suspend failed", "user_id", id.String(), "error", err)
		e.emitAudit(ctx, auditEventSuspensionApplied, false, id.String(), err, nil)
		return SuspensionRecord{}, err
	}

	e.metricInc(MetricSuspensionApplied)
	e.logger.Info("goOverlay: account suspended",
		"user_id", id.String(), "expires_at", rec.ExpiresAt, "reason", rec.Reason)
	e.appendActivityLocked(ctx, id, ActivitySuspended, suspendedDescription(rec.Reason))
	e.emitAudit(ctx, auditEventSuspensionApplied, true, id.String(), nil, func() map[string]string {
		return map[string]string{
			"reason":     rec.Reason,
			"expires_at": rec.ExpiresAt.Format(timeFormat),
		}
	})
	return rec, nil
}

// CheckSuspension reports whether id is locked out now. A record whose window
// has closed is removed as a side effect. An empty identity is never suspended.
func (e *Engine) CheckSuspension(ctx context.Context, id identity.ID) SuspensionStatus {
	if e == nil {
		return SuspensionStatus{}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.checkSuspensionLocked(ctx, canonical(id))
}

func (e *Engine) checkSuspensionLocked(ctx context.Context, id identity.ID) SuspensionStatus {
	if id.IsZero() {
		return SuspensionStatus{}
	}
	rec, ok := e.suspensions.Check(ctx, id)
	if !ok {
		return SuspensionStatus{}
	}
	return SuspensionStatus{
		IsSuspended: true,
		Message:     overlay.SuspensionMessage(rec.Remaining(e.now()), rec.Reason),
		Reason:      rec.Reason,
		ExpiresAt:   rec.ExpiresAt,
	}
}

// EndSuspension lifts any suspension of id and records an "account
// reactivated" event. Lifting an identity that is not suspended is not an error.
func (e *Engine) EndSuspension(ctx context.Context, id identity.ID) error {
	if e == nil {
		return ErrEngineNotReady
	}
	id = canonical(id)
	if id.IsZero() {
		return ErrIdentityRequired
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	existed, err := e.suspensions.Remove(ctx, id)
	if err != nil {
		err = storeError(err)
		e.logger.Warn("goOverlay: end suspension failed", "user_id", id.String(), "error", err)
		e.emitAudit(ctx, auditEventSuspensionEnded, false, id.String(), err, nil)
		return err
	}

	e.metricInc(MetricSuspensionEnded)
	e.logger.Info("goOverlay: suspension ended", "user_id", id.String(), "had_record", existed)
	e.appendActivityLocked(ctx, id, ActivityReactivated, "Account reactivated")
	e.emitAudit(ctx, auditEventSuspensionEnded, true, id.String(), nil, func() map[string]string {
		return map[string]string{"had_record": strconv.FormatBool(existed)}
	})
	return nil
}

// ListSuspensions returns every live suspension, soonest expiry first.
func (e *Engine) ListSuspensions(ctx context.Context) []SuspensionRecord {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.suspensions.Live(ctx)
}

func suspendedDescription(reason string) string {
	if reason == "" {
		return "Account suspended"
	}
	return "Account suspended. Reason: " + reason
}
