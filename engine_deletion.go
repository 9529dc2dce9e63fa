package goOverlay

import (
	"context"
	"strconv"

	"github.com/MrEthical07/goOverlay/identity"
)

// MarkDeleted hides id from member listings. Marking twice is a no-op and
// there is no way to unmark.
func (e *Engine) MarkDeleted(ctx context.Context, id identity.ID) error {
	id = canonical(id)
	if id.IsZero() {
		return ErrIdentityRequired
	}
	_, err := e.MarkDeletedBulk(ctx, []identity.ID{id})
	return err
}

// MarkDeletedBulk hides every id and returns the ones that were not hidden
// before. One "account deleted" event is appended per newly hidden identity.
func (e *Engine) MarkDeletedBulk(ctx context.Context, ids []identity.ID) ([]identity.ID, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	clean := make([]identity.ID, 0, len(ids))
	for _, id := range ids {
		if id = canonical(id); !id.IsZero() {
			clean = append(clean, id)
		}
	}
	if len(clean) == 0 {
		if len(ids) > 0 {
			return nil, ErrIdentityRequired
		}
		return nil, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	added, err := e.deletions.Mark(ctx, clean...)
	if err != nil {
		err = storeError(err)
		e.logger.Warn("goOverlay: mark deleted failed", "count", len(clean), "error", err)
		e.emitAudit(ctx, auditEventAccountMarkedDeleted, false, "", err, func() map[string]string {
			return map[string]string{"requested": strconv.Itoa(len(clean))}
		})
		return nil, err
	}

	for _, id := range added {
		e.metricInc(MetricAccountMarkedDeleted)
		e.logger.Info("goOverlay: account marked deleted", "user_id", id.String())
		e.appendActivityLocked(ctx, id, ActivityMarkedDeleted, "Account marked deleted")
		e.emitAudit(ctx, auditEventAccountMarkedDeleted, true, id.String(), nil, nil)
	}
	return added, nil
}

// IsDeleted reports whether id is hidden.
func (e *Engine) IsDeleted(ctx context.Context, id identity.ID) bool {
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deletions.Contains(ctx, canonical(id))
}

// ListMembers fetches every identity from the directory, drops the hidden
// ones and annotates the rest as active or suspended. Directory errors are
// returned unchanged.
func (e *Engine) ListMembers(ctx context.Context) ([]Member, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if e.directory == nil {
		return nil, ErrDirectoryRequired
	}

	profiles, err := e.directory.ListIdentities(ctx)
	if err != nil {
		e.emitAudit(ctx, auditEventDirectoryListFailure, false, "", err, nil)
		return nil, err
	}
	e.metricInc(MetricDirectoryListed)

	e.mu.Lock()
	defer e.mu.Unlock()

	hidden := e.deletions.Set(ctx)
	members := make([]Member, 0, len(profiles))
	for _, p := range profiles {
		p = p.Normalize()
		id := p.Identity()
		if _, ok := hidden[id]; ok && !id.IsZero() {
			continue
		}
		status := MemberActive
		if e.checkSuspensionLocked(ctx, id).IsSuspended {
			status = MemberSuspended
		}
		members = append(members, Member{Profile: p, Status: status})
	}
	return members, nil
}
