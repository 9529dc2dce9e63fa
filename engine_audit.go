package goOverlay

import (
	"context"
	"errors"
)

const (
	auditEventLoginSuccess         = "login_success"
	auditEventLoginFailure         = "login_failure"
	auditEventLoginSuspended       = "login_suspended"
	auditEventLogout               = "logout"
	auditEventSessionRestored      = "session_restored"
	auditEventSessionRestoreReject = "session_restore_rejected"
	auditEventSuspensionApplied    = "suspension_applied"
	auditEventSuspensionEnded      = "suspension_ended"
	auditEventAccountMarkedDeleted = "account_marked_deleted"
	auditEventProfileUpdated       = "profile_updated"
	auditEventProfileUpdateFailure = "profile_update_failure"
	auditEventDirectoryListFailure = "directory_list_failure"
)

// AuditErrorCode is the stable error label carried in AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrInvalidCredentials   AuditErrorCode = "invalid_credentials"
	auditErrAccountSuspended     AuditErrorCode = "account_suspended"
	auditErrSessionExpired       AuditErrorCode = "session_expired"
	auditErrIdentityRequired     AuditErrorCode = "identity_required"
	auditErrIdentityNotFound     AuditErrorCode = "identity_not_found"
	auditErrStoreUnavailable     AuditErrorCode = "store_unavailable"
	auditErrDirectoryUnavailable AuditErrorCode = "directory_unavailable"
	auditErrPermissionDenied     AuditErrorCode = "permission_denied"
	auditErrCanceled             AuditErrorCode = "canceled"
	auditErrInternal             AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		Actor:     actorFromContext(ctx),
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountSuspended):
		return auditErrAccountSuspended
	case errors.Is(err, ErrSessionExpired):
		return auditErrSessionExpired
	case errors.Is(err, ErrIdentityRequired):
		return auditErrIdentityRequired
	case errors.Is(err, ErrIdentityNotFound):
		return auditErrIdentityNotFound
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrStoreUnavailable
	case errors.Is(err, ErrDirectoryUnavailable),
		errors.Is(err, ErrDirectoryRequired):
		return auditErrDirectoryUnavailable
	case errors.Is(err, ErrPermissionDenied):
		return auditErrPermissionDenied
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return auditErrCanceled
	default:
		return auditErrInternal
	}
}
