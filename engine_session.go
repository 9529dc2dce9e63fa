package goOverlay

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/goOverlay/identity"
	"github.com/MrEthical07/goOverlay/internal/overlay"
	"github.com/MrEthical07/goOverlay/jwt"
)

// Session returns the current session. The zero value means nobody is
// signed in.
func (e *Engine) Session() Session {
	if e == nil {
		return Session{}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// RestoreSession re-establishes the session from stored credentials, normally
// once at process start. With nothing stored it returns an unauthenticated
// session and no error.
//
// Stored credentials of a suspended identity are discarded and a
// *SuspensionError is returned. With Session.RejectExpiredTokens, credentials
// whose token carries a past exp claim are discarded with ErrSessionExpired.
func (e *Engine) RestoreSession(ctx context.Context) (Session, error) {
	if e == nil {
		return Session{}, ErrEngineNotReady
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	creds, ok := e.credentials.Load(ctx)
	if !ok {
		e.session = Session{}
		return Session{}, nil
	}

	id := canonical(creds.UserID)
	if status := e.checkSuspensionLocked(ctx, id); status.IsSuspended {
		err := suspensionError(id, status)
		e.discardCredentialsLocked(ctx, "suspended")
		e.metricInc(MetricSessionRestoreRejected)
		e.logger.Info("goOverlay: stored session refused, account suspended",
			"user_id", id.String(), "expires_at", status.ExpiresAt)
		e.emitAudit(ctx, auditEventSessionRestoreReject, false, id.String(), err, nil)
		return Session{}, err
	}

	if e.config.Session.RejectExpiredTokens {
		if exp, ok := jwt.Expiry(creds.Token); ok && !exp.After(e.now()) {
			e.discardCredentialsLocked(ctx, "token expired")
			e.metricInc(MetricSessionRestoreRejected)
			e.emitAudit(ctx, auditEventSessionRestoreReject, false, id.String(), ErrSessionExpired, func() map[string]string {
				return map[string]string{"expired_at": exp.UTC().Format(timeFormat)}
			})
			return Session{}, ErrSessionExpired
		}
	}

	sess := Session{
		UserID:        id,
		DisplayName:   creds.DisplayName,
		Email:         creds.Email,
		Role:          creds.Role,
		Authenticated: true,
	}
	if e.config.Session.StreakEnabled && !id.IsZero() {
		sess.Streak = e.streaks.Get(ctx, id).Count
	}
	e.session = sess
	e.metricInc(MetricSessionRestored)
	e.emitAudit(ctx, auditEventSessionRestored, true, id.String(), nil, nil)
	return sess, nil
}

// Login authenticates against the directory, then consults the suspension
// overlay. A suspended identity is refused with a *SuspensionError even though
// the directory accepted the password. Directory errors are returned
// unchanged.
//
// On success the credentials are stored for RestoreSession, a "logged in"
// event is recorded and the login streak is advanced.
func (e *Engine) Login(ctx context.Context, email, password string) (Session, error) {
	if e == nil {
		return Session{}, ErrEngineNotReady
	}
	if e.directory == nil {
		return Session{}, ErrDirectoryRequired
	}

	start := time.Now()
	defer func() {
		e.metrics.Observe(MetricLoginLatency, time.Since(start))
	}()

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", ErrInvalidCredentials, nil)
		return Session{}, ErrInvalidCredentials
	}

	res, err := e.directory.Authenticate(ctx, email, password)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", err, func() map[string]string {
			return map[string]string{"email": email}
		})
		return Session{}, err
	}

	id := canonical(res.User.Normalize().Canonical())

	e.mu.Lock()
	defer e.mu.Unlock()

	if status := e.checkSuspensionLocked(ctx, id); status.IsSuspended {
		err := suspensionError(id, status)
		e.metricInc(MetricLoginSuspended)
		e.logger.Info("goOverlay: login refused, account suspended",
			"user_id", id.String(), "expires_at", status.ExpiresAt)
		e.emitAudit(ctx, auditEventLoginSuspended, false, id.String(), err, nil)
		return Session{}, err
	}

	displayName := res.DisplayName
	if displayName == "" {
		displayName = email
	}
	resEmail := res.Email
	if resEmail == "" {
		resEmail = email
	}

	creds := overlay.Credentials{
		UserID:      id,
		DisplayName: displayName,
		Email:       resEmail,
		Role:        res.Role,
		Token:       res.SessionToken,
		IssuedAt:    e.now().UTC(),
	}
	if err := e.credentials.Save(ctx, creds); err != nil {
		e.logger.Warn("goOverlay: could not store credentials, session will not survive restart",
			"user_id", id.String(), "error", err)
	}

	sess := Session{
		UserID:        id,
		DisplayName:   displayName,
		Email:         resEmail,
		Role:          res.Role,
		Authenticated: true,
	}
	e.appendActivityLocked(ctx, id, ActivityLogin, "Logged in")
	if e.config.Session.StreakEnabled && !id.IsZero() {
		streak, err := e.streaks.Record(ctx, id)
		if err != nil {
			e.logger.Warn("goOverlay: login streak not saved", "user_id", id.String(), "error", err)
		}
		sess.Streak = streak.Count
	}
	e.session = sess

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, id.String(), nil, func() map[string]string {
		return map[string]string{"streak": strconv.Itoa(sess.Streak)}
	})
	return sess, nil
}

// Logout records a "logged out" event for the signed-in identity, then clears
// the stored credentials and the session. When this process never restored
// the session, the identity is taken from the stored credentials.
func (e *Engine) Logout(ctx context.Context) error {
	if e == nil {
		return ErrEngineNotReady
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.session.UserID
	if !e.session.Authenticated {
		if creds, ok := e.credentials.Load(ctx); ok {
			id = canonical(creds.UserID)
		}
	}
	if !id.IsZero() {
		e.appendActivityLocked(ctx, id, ActivityLogout, "Logged out")
	}

	e.session = Session{}
	err := e.credentials.Clear(ctx)
	e.metricInc(MetricLogout)
	if err != nil {
		err = storeError(err)
		e.logger.Warn("goOverlay: could not clear stored credentials", "error", err)
	}
	e.emitAudit(ctx, auditEventLogout, err == nil, id.String(), err, nil)
	return err
}

// UpdateProfile writes patch through the directory and, on success, records a
// "profile updated" event naming the changed fields.
func (e *Engine) UpdateProfile(ctx context.Context, id identity.ID, patch map[string]any) (Profile, error) {
	if e == nil {
		return Profile{}, ErrEngineNotReady
	}
	if e.directory == nil {
		return Profile{}, ErrDirectoryRequired
	}
	id = canonical(id)
	if id.IsZero() {
		return Profile{}, ErrIdentityRequired
	}

	p, err := e.directory.UpdateIdentity(ctx, id, patch)
	if err != nil {
		e.emitAudit(ctx, auditEventProfileUpdateFailure, false, id.String(), err, nil)
		return Profile{}, err
	}
	p = p.Normalize()
	fields := changedFields(patch)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.appendActivityLocked(ctx, id, ActivityProfileUpdated, profileDescription(fields))
	if e.session.Authenticated && e.session.UserID == id {
		if p.DisplayName != "" {
			e.session.DisplayName = p.DisplayName
		}
		if p.Email != "" {
			e.session.Email = p.Email
		}
	}
	e.metricInc(MetricProfileUpdated)
	e.emitAudit(ctx, auditEventProfileUpdated, true, id.String(), nil, func() map[string]string {
		return map[string]string{"fields": strings.Join(fields, ",")}
	})
	return p, nil
}

// LoginStreak returns the stored consecutive-day counter of id.
func (e *Engine) LoginStreak(ctx context.Context, id identity.ID) LoginStreak {
	if e == nil {
		return LoginStreak{}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.streaks.Get(ctx, canonical(id))
}

func (e *Engine) discardCredentialsLocked(ctx context.Context, why string) {
	e.session = Session{}
	if err := e.credentials.Clear(ctx); err != nil {
		e.logger.Warn("goOverlay: could not discard stored credentials", "reason", why, "error", err)
	}
}

func suspensionError(id identity.ID, status SuspensionStatus) *SuspensionError {
	return &SuspensionError{
		UserID:    id,
		Message:   status.Message,
		Reason:    status.Reason,
		ExpiresAt: status.ExpiresAt,
	}
}

func changedFields(patch map[string]any) []string {
	fields := make([]string, 0, len(patch))
	for k := range patch {
		if k == identity.FieldID || k == identity.FieldAlias {
			continue
		}
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

func profileDescription(fields []string) string {
	if len(fields) == 0 {
		return "Profile updated"
	}
	return "Profile updated: " + strings.Join(fields, ", ")
}
