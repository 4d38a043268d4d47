// Package engine implements the credential and session lifecycle core:
// authentication, token issuance and refresh, revocation, account locking,
// and credential rotation, coordinated across the relational account store
// and the document session store.
//
// There is no transaction spanning the two stores. Consistency comes from
// commit order instead: account mutations (with their staged events) commit
// to the relational store first, session mutations follow, and a
// reconciliation pass re-drives any cascade the session store failed to
// finish. No in-process lock is held across a store round-trip; per-account
// serialization rides on the account version via compare-and-swap.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	accountdomain "authgate/internal/account/domain"
	accountrepo "authgate/internal/account/repository"
	eventdomain "authgate/internal/event/domain"
	"authgate/internal/security"
	sessiondomain "authgate/internal/session/domain"
	"authgate/internal/validate"
	"authgate/internal/wire"
)

// Sentinel errors for engine operations. Input and policy failures surface
// as validate.ErrInputInvalid / validate.ErrPolicyViolation, malformed
// tokens as wire.ErrTokenMalformed; none of those ever touch a store.
var (
	ErrAccountNotFound   = errors.New("engine: account not found")
	ErrAccountLocked     = errors.New("engine: account locked")
	ErrAccountDisabled   = errors.New("engine: account disabled")
	ErrInvalidCredential = errors.New("engine: invalid credential")
	ErrSessionNotFound   = errors.New("engine: session not found")
	ErrSessionExpired    = errors.New("engine: session expired")
	ErrSessionRevoked    = errors.New("engine: session revoked")

	// ErrConflict means a concurrent writer won the account version race.
	// The caller re-reads and retries; nothing was written.
	ErrConflict = errors.New("engine: concurrent update conflict")

	// ErrStoreUnavailable means a store stayed unreachable past the retry
	// budget for an operation that could not complete partially.
	ErrStoreUnavailable = errors.New("engine: store unavailable")
)

// AccountStore is the durable account store contract the engine needs. The
// relational repository satisfies it; tests use an in-memory fake.
type AccountStore interface {
	GetByID(ctx context.Context, id string) (*accountdomain.Account, error)
	GetByIdentifier(ctx context.Context, identifier string) (*accountdomain.Account, error)
	Create(ctx context.Context, a *accountdomain.Account, events ...*eventdomain.AuthEvent) error
	CompareAndSwap(ctx context.Context, a *accountdomain.Account, expectedVersion int64, events ...*eventdomain.AuthEvent) error
	AppendEvents(ctx context.Context, accountID string, events ...*eventdomain.AuthEvent) error
	ClearPendingRevoke(ctx context.Context, accountID string) error
	ListPendingRevoke(ctx context.Context, limit int) ([]*accountdomain.Account, error)
}

// SessionStore is the session/profile store contract the engine needs.
type SessionStore interface {
	Create(ctx context.Context, s *sessiondomain.Session) error
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
	Update(ctx context.Context, s *sessiondomain.Session) error
	ListActiveByAccount(ctx context.Context, accountID string) ([]*sessiondomain.Session, error)
}

// AuthResult is the outcome of a successful Authenticate: the new session
// and its initial encoded token.
type AuthResult struct {
	Session *sessiondomain.Session
	Token   string
}

// LockResult reports a LockAccount outcome. The lock itself always
// succeeded when err is nil; PendingRevoke is set when the session-store
// cascade exhausted its retries and was handed to the reconciler. The
// account is already LOCKED for authorization purposes either way.
type LockResult struct {
	SessionsRevoked int
	PendingRevoke   bool
}

// Engine orchestrates the credential and session lifecycle. Store handles
// are injected at construction; the engine never builds connections itself.
type Engine struct {
	accounts   AccountStore
	sessions   SessionStore
	codec      *wire.Codec
	hasher     *security.Hasher
	tokenTTL   time.Duration
	sessionTTL time.Duration

	now        func() time.Time
	newBackoff func(ctx context.Context) backoff.BackOff
}

const cascadeMaxRetries = 3

// NewEngine returns an Engine with the given dependencies. tokenTTL bounds
// individual tokens; sessionTTL bounds the session behind them. A token's
// expiry never exceeds its session's.
func NewEngine(accounts AccountStore, sessions SessionStore, codec *wire.Codec, hasher *security.Hasher, tokenTTL, sessionTTL time.Duration) *Engine {
	return &Engine{
		accounts:   accounts,
		sessions:   sessions,
		codec:      codec,
		hasher:     hasher,
		tokenTTL:   tokenTTL,
		sessionTTL: sessionTTL,
		now:        func() time.Time { return time.Now().UTC() },
		newBackoff: func(ctx context.Context) backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = 100 * time.Millisecond
			return backoff.WithContext(backoff.WithMaxRetries(bo, cascadeMaxRetries), ctx)
		},
	}
}

// CreateAccount registers a new account at version 0 after validating the
// identifier and credential format. Fails fast on malformed input; the
// plaintext credential is hashed and discarded.
func (e *Engine) CreateAccount(ctx context.Context, identifier, credential string) (*accountdomain.Account, error) {
	if err := validate.Identifier(identifier); err != nil {
		return nil, err
	}
	if err := validate.Credential(credential); err != nil {
		return nil, err
	}
	hash, err := e.hasher.Hash([]byte(credential))
	if err != nil {
		return nil, err
	}
	now := e.now()
	a := &accountdomain.Account{
		ID:             uuid.New().String(),
		Identifier:     identifier,
		CredentialHash: hash,
		CredentialAlgo: accountdomain.CredentialAlgoBcrypt,
		Status:         accountdomain.StatusActive,
		Version:        0,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if err := e.accounts.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Authenticate validates the identifier format, verifies the presented
// credential against the account's hash in constant time, creates a new
// ACTIVE session, stages a LOGIN event, and returns the session with its
// initial token. The LOGIN staging runs under the account version guard,
// so a concurrent lock or rotation surfaces as ErrConflict for the caller
// to retry after re-reading.
func (e *Engine) Authenticate(ctx context.Context, identifier, credential string) (*AuthResult, error) {
	if err := validate.Identifier(identifier); err != nil {
		return nil, err
	}
	acct, err := e.accounts.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, ErrAccountNotFound
	}
	switch acct.Status {
	case accountdomain.StatusLocked:
		return nil, ErrAccountLocked
	case accountdomain.StatusDisabled:
		return nil, ErrAccountDisabled
	}
	if err := e.hasher.Compare(acct.CredentialHash, []byte(credential)); err != nil {
		return nil, ErrInvalidCredential
	}

	now := e.now()
	sess := &sessiondomain.Session{
		ID:        uuid.New().String(),
		AccountID: acct.ID,
		State:     sessiondomain.StateActive,
		IssuedAt:  now,
		ExpiresAt: now.Add(e.sessionTTL),
	}

	// Commit order: the LOGIN event is durably staged in the account store
	// before the session commit, then the session write is retried until
	// the budget runs out. Staging goes through CompareAndSwap so any
	// account write since the read above loses the race as ErrConflict.
	if err := e.accounts.CompareAndSwap(ctx, acct, acct.Version, e.newEvent(eventdomain.TypeLogin, acct.ID, sess.ID)); err != nil {
		return nil, e.mapAccountErr(err)
	}
	if err := e.retry(ctx, func() error { return e.sessions.Create(ctx, sess) }); err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	// A lock reading our bumped version can still finish its cascade
	// before the session write lands. Re-check the authoritative account
	// and roll the session back rather than hand out a usable token.
	if after, err := e.accounts.GetByID(ctx, acct.ID); err != nil || after == nil || after.Status != accountdomain.StatusActive {
		e.revokeRecord(ctx, sess, eventdomain.TypeRevoke)
		switch {
		case err != nil:
			return nil, err
		case after == nil:
			return nil, ErrAccountNotFound
		case after.Status == accountdomain.StatusDisabled:
			return nil, ErrAccountDisabled
		default:
			return nil, ErrAccountLocked
		}
	}

	token, err := e.issueToken(sess, now)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Session: sess, Token: token}, nil
}

// RefreshToken decodes and verifies the presented token, re-reads its
// session, confirms the owning account is still ACTIVE, and issues a new
// token with extended validity while the session is ACTIVE and unexpired.
// The session's refresh count and last-seen time are bumped; a REFRESH
// event is staged.
//
// The token's own expiry does not gate refresh. A token is a capability
// handle for its session: expiry bounds acceptance by resource consumers,
// while refresh answers to the authoritative session and account state.
// Token expiry never exceeds session expiry, so an expiry gate here would
// shadow the session-expired outcome entirely; a leaked handle is cut off
// by Revoke or LockAccount, not by waiting out the clock.
func (e *Engine) RefreshToken(ctx context.Context, token string) (string, error) {
	t, err := e.codec.DecodeToken(token)
	if err != nil {
		return "", err
	}
	sess, err := e.sessions.GetByID(ctx, t.SessionID)
	if err != nil {
		return "", err
	}
	if sess == nil {
		return "", ErrSessionNotFound
	}
	now := e.now()
	switch {
	case sess.State == sessiondomain.StateRevoked:
		return "", ErrSessionRevoked
	case sess.State == sessiondomain.StateExpired:
		return "", ErrSessionExpired
	case !now.Before(sess.ExpiresAt):
		// Observed past expiry: record the monotonic ACTIVE -> EXPIRED
		// transition, best effort.
		sess.State = sessiondomain.StateExpired
		_ = e.sessions.Update(ctx, sess)
		return "", ErrSessionExpired
	}

	// The account store is the authority for authorization: a lock blocks
	// refresh even while its revoke cascade is still pending against the
	// session store.
	acct, err := e.accounts.GetByID(ctx, sess.AccountID)
	if err != nil {
		return "", err
	}
	if acct == nil {
		return "", ErrAccountNotFound
	}
	switch acct.Status {
	case accountdomain.StatusLocked:
		// Apply the revocation the pending cascade owes this session;
		// the reconciler skips it once applied.
		e.revokeRecord(ctx, sess, eventdomain.TypeRevoke)
		return "", ErrSessionRevoked
	case accountdomain.StatusDisabled:
		return "", ErrAccountDisabled
	}

	sess.RefreshCount++
	sess.LastSeenAt = &now
	if err := e.accounts.AppendEvents(ctx, sess.AccountID, e.newEvent(eventdomain.TypeRefresh, sess.AccountID, sess.ID)); err != nil {
		return "", err
	}
	if err := e.sessions.Update(ctx, sess); err != nil {
		return "", err
	}
	return e.issueToken(sess, now)
}

// Revoke transitions the session to REVOKED and stages a REVOKE event.
// Idempotent: revoking an already-revoked or expired session is a no-op
// success; only a real ACTIVE -> REVOKED transition produces an event.
func (e *Engine) Revoke(ctx context.Context, sessionID string) error {
	if err := validate.SessionID(sessionID); err != nil {
		return err
	}
	return e.revokeSession(ctx, sessionID, eventdomain.TypeRevoke)
}

// Logout decodes the presented token and revokes its session, staging a
// LOGOUT event instead of a REVOKE. Logging out of an already-terminated
// session is a no-op success.
func (e *Engine) Logout(ctx context.Context, token string) error {
	t, err := e.codec.DecodeToken(token)
	if err != nil {
		return err
	}
	return e.revokeSession(ctx, t.SessionID, eventdomain.TypeLogout)
}

func (e *Engine) revokeSession(ctx context.Context, sessionID string, typ eventdomain.Type) error {
	sess, err := e.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrSessionNotFound
	}
	if sess.State != sessiondomain.StateActive {
		return nil
	}
	if err := e.accounts.AppendEvents(ctx, sess.AccountID, e.newEvent(typ, sess.AccountID, sess.ID)); err != nil {
		return err
	}
	now := e.now()
	sess.State = sessiondomain.StateRevoked
	sess.RevokedAt = &now
	return e.sessions.Update(ctx, sess)
}

// revokeRecord applies ACTIVE -> REVOKED to a session already in hand,
// staging typ for the transition. Best effort on the session write: a miss
// leaves the record to the lazy refresh check or the reconciler, and the
// caller was never handed a usable token either way.
func (e *Engine) revokeRecord(ctx context.Context, sess *sessiondomain.Session, typ eventdomain.Type) {
	if sess.State != sessiondomain.StateActive {
		return
	}
	if err := e.accounts.AppendEvents(ctx, sess.AccountID, e.newEvent(typ, sess.AccountID, sess.ID)); err != nil {
		return
	}
	now := e.now()
	sess.State = sessiondomain.StateRevoked
	sess.RevokedAt = &now
	_ = e.sessions.Update(ctx, sess)
}

// LockAccount sets the account LOCKED and cascades a revoke over its
// ACTIVE sessions. The lock commits first (with its LOCK event and the
// pending-revoke marker, in one transaction); the cascade then runs against
// the session store with bounded backoff. If the cascade cannot finish, the
// lock still stands: the result reports PendingRevoke and the
// reconciliation pass finishes the job.
func (e *Engine) LockAccount(ctx context.Context, accountID string) (*LockResult, error) {
	if err := validate.AccountID(accountID); err != nil {
		return nil, err
	}
	acct, err := e.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, ErrAccountNotFound
	}

	if acct.Status != accountdomain.StatusLocked {
		acct.Status = accountdomain.StatusLocked
		acct.PendingRevoke = true
		err := e.accounts.CompareAndSwap(ctx, acct, acct.Version,
			e.newEvent(eventdomain.TypeLock, acct.ID, ""))
		if err != nil {
			return nil, e.mapAccountErr(err)
		}
	} else if !acct.PendingRevoke {
		// Re-locking: make the marker durable before touching the session
		// store, so a cascade failure below is still found by the
		// reconciler. No second LOCK event; the lock already happened.
		acct.PendingRevoke = true
		if err := e.accounts.CompareAndSwap(ctx, acct, acct.Version); err != nil {
			return nil, e.mapAccountErr(err)
		}
	}

	revoked, err := e.cascadeRevoke(ctx, accountID)
	if err != nil {
		// Partial success: the account is locked and no longer
		// authenticates; outstanding sessions are flagged for the
		// reconciler.
		return &LockResult{SessionsRevoked: revoked, PendingRevoke: true}, nil
	}
	if err := e.accounts.ClearPendingRevoke(ctx, accountID); err != nil {
		return &LockResult{SessionsRevoked: revoked, PendingRevoke: true}, nil
	}
	return &LockResult{SessionsRevoked: revoked}, nil
}

// RotateCredential writes a new credential hash under the account's version
// guard. It deliberately leaves sessions untouched: rotation and session
// invalidation are independent, and callers wanting both also call Revoke
// or LockAccount.
func (e *Engine) RotateCredential(ctx context.Context, accountID, newCredential string) error {
	if err := validate.AccountID(accountID); err != nil {
		return err
	}
	if err := validate.Credential(newCredential); err != nil {
		return err
	}
	acct, err := e.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if acct == nil {
		return ErrAccountNotFound
	}
	hash, err := e.hasher.Hash([]byte(newCredential))
	if err != nil {
		return err
	}
	acct.CredentialHash = hash
	acct.CredentialAlgo = accountdomain.CredentialAlgoBcrypt
	if err := e.accounts.CompareAndSwap(ctx, acct, acct.Version); err != nil {
		return e.mapAccountErr(err)
	}
	return nil
}

// cascadeRevoke revokes every ACTIVE session of the account, staging one
// REVOKE event per session. Each store step is retried with bounded
// backoff. Idempotent: already-revoked sessions are skipped, so re-running
// after a partial failure never double-applies.
func (e *Engine) cascadeRevoke(ctx context.Context, accountID string) (int, error) {
	var sessions []*sessiondomain.Session
	err := e.retry(ctx, func() error {
		var lerr error
		sessions, lerr = e.sessions.ListActiveByAccount(ctx, accountID)
		return lerr
	})
	if err != nil {
		return 0, err
	}

	revoked := 0
	for _, sess := range sessions {
		if sess.State != sessiondomain.StateActive {
			continue
		}
		if err := e.accounts.AppendEvents(ctx, accountID, e.newEvent(eventdomain.TypeRevoke, accountID, sess.ID)); err != nil {
			return revoked, err
		}
		now := e.now()
		sess.State = sessiondomain.StateRevoked
		sess.RevokedAt = &now
		if err := e.retry(ctx, func() error { return e.sessions.Update(ctx, sess) }); err != nil {
			return revoked, err
		}
		revoked++
	}
	return revoked, nil
}

// issueToken encodes a token for an ACTIVE session. The token expiry is
// capped by the session expiry, keeping tokens short-lived against the
// longer session.
func (e *Engine) issueToken(sess *sessiondomain.Session, now time.Time) (string, error) {
	exp := now.Add(e.tokenTTL)
	if exp.After(sess.ExpiresAt) {
		exp = sess.ExpiresAt
	}
	return e.codec.EncodeToken(&wire.Token{
		SessionID: sess.ID,
		AccountID: sess.AccountID,
		IssuedAt:  now.Unix(),
		ExpiresAt: exp.Unix(),
	})
}

func (e *Engine) newEvent(typ eventdomain.Type, accountID, sessionID string) *eventdomain.AuthEvent {
	return &eventdomain.AuthEvent{
		ID:         uuid.New().String(),
		Type:       typ,
		AccountID:  accountID,
		SessionID:  sessionID,
		OccurredAt: e.now(),
	}
}

func (e *Engine) retry(ctx context.Context, op func() error) error {
	return backoff.Retry(op, e.newBackoff(ctx))
}

func (e *Engine) mapAccountErr(err error) error {
	switch {
	case errors.Is(err, accountrepo.ErrConflict):
		return ErrConflict
	case errors.Is(err, accountrepo.ErrNotFound):
		return ErrAccountNotFound
	default:
		return err
	}
}
