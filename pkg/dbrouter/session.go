package dbrouter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/dbrouter/internal/domain"
	"github.com/bft-labs/dbrouter/pkg/classify"
	"github.com/bft-labs/dbrouter/pkg/log"
	"github.com/bft-labs/dbrouter/pkg/routing"
	"github.com/bft-labs/dbrouter/pkg/session"
)

type sessionEnv struct {
	timeout    time.Duration
	classifier classify.Classifier
	logger     log.Logger
}

// Session is a unit-of-work. Each statement is routed on its own, and runs
// inside a transaction opened lazily on the bound handle. End commits or
// rolls back every transaction the session opened.
//
// A Session is not safe for concurrent use. Sessions derived with Pin share
// the transactions and the dirty flag of the session they came from.
type Session struct {
	ctx   context.Context
	inner *session.Session[*sql.DB]
	env   *sessionEnv
	uow   *unitOfWork

	last string
}

func newSession(ctx context.Context, inner *session.Session[*sql.DB], env *sessionEnv) *Session {
	return &Session{
		ctx:   ctx,
		inner: inner,
		env:   env,
		uow:   &unitOfWork{txs: make(map[*sql.DB]*sql.Tx)},
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.inner.ID() }

// ParentID returns the ID of the session this one was pinned from, or "".
func (s *Session) ParentID() string { return s.inner.ParentID() }

// Pinned reports whether the session was derived with Pin.
func (s *Session) Pinned() bool { return s.inner.Pinned() }

// Override returns the pinned target, if any.
func (s *Session) Override() (string, bool) { return s.inner.Override() }

// Dirty reports whether the unit-of-work has issued a modifying statement,
// through this session or any session sharing its transactions.
func (s *Session) Dirty() bool { return s.inner.Dirty() || s.uow.isDirty() }

// LastTarget returns the target the most recent statement was bound to, or
// "" before the first statement. Degraded statements report DefaultTarget.
func (s *Session) LastTarget() string { return s.last }

// Mode returns the routing mode the session was begun under.
func (s *Session) Mode() Mode { return s.inner.Mode() }

// Degraded reports whether any statement of the unit-of-work ran on the
// default connection because the registry was unavailable.
func (s *Session) Degraded() bool {
	s.uow.mu.Lock()
	defer s.uow.mu.Unlock()
	return s.uow.degraded
}

// MarkDirty routes later statements of the unit-of-work to the writer in
// implicit mode.
func (s *Session) MarkDirty() error {
	if err := s.inner.MarkDirty(); err != nil {
		return err
	}
	s.uow.markDirty()
	return nil
}

// ResolveTarget reports where query would be routed without running it.
func (s *Session) ResolveTarget(query string) (string, error) {
	s.syncDirty()
	return s.inner.ResolveTarget(routing.Op(query))
}

// Pin returns a session that routes every statement to target. The
// receiver is unchanged. The derived session shares the receiver's
// transactions and dirty flag; only the session returned by Router.Begin
// finishes the transactions.
func (s *Session) Pin(target string) (*Session, error) {
	derived, err := s.inner.Pin(target)
	if err != nil {
		return nil, err
	}
	return &Session{
		ctx:   s.ctx,
		inner: derived,
		env:   s.env,
		uow:   s.uow,
	}, nil
}

// ExecContext routes and executes a statement that returns no rows.
func (s *Session) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	st, err := s.prepare(ctx, query)
	if err != nil {
		return nil, err
	}
	defer st.cancel()

	res, err := st.tx.ExecContext(st.ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("exec on %s: %w", st.binding.Target, err)
	}
	s.afterStatement(st.binding, query)
	return res, nil
}

// QueryContext routes and executes a statement that returns rows. The rows
// must be closed before End.
func (s *Session) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	st, err := s.prepare(ctx, query)
	if err != nil {
		return nil, err
	}
	s.uow.deferCancel(st.cancel)

	rows, err := st.tx.QueryContext(st.ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query on %s: %w", st.binding.Target, err)
	}
	s.afterStatement(st.binding, query)
	return rows, nil
}

// QueryRowContext routes and executes a statement expected to return at most
// one row. Routing failures are returned as the error; query failures are
// deferred to Row.Scan as with database/sql.
func (s *Session) QueryRowContext(ctx context.Context, query string, args ...any) (*sql.Row, error) {
	st, err := s.prepare(ctx, query)
	if err != nil {
		return nil, err
	}
	s.uow.deferCancel(st.cancel)

	row := st.tx.QueryRowContext(st.ctx, query, args...)
	s.afterStatement(st.binding, query)
	return row, nil
}

// Commit ends the session, committing its transactions.
func (s *Session) Commit() error { return s.End(true) }

// Rollback ends the session, rolling its transactions back.
func (s *Session) Rollback() error { return s.End(false) }

// End closes the session. On a session returned by Router.Begin it also
// commits (commit=true) or rolls back every open transaction. A pinned
// session only closes its view: End(false) returns nil, End(true) returns
// ErrPinnedCommit and leaves the transactions to the root session. Calling
// End twice returns ErrSessionClosed.
func (s *Session) End(commit bool) error {
	if err := s.inner.End(commit); err != nil {
		return err
	}
	if s.inner.Pinned() {
		if commit {
			return fmt.Errorf("%w: end session %s instead", ErrPinnedCommit, s.inner.ParentID())
		}
		return nil
	}
	return s.uow.finish(commit)
}

type statement struct {
	binding session.Binding[*sql.DB]
	tx      *sql.Tx
	ctx     context.Context
	cancel  context.CancelFunc
}

// syncDirty carries a write made through another session of the same
// unit-of-work into this one, so its reads see that write.
func (s *Session) syncDirty() {
	if s.uow.isDirty() && !s.inner.Dirty() {
		_ = s.inner.MarkDirty()
	}
}

func (s *Session) prepare(ctx context.Context, query string) (statement, error) {
	s.syncDirty()
	b, err := s.inner.Bind(routing.Op(query))
	if err != nil {
		if !b.Degraded {
			return statement{}, err
		}
		s.uow.markDegraded()
	}

	tx, err := s.uow.tx(s.ctx, b.Handle)
	if err != nil {
		return statement{}, fmt.Errorf("begin on %s: %w", b.Target, err)
	}
	s.last = b.Target

	if ctx == nil {
		ctx = s.ctx
	}
	st := statement{binding: b, tx: tx, ctx: ctx, cancel: func() {}}
	if s.env.timeout > 0 {
		st.ctx, st.cancel = context.WithTimeout(ctx, s.env.timeout)
	}
	return st, nil
}

// afterStatement marks the session dirty once a modifying statement ran.
// Explicit mode does not classify while routing, so the verdict is computed here.
func (s *Session) afterStatement(b session.Binding[*sql.DB], query string) {
	if s.Dirty() {
		return
	}
	v := b.Verdict
	if v == domain.VerdictUnknown {
		v = s.env.classifier.Classify(query)
	}
	if v == domain.VerdictModifying {
		_ = s.inner.MarkDirty()
		s.uow.markDirty()
	}
}

// unitOfWork holds the transactions shared by a session and its pins.
type unitOfWork struct {
	mu       sync.Mutex
	txs      map[*sql.DB]*sql.Tx
	order    []*sql.DB
	cancels  []context.CancelFunc
	dirty    bool
	degraded bool
	ended    bool
}

func (u *unitOfWork) tx(ctx context.Context, db *sql.DB) (*sql.Tx, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.ended {
		return nil, domain.ErrSessionClosed
	}
	if tx, ok := u.txs[db]; ok {
		return tx, nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	u.txs[db] = tx
	u.order = append(u.order, db)
	return tx, nil
}

func (u *unitOfWork) deferCancel(cancel context.CancelFunc) {
	u.mu.Lock()
	u.cancels = append(u.cancels, cancel)
	u.mu.Unlock()
}

func (u *unitOfWork) markDirty() {
	u.mu.Lock()
	u.dirty = true
	u.mu.Unlock()
}

func (u *unitOfWork) isDirty() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.dirty
}

func (u *unitOfWork) markDegraded() {
	u.mu.Lock()
	u.degraded = true
	u.mu.Unlock()
}

// finish commits or rolls back in the order the transactions were opened.
// After a failed commit the remaining transactions are rolled back.
func (u *unitOfWork) finish(commit bool) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.ended {
		return domain.ErrSessionClosed
	}
	u.ended = true

	var errs []error
	failed := false
	for _, db := range u.order {
		tx := u.txs[db]
		if commit && !failed {
			if err := tx.Commit(); err != nil {
				errs = append(errs, fmt.Errorf("commit: %w", err))
				failed = true
			}
			continue
		}
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			errs = append(errs, fmt.Errorf("rollback: %w", err))
		}
	}
	for _, cancel := range u.cancels {
		cancel()
	}
	u.txs, u.order, u.cancels = nil, nil, nil

	return errors.Join(errs...)
}
