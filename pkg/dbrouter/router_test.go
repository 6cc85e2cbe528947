package dbrouter_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/dbrouter/pkg/dbrouter"
)

// seed creates a sqlite database whose origin table names it.
func seed(t *testing.T, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name+".db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open %s: %v", name, err)
	}
	defer db.Close()

	stmts := []struct {
		query string
		args  []any
	}{
		{"CREATE TABLE origin (name TEXT)", nil},
		{"INSERT INTO origin (name) VALUES (?)", []any{name}},
		{"CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT)", nil},
	}
	for _, st := range stmts {
		if _, err := db.Exec(st.query, st.args...); err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
	}
	return path
}

func origin(t *testing.T, s *dbrouter.Session) string {
	t.Helper()
	row, err := s.QueryRowContext(context.Background(), "SELECT name FROM origin")
	if err != nil {
		t.Fatalf("QueryRowContext() error = %v", err)
	}
	var name string
	if err := row.Scan(&name); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	return name
}

func countItems(t *testing.T, s *dbrouter.Session) int {
	t.Helper()
	row, err := s.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM items")
	if err != nil {
		t.Fatalf("QueryRowContext() error = %v", err)
	}
	var n int
	if err := row.Scan(&n); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	return n
}

type recordingHandler struct {
	dbrouter.BaseEventHandler

	mu      sync.Mutex
	routes  []dbrouter.RouteEvent
	errs    []dbrouter.RoutingErrorEvent
	reloads []dbrouter.ReloadEvent
	states  []dbrouter.StateChangeEvent
}

func (h *recordingHandler) OnRoute(e dbrouter.RouteEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.routes = append(h.routes, e)
}

func (h *recordingHandler) OnRoutingError(e dbrouter.RoutingErrorEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, e)
}

func (h *recordingHandler) OnReload(e dbrouter.ReloadEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reloads = append(h.reloads, e)
}

func (h *recordingHandler) OnStateChange(e dbrouter.StateChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.states = append(h.states, e)
}

func (h *recordingHandler) Routes() []dbrouter.RouteEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]dbrouter.RouteEvent{}, h.routes...)
}

func (h *recordingHandler) Errors() []dbrouter.RoutingErrorEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]dbrouter.RoutingErrorEvent{}, h.errs...)
}

func (h *recordingHandler) Reloads() []dbrouter.ReloadEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]dbrouter.ReloadEvent{}, h.reloads...)
}

func newRouter(t *testing.T, cfg dbrouter.Config, opts ...dbrouter.Option) *dbrouter.Router {
	t.Helper()
	r, err := dbrouter.New(cfg, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func pairConfig(t *testing.T) (dbrouter.Config, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := dbrouter.DefaultConfig()
	cfg.Targets = map[string]string{
		"writer": seed(t, dir, "writer"),
		"reader": seed(t, dir, "reader"),
	}
	return cfg, dir
}

func TestRouter_ImplicitRouting(t *testing.T) {
	ctx := context.Background()
	cfg, _ := pairConfig(t)
	r := newRouter(t, cfg)

	s, err := r.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	if got := origin(t, s); got != "reader" {
		t.Errorf("read before write served by %q, want reader", got)
	}
	if s.Dirty() {
		t.Error("session dirty before any write")
	}

	if _, err := s.ExecContext(ctx, "INSERT INTO items (name) VALUES (?)", "a"); err != nil {
		t.Fatalf("ExecContext() error = %v", err)
	}
	if !s.Dirty() {
		t.Error("session not dirty after INSERT")
	}
	if got := origin(t, s); got != "writer" {
		t.Errorf("read after write served by %q, want writer", got)
	}
	if err := s.End(true); err != nil {
		t.Fatalf("End(true) error = %v", err)
	}

	s2, _ := r.Begin(ctx)
	defer s2.End(false)
	w, err := s2.Pin("writer")
	if err != nil {
		t.Fatalf("Pin() error = %v", err)
	}
	if n := countItems(t, w); n != 1 {
		t.Errorf("writer items = %d, want 1", n)
	}
	if n := countItems(t, s2); n != 0 {
		t.Errorf("reader items = %d, want 0", n)
	}
}

func TestRouter_RollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	cfg, _ := pairConfig(t)
	r := newRouter(t, cfg)

	s, _ := r.Begin(ctx)
	if _, err := s.ExecContext(ctx, "INSERT INTO items (name) VALUES ('a')"); err != nil {
		t.Fatalf("ExecContext() error = %v", err)
	}
	if err := s.Rollback(); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}

	s2, _ := r.Begin(ctx)
	defer s2.End(false)
	w, _ := s2.Pin("writer")
	if n := countItems(t, w); n != 0 {
		t.Errorf("writer items after rollback = %d, want 0", n)
	}
}

func TestRouter_ExplicitMode(t *testing.T) {
	ctx := context.Background()
	cfg, _ := pairConfig(t)
	cfg.Mode = dbrouter.ModeExplicit
	r := newRouter(t, cfg)

	s, _ := r.Begin(ctx)
	defer s.End(false)

	if got := origin(t, s); got != "writer" {
		t.Errorf("explicit read served by %q, want writer", got)
	}
	if _, err := s.ExecContext(ctx, "UPDATE items SET name = 'b'"); err != nil {
		t.Fatalf("ExecContext() error = %v", err)
	}
	if !s.Dirty() {
		t.Error("explicit session not dirty after UPDATE")
	}

	p, _ := s.Pin("reader")
	if got := origin(t, p); got != "reader" {
		t.Errorf("pinned explicit read served by %q, want reader", got)
	}
}

func TestRouter_PinOverridesDirty(t *testing.T) {
	ctx := context.Background()
	cfg, _ := pairConfig(t)
	r := newRouter(t, cfg)

	s, _ := r.Begin(ctx)
	defer s.End(false)
	if err := s.MarkDirty(); err != nil {
		t.Fatalf("MarkDirty() error = %v", err)
	}

	p, err := s.Pin("reader")
	if err != nil {
		t.Fatalf("Pin() error = %v", err)
	}
	if got := origin(t, p); got != "reader" {
		t.Errorf("pinned read served by %q, want reader", got)
	}
	if got := origin(t, s); got != "writer" {
		t.Errorf("parent read served by %q, want writer", got)
	}
	if p.ParentID() != s.ID() {
		t.Errorf("ParentID() = %q, want %q", p.ParentID(), s.ID())
	}
	if _, ok := s.Override(); ok {
		t.Error("Pin modified the parent's override")
	}

	if err := p.End(false); err != nil {
		t.Fatalf("pinned End() error = %v", err)
	}
	if got := origin(t, s); got != "writer" {
		t.Errorf("parent unusable after pinned End, got %q", got)
	}
}

func TestRouter_PinnedWriteDirtiesParent(t *testing.T) {
	ctx := context.Background()
	cfg, _ := pairConfig(t)
	r := newRouter(t, cfg)

	s, _ := r.Begin(ctx)
	defer s.End(false)
	w, err := s.Pin("writer")
	if err != nil {
		t.Fatalf("Pin() error = %v", err)
	}
	if _, err := w.ExecContext(ctx, "INSERT INTO items (name) VALUES ('a')"); err != nil {
		t.Fatalf("ExecContext() error = %v", err)
	}

	if got := w.LastTarget(); got != "writer" {
		t.Errorf("pinned LastTarget() = %q, want writer", got)
	}
	if !s.Dirty() {
		t.Error("parent not dirty after a write through its pinned session")
	}
	got, err := s.ResolveTarget("SELECT COUNT(*) FROM items")
	if err != nil || got != "writer" {
		t.Errorf("parent ResolveTarget() = %q, %v; want writer", got, err)
	}
	if n := countItems(t, s); n != 1 {
		t.Errorf("parent read sees %d items, want the uncommitted 1", n)
	}

	other, _ := s.Pin("reader")
	if got := origin(t, other); got != "reader" {
		t.Errorf("sibling pinned to reader served by %q", got)
	}
}

func TestRouter_PinnedCommitIsRejected(t *testing.T) {
	ctx := context.Background()
	cfg, _ := pairConfig(t)
	r := newRouter(t, cfg)

	s, _ := r.Begin(ctx)
	w, _ := s.Pin("writer")
	if _, err := w.ExecContext(ctx, "INSERT INTO items (name) VALUES ('a')"); err != nil {
		t.Fatalf("ExecContext() error = %v", err)
	}

	if err := w.End(true); !errors.Is(err, dbrouter.ErrPinnedCommit) {
		t.Fatalf("pinned End(true) error = %v, want ErrPinnedCommit", err)
	}
	if _, err := w.ExecContext(ctx, "INSERT INTO items (name) VALUES ('b')"); !errors.Is(err, dbrouter.ErrSessionClosed) {
		t.Errorf("ExecContext() after pinned End error = %v, want ErrSessionClosed", err)
	}
	if err := s.End(true); err != nil {
		t.Fatalf("root End(true) error = %v", err)
	}

	s2, _ := r.Begin(ctx)
	defer s2.End(false)
	w2, _ := s2.Pin("writer")
	if n := countItems(t, w2); n != 1 {
		t.Errorf("writer items after root commit = %d, want 1", n)
	}
}

func TestRouter_UnknownTarget(t *testing.T) {
	ctx := context.Background()
	cfg, _ := pairConfig(t)
	h := &recordingHandler{}
	r := newRouter(t, cfg, dbrouter.WithEventHandler(h))

	s, _ := r.Begin(ctx)
	defer s.End(false)

	p, _ := s.Pin("reporting")
	_, err := p.QueryContext(ctx, "SELECT name FROM origin")

	var ute *dbrouter.UnknownTargetError
	if !errors.As(err, &ute) || ute.Name != "reporting" {
		t.Fatalf("QueryContext() error = %v, want UnknownTargetError(reporting)", err)
	}
	if !errors.Is(err, dbrouter.ErrUnknownTarget) {
		t.Error("error does not match ErrUnknownTarget")
	}

	errs := h.Errors()
	if len(errs) != 1 || errs[0].Kind != dbrouter.ErrorKindUnknownTarget {
		t.Errorf("routing error events = %+v", errs)
	}
}

func TestRouter_SingleTarget(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := dbrouter.DefaultConfig()
	cfg.DefaultDSN = seed(t, dir, "only")
	h := &recordingHandler{}
	r := newRouter(t, cfg, dbrouter.WithEventHandler(h))

	if got := r.Targets(); len(got) != 1 || got[0] != "writer" {
		t.Fatalf("Targets() = %v, want [writer]", got)
	}

	s, _ := r.Begin(ctx)
	defer s.End(false)
	if got := origin(t, s); got != "only" {
		t.Errorf("read served by %q, want only", got)
	}

	routes := h.Routes()
	if len(routes) != 1 || routes[0].Reason != "single-target" {
		t.Errorf("route events = %+v", routes)
	}
}

func TestRouter_InvalidateUsesDefault(t *testing.T) {
	ctx := context.Background()
	cfg, dir := pairConfig(t)
	cfg.DefaultDSN = seed(t, dir, "default")
	h := &recordingHandler{}
	r := newRouter(t, cfg, dbrouter.WithEventHandler(h))

	r.Invalidate(errors.New("secret store unreachable"))

	s, _ := r.Begin(ctx)
	if got := origin(t, s); got != "default" {
		t.Errorf("degraded read served by %q, want default", got)
	}
	if !s.Degraded() {
		t.Error("Degraded() = false after fallback")
	}
	_ = s.End(false)

	routes := h.Routes()
	last := routes[len(routes)-1]
	if !last.Degraded || !errors.Is(last.Err, dbrouter.ErrConfigurationUnavailable) {
		t.Errorf("last route event = %+v, want degraded with ErrConfigurationUnavailable", last)
	}
	reloads := h.Reloads()
	if len(reloads) != 1 || !reloads[0].Invalidated {
		t.Errorf("reload events = %+v", reloads)
	}

	r.Restore()
	s2, _ := r.Begin(ctx)
	defer s2.End(false)
	if got := origin(t, s2); got != "reader" {
		t.Errorf("read after Restore served by %q, want reader", got)
	}
	if s2.Degraded() {
		t.Error("Degraded() = true after Restore")
	}
}

func TestRouter_InvalidateWithoutDefault(t *testing.T) {
	ctx := context.Background()
	cfg, _ := pairConfig(t)
	h := &recordingHandler{}
	r := newRouter(t, cfg, dbrouter.WithEventHandler(h))

	r.Invalidate(nil)

	s, _ := r.Begin(ctx)
	defer s.End(false)
	_, err := s.ExecContext(ctx, "INSERT INTO items (name) VALUES ('a')")
	if !errors.Is(err, dbrouter.ErrConfigurationUnavailable) {
		t.Fatalf("ExecContext() error = %v, want ErrConfigurationUnavailable", err)
	}
	if _, err := r.Registry(); !errors.Is(err, dbrouter.ErrConfigurationUnavailable) {
		t.Errorf("Registry() error = %v", err)
	}

	errs := h.Errors()
	if len(errs) != 1 || errs[0].Kind != dbrouter.ErrorKindConfigurationUnavailable {
		t.Errorf("routing error events = %+v", errs)
	}
}

func TestRouter_InvalidateRacingReload(t *testing.T) {
	cfg, _ := pairConfig(t)
	h := &recordingHandler{}
	r := newRouter(t, cfg, dbrouter.WithEventHandler(h))

	for i := 0; i < 20; i++ {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := r.Reload(cfg); err != nil {
				t.Errorf("Reload() error = %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			r.Invalidate(errors.New("rotated"))
		}()
		wg.Wait()

		reloads := h.Reloads()
		last := reloads[len(reloads)-1]
		_, err := r.Registry()
		if last.Invalidated != (err != nil) {
			t.Fatalf("iteration %d: last event invalidated=%v but Registry() error = %v", i, last.Invalidated, err)
		}
		if last.Invalidated != (r.Invalidated() != nil) {
			t.Fatalf("iteration %d: Invalidated() = %v disagrees with last event", i, r.Invalidated())
		}
		r.Restore()
	}
}

func TestRouter_Reload(t *testing.T) {
	ctx := context.Background()
	cfg, dir := pairConfig(t)
	h := &recordingHandler{}
	r := newRouter(t, cfg, dbrouter.WithEventHandler(h))

	old, _ := r.Begin(ctx)

	next := cfg
	next.Targets = map[string]string{
		"writer": cfg.Targets["writer"],
		"reader": seed(t, dir, "replica2"),
	}
	if err := r.Reload(next); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if r.Generation() != 2 {
		t.Errorf("Generation() = %d, want 2", r.Generation())
	}

	if got := origin(t, old); got != "reader" {
		t.Errorf("session begun before reload served by %q, want reader", got)
	}
	_ = old.End(false)

	fresh, _ := r.Begin(ctx)
	if got := origin(t, fresh); got != "replica2" {
		t.Errorf("session begun after reload served by %q, want replica2", got)
	}
	_ = fresh.End(false)

	if r.Retired() != 1 {
		t.Fatalf("Retired() = %d, want 1", r.Retired())
	}
	if n, _ := r.CloseRetired(time.Hour); n != 0 {
		t.Errorf("CloseRetired(1h) closed %d, want 0", n)
	}
	n, err := r.CloseRetired(0)
	if err != nil || n != 1 {
		t.Errorf("CloseRetired(0) = %d, %v; want 1, nil", n, err)
	}

	reloads := h.Reloads()
	if len(reloads) != 1 || reloads[0].Err != nil || reloads[0].Generation != 2 {
		t.Errorf("reload events = %+v", reloads)
	}
}

func TestRouter_ReloadModeChange(t *testing.T) {
	ctx := context.Background()
	cfg, _ := pairConfig(t)
	r := newRouter(t, cfg)

	next := cfg
	next.Mode = dbrouter.ModeExplicit
	if err := r.Reload(next); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if r.Mode() != dbrouter.ModeExplicit {
		t.Errorf("Mode() = %v, want explicit", r.Mode())
	}

	s, _ := r.Begin(ctx)
	defer s.End(false)
	if got := origin(t, s); got != "writer" {
		t.Errorf("read served by %q, want writer", got)
	}
}

func TestRouter_ReloadInvalidKeepsCurrent(t *testing.T) {
	cfg, _ := pairConfig(t)
	h := &recordingHandler{}
	r := newRouter(t, cfg, dbrouter.WithEventHandler(h))

	bad := cfg
	bad.Targets = map[string]string{"reader": cfg.Targets["reader"]}
	err := r.Reload(bad)
	if !errors.Is(err, dbrouter.ErrInvalidConfig) {
		t.Fatalf("Reload() error = %v, want ErrInvalidConfig", err)
	}
	if r.Generation() != 1 {
		t.Errorf("Generation() = %d, want 1", r.Generation())
	}
	if r.Retired() != 0 {
		t.Errorf("Retired() = %d, want 0", r.Retired())
	}

	reloads := h.Reloads()
	if len(reloads) != 1 || reloads[0].Err == nil {
		t.Errorf("reload events = %+v, want one failure", reloads)
	}
}

func TestRouter_ResolveTarget(t *testing.T) {
	cfg, _ := pairConfig(t)
	r := newRouter(t, cfg)

	tests := []struct {
		query string
		want  string
	}{
		{"SELECT * FROM items", "reader"},
		{"insert into items values (1)", "writer"},
		{"DROP TABLE items", "writer"},
		{"SELECT updated_at FROM items", "reader"},
	}
	for _, tt := range tests {
		got, err := r.ResolveTarget(tt.query)
		if err != nil {
			t.Fatalf("ResolveTarget(%q) error = %v", tt.query, err)
		}
		if got != tt.want {
			t.Errorf("ResolveTarget(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}
}

func TestSession_EndTwice(t *testing.T) {
	ctx := context.Background()
	cfg, _ := pairConfig(t)
	r := newRouter(t, cfg)

	s, _ := r.Begin(ctx)
	p, _ := s.Pin("writer")

	if err := s.End(true); err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if err := s.End(true); !errors.Is(err, dbrouter.ErrSessionClosed) {
		t.Errorf("second End() = %v, want ErrSessionClosed", err)
	}
	if _, err := s.ExecContext(ctx, "INSERT INTO items (name) VALUES ('a')"); !errors.Is(err, dbrouter.ErrSessionClosed) {
		t.Errorf("ExecContext after End = %v, want ErrSessionClosed", err)
	}
	if _, err := p.QueryContext(ctx, "SELECT 1"); !errors.Is(err, dbrouter.ErrSessionClosed) {
		t.Errorf("pinned query after parent End = %v, want ErrSessionClosed", err)
	}
}

func TestRouter_Close(t *testing.T) {
	cfg, _ := pairConfig(t)
	r, err := dbrouter.New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := r.Begin(context.Background()); !errors.Is(err, dbrouter.ErrRouterClosed) {
		t.Errorf("Begin after Close = %v, want ErrRouterClosed", err)
	}
	if err := r.Reload(cfg); !errors.Is(err, dbrouter.ErrRouterClosed) {
		t.Errorf("Reload after Close = %v, want ErrRouterClosed", err)
	}
	if err := r.Close(); !errors.Is(err, dbrouter.ErrRouterClosed) {
		t.Errorf("second Close = %v, want ErrRouterClosed", err)
	}
}

func TestNew_Errors(t *testing.T) {
	dir := t.TempDir()
	writer := seed(t, dir, "writer")

	tests := []struct {
		name    string
		cfg     dbrouter.Config
		opts    []dbrouter.Option
		wantErr error
	}{
		{
			name:    "no targets",
			cfg:     dbrouter.DefaultConfig(),
			wantErr: dbrouter.ErrInvalidConfig,
		},
		{
			name:    "missing writer",
			cfg:     dbrouter.Config{Targets: map[string]string{"reader": writer}},
			wantErr: dbrouter.ErrInvalidConfig,
		},
		{
			name: "opener fails",
			cfg:  dbrouter.Config{Targets: map[string]string{"writer": writer}},
			opts: []dbrouter.Option{dbrouter.WithOpener(func(context.Context, string, string) (*sql.DB, error) {
				return nil, errOpen
			})},
			wantErr: errOpen,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := dbrouter.New(tt.cfg, tt.opts...)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("New() error = %v, want %v", err, tt.wantErr)
			}
			if r != nil {
				t.Error("New() returned a router with an error")
			}
		})
	}
}

var errOpen = errors.New("open refused")

func TestRouter_SharedDSNOpensOnce(t *testing.T) {
	dir := t.TempDir()
	path := seed(t, dir, "shared")

	var opened int
	opener := func(ctx context.Context, driver, dsn string) (*sql.DB, error) {
		opened++
		return dbrouter.OpenDB(ctx, driver, dsn)
	}

	cfg := dbrouter.DefaultConfig()
	cfg.DefaultDSN = path
	cfg.Targets = map[string]string{"writer": path, "reader": path}
	newRouter(t, cfg, dbrouter.WithOpener(opener))

	if opened != 1 {
		t.Errorf("opened %d handles, want 1", opened)
	}
}
