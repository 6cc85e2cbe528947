package registry

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/bft-labs/dbrouter/internal/domain"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		targets map[string]string
		wantErr error
	}{
		{"writer only", map[string]string{"writer": "w.db"}, nil},
		{"writer and reader", map[string]string{"writer": "w.db", "reader": "r.db"}, nil},
		{"named bind", map[string]string{"writer": "w.db", "analytics": "a.db"}, nil},
		{"missing writer", map[string]string{"reader": "r.db"}, domain.ErrMissingWriter},
		{"nil map", nil, domain.ErrMissingWriter},
		{"empty name", map[string]string{"writer": "w.db", "": "x.db"}, domain.ErrInvalidConfig},
		{"padded name", map[string]string{"writer": "w.db", " reader": "x.db"}, domain.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(tt.targets)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("New error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if r.Len() != len(tt.targets) {
				t.Errorf("Len = %d, want %d", r.Len(), len(tt.targets))
			}
		})
	}
}

func TestRegistry_Lookup(t *testing.T) {
	src := map[string]string{"writer": "w.db", "reader": "r.db"}
	r, err := New(src)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// the registry is decoupled from the input map
	src["reader"] = "changed.db"
	delete(src, "writer")

	if h, ok := r.Lookup("reader"); !ok || h != "r.db" {
		t.Errorf("Lookup(reader) = %q, %v", h, ok)
	}
	if _, ok := r.Lookup("analytics"); ok {
		t.Error("Lookup(analytics) should miss")
	}
	if r.Writer() != "w.db" {
		t.Errorf("Writer = %q", r.Writer())
	}
	if !r.Has("writer") || r.Has("nope") {
		t.Error("Has mismatch")
	}
	if r.Single() {
		t.Error("two-target registry reported Single")
	}
}

func TestRegistry_NamesSortedAndCopied(t *testing.T) {
	r, err := New(map[string]int{"writer": 1, "reader": 2, "analytics": 3})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	names := r.Names()
	want := []string{"analytics", "reader", "writer"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("Names = %v, want %v", names, want)
	}
	names[0] = "mutated"
	if r.Names()[0] != "analytics" {
		t.Error("Names exposed internal slice")
	}

	var visited []string
	r.Each(func(name string, h int) { visited = append(visited, name) })
	if !reflect.DeepEqual(visited, want) {
		t.Errorf("Each order = %v, want %v", visited, want)
	}
}

func TestRegistry_Single(t *testing.T) {
	r, err := New(map[string]string{"writer": "w.db"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if !r.Single() {
		t.Error("writer-only registry should be Single")
	}
}

func TestStatic(t *testing.T) {
	r, _ := New(map[string]string{"writer": "w.db"})
	got, err := Static(r).Registry()
	if err != nil || got != r {
		t.Errorf("Static(r).Registry() = %v, %v", got, err)
	}

	_, err = Static[string](nil).Registry()
	if !errors.Is(err, domain.ErrConfigurationUnavailable) {
		t.Errorf("Static(nil) error = %v, want ErrConfigurationUnavailable", err)
	}
}

func TestHolder_RevokeRestore(t *testing.T) {
	r, _ := New(map[string]string{"writer": "w.db", "reader": "r.db"})
	h := NewHolder(r)

	if got, err := h.Registry(); err != nil || got != r {
		t.Fatalf("Registry() = %v, %v", got, err)
	}
	if h.Revoked() != nil {
		t.Error("fresh holder reports revoked")
	}

	cause := errors.New("config file removed")
	h.Revoke(cause)

	_, err := h.Registry()
	if !errors.Is(err, domain.ErrConfigurationUnavailable) {
		t.Fatalf("revoked Registry() error = %v, want ErrConfigurationUnavailable", err)
	}
	if h.Revoked() != cause {
		t.Errorf("Revoked = %v, want %v", h.Revoked(), cause)
	}
	if h.Current() != r {
		t.Error("Current should ignore revocation")
	}

	h.Restore()
	if _, err := h.Registry(); err != nil {
		t.Errorf("restored Registry() error = %v", err)
	}
}

func TestHolder_RevokeNilCause(t *testing.T) {
	h := NewHolder[string](nil)
	h.Revoke(nil)
	if h.Revoked() == nil {
		t.Error("Revoke(nil) should record a cause")
	}
}

func TestHolder_NilRegistry(t *testing.T) {
	h := NewHolder[string](nil)
	if _, err := h.Registry(); !errors.Is(err, domain.ErrConfigurationUnavailable) {
		t.Errorf("error = %v, want ErrConfigurationUnavailable", err)
	}
}

func TestHolder_Fallback(t *testing.T) {
	h := NewHolder[string](nil)
	if _, ok := h.Fallback(); ok {
		t.Error("Fallback reported without SetFallback")
	}
	h.SetFallback("legacy.db")
	if fb, ok := h.Fallback(); !ok || fb != "legacy.db" {
		t.Errorf("Fallback = %q, %v", fb, ok)
	}
}

func TestHolder_ConcurrentRevoke(t *testing.T) {
	r, _ := New(map[string]string{"writer": "w.db"})
	h := NewHolder(r)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				h.Revoke(errors.New("flap"))
				h.Restore()
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = h.Registry()
			}
		}()
	}
	wg.Wait()
}
