package storage

import (
	"context"
	"errors"
	"net"
	"reflect"
	"testing"

	pkgerrors "github.com/pkg/errors"

	"ecomstaging/internal/ddl"
	"ecomstaging/internal/schema"
)

// fakeRepo is a minimal Repository implementation for tests.
type fakeRepo struct {
	closed bool
}

func (f *fakeRepo) Ping(context.Context) error                 { return nil }
func (f *fakeRepo) EnsureSchema(context.Context, string) error { return nil }
func (f *fakeRepo) TableColumns(context.Context, string) ([]ddl.ColumnDef, bool, error) {
	return nil, false, nil
}
func (f *fakeRepo) CreateTable(context.Context, ddl.TableDef) error            { return nil }
func (f *fakeRepo) AddColumn(context.Context, string, ddl.ColumnDef) error     { return nil }
func (f *fakeRepo) MapType(schema.Type) string                                 { return "TEXT" }
func (f *fakeRepo) Close()                                                     { f.closed = true }
func (f *fakeRepo) ReplaceRows(_ context.Context, _ string, _ []ddl.ColumnDef, rows [][]any) (int64, error) {
	return int64(len(rows)), nil
}

// TestRegisterAndNew_Success verifies that registering a backend enables New()
// to return the corresponding repository.
func TestRegisterAndNew_Success(t *testing.T) {
	t.Parallel()

	kind := "fake"
	Register(kind, func(ctx context.Context, cfg Config) (Repository, error) {
		return &fakeRepo{}, nil
	})

	repo, err := New(context.Background(), Config{Kind: kind})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if repo == nil {
		t.Fatalf("New returned nil repo")
	}

	found := false
	for _, k := range ListKinds() {
		if k == kind {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("registered kind %q not present in ListKinds: %v", kind, ListKinds())
	}
}

// TestNew_Unsupported verifies that unsupported kinds return a helpful error.
func TestNew_Unsupported(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{Kind: "does-not-exist"})
	if err == nil {
		t.Fatalf("expected error for unsupported kind")
	}
	if got, want := err.Error(), "unsupported storage.kind=does-not-exist"; got != want {
		t.Fatalf("error = %q, want %q", got, want)
	}
}

// TestRegister_Override verifies that re-registering a kind overrides the
// previous factory.
func TestRegister_Override(t *testing.T) {
	t.Parallel()

	kind := "override"
	calls := 0
	Register(kind, func(ctx context.Context, cfg Config) (Repository, error) {
		calls++
		return &fakeRepo{}, nil
	})
	Register(kind, func(ctx context.Context, cfg Config) (Repository, error) {
		calls += 10
		return &fakeRepo{}, nil
	})

	if _, err := New(context.Background(), Config{Kind: kind}); err != nil {
		t.Fatalf("New error: %v", err)
	}
	if calls != 10 {
		t.Fatalf("factory call count = %d, want 10", calls)
	}
}

// TestListKinds_Snapshot checks that ListKinds returns a copy.
func TestListKinds_Snapshot(t *testing.T) {
	t.Parallel()

	Register("snap", func(ctx context.Context, cfg Config) (Repository, error) { return &fakeRepo{}, nil })

	a := ListKinds()
	if len(a) == 0 {
		t.Fatalf("ListKinds empty after registration")
	}
	a[0] = "mutated"

	if b := ListKinds(); reflect.DeepEqual(a, b) {
		t.Fatalf("ListKinds returned same slice; want snapshot copy")
	}
}

// TestRegister_AllowsErrors shows factories can return errors that bubble up.
func TestRegister_AllowsErrors(t *testing.T) {
	t.Parallel()

	want := errors.New("boom")
	Register("errkind", func(ctx context.Context, cfg Config) (Repository, error) {
		return nil, want
	})

	_, err := New(context.Background(), Config{Kind: "errkind"})
	if !errors.Is(err, want) {
		t.Fatalf("want %v, got %v", want, err)
	}
}

func TestUnreachable(t *testing.T) {
	t.Parallel()

	if Unreachable(nil) != nil {
		t.Fatalf("Unreachable(nil) != nil")
	}

	cause := errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")
	err := pkgerrors.Wrap(Unreachable(cause), "ping")
	if !IsUnreachable(err) {
		t.Fatalf("IsUnreachable(%v) = false", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("cause lost through Unreachable")
	}
	if Unreachable(err) != err {
		t.Fatalf("Unreachable re-wrapped an already marked error")
	}
	if IsUnreachable(errors.New("syntax error")) {
		t.Fatalf("plain error classified unreachable")
	}
}

func TestMarkConnErr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "net op error", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}, want: true},
		{name: "deadline", err: pkgerrors.Wrap(context.DeadlineExceeded, "connect"), want: true},
		{name: "sql error", err: errors.New(`relation "x" does not exist`), want: false},
	}
	for _, tt := range tests {
		if got := IsUnreachable(MarkConnErr(tt.err)); got != tt.want {
			t.Fatalf("%s: IsUnreachable(MarkConnErr) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
