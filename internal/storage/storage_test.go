package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	logx "underlord/pkg/logx"
)

func testDrivers(t *testing.T) map[string]Store {
	t.Helper()
	stores := map[string]Store{}

	f, err := Open(Config{Driver: "file", Path: t.TempDir()}, logx.Nop())
	if err != nil {
		t.Fatalf("open file store: %v", err)
	}
	stores["file"] = f

	sq, err := Open(Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "state.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	stores["sqlite"] = sq

	return stores
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, st := range testDrivers(t) {
		t.Run(name, func(t *testing.T) {
			defer st.Close()

			if _, ok, err := st.Get(ctx, "sched.state"); err != nil || ok {
				t.Fatalf("expected absent key, got ok=%v err=%v", ok, err)
			}

			if err := st.Put(ctx, "sched.state", []byte(`{"v":1}`)); err != nil {
				t.Fatalf("Put: %v", err)
			}
			b, ok, err := st.Get(ctx, "sched.state")
			if err != nil || !ok {
				t.Fatalf("Get: ok=%v err=%v", ok, err)
			}
			if string(b) != `{"v":1}` {
				t.Fatalf("unexpected value %q", b)
			}

			// Full rewrite replaces, never appends.
			if err := st.Put(ctx, "sched.state", []byte(`{"v":2}`)); err != nil {
				t.Fatalf("Put: %v", err)
			}
			b, _, _ = st.Get(ctx, "sched.state")
			if string(b) != `{"v":2}` {
				t.Fatalf("expected overwrite, got %q", b)
			}

			if err := st.Delete(ctx, "sched.state"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, ok, _ := st.Get(ctx, "sched.state"); ok {
				t.Fatal("expected key gone after delete")
			}
			// Deleting an absent key is not an error.
			if err := st.Delete(ctx, "sched.state"); err != nil {
				t.Fatalf("Delete absent: %v", err)
			}
		})
	}
}

func TestOpenDisabled(t *testing.T) {
	st, err := Open(Config{}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if st != nil {
		t.Fatal("expected nil store when disabled")
	}

	st, err = Open(Config{Driver: "none"}, logx.Nop())
	if err != nil || st != nil {
		t.Fatalf("expected disabled, got %v %v", st, err)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestFileStoreNoTempLeftovers(t *testing.T) {
	dir := t.TempDir()
	st, err := Open(Config{Driver: "file", Path: dir}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()

	if err := st.Put(context.Background(), "k", []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}
