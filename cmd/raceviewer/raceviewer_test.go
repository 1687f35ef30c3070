package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/josevnz/dashkit/cmd/raceviewer/metrics"
	"github.com/josevnz/dashkit/cmd/raceviewer/router"
	"github.com/josevnz/dashkit/pkg/session"
)

var testMetrics = metrics.New()

const raceCSV = `Event Date,Distance,Overall Place,Age-Graded Percent
2023-02-04,10K,1432,55.2
2023-03-19,Half-Marathon,2104,57.8
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWatcher_LoadOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "races.csv")
	if err := os.WriteFile(path, []byte(raceCSV), 0o644); err != nil {
		t.Fatal(err)
	}

	store := session.NewMemoryStore()
	w := NewWatcher(path, store, testMetrics, discardLogger())

	if err := w.LoadOnce(context.Background(), "file"); err != nil {
		t.Fatalf("LoadOnce error: %v", err)
	}

	st, found, err := store.Get(context.Background(), router.DefaultSession)
	if err != nil || !found {
		t.Fatalf("session not stored: found=%v err=%v", found, err)
	}
	if st.Name != "races.csv" {
		t.Errorf("Name = %q", st.Name)
	}
	if len(st.Distances) != 2 {
		t.Errorf("Distances = %v", st.Distances)
	}
}

func TestWatcher_LoadOnce_MissingFile(t *testing.T) {
	store := session.NewMemoryStore()
	w := NewWatcher(filepath.Join(t.TempDir(), "missing.csv"), store, testMetrics, discardLogger())

	if err := w.LoadOnce(context.Background(), "file"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "races.csv")
	if err := os.WriteFile(path, []byte(raceCSV), 0o644); err != nil {
		t.Fatal(err)
	}

	store := session.NewMemoryStore()
	w := NewWatcher(path, store, testMetrics, discardLogger())
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)

	updated := raceCSV + "2023-05-14,5K,900,58.0\n"
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		st, found, err := store.Get(ctx, router.DefaultSession)
		if err == nil && found && len(st.Distances) == 3 {
			cancel()
			<-done
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatal("watcher did not reload the updated file")
}
