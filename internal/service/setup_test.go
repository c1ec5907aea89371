package service_test

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tabvault/tabvault-server/internal/browser"
	"github.com/tabvault/tabvault-server/internal/logger"
	"github.com/tabvault/tabvault-server/internal/ratelimit"
	"github.com/tabvault/tabvault-server/internal/service"
	"github.com/tabvault/tabvault-server/internal/store"
	"github.com/tabvault/tabvault-server/internal/timer"
	"github.com/tabvault/tabvault-server/internal/validation"
)

// testEnv wires every service against a temp Badger store and a fake
// browser, with short batch delays and a short sweep interval so timing
// tests stay fast.
type testEnv struct {
	store       *store.Store
	fake        *browser.Fake
	timers      *timer.Service
	binding     *service.BindingService
	remapper    *service.Remapper
	capture     *service.CaptureService
	restore     *service.RestoreService
	snooze      *service.SnoozeService
	collections *service.CollectionService
}

const testSweepInterval = 50 * time.Millisecond

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	log := logger.New(logger.Config{Writer: io.Discard, Format: "json", Level: slog.LevelError})

	fake := browser.NewFake()

	timers := timer.New(log)
	t.Cleanup(timers.Stop)

	limiter := ratelimit.New(1000, 100)
	t.Cleanup(limiter.Stop)

	v := validation.New()

	remapper := service.NewRemapper(st, log)
	binding := service.NewBindingService(st, fake, remapper, log)
	capture := service.NewCaptureService(st, fake, binding, remapper, nil, v, log)
	restore := service.NewRestoreService(st, fake, binding, remapper, limiter, v, log, 10, time.Millisecond)
	snooze := service.NewSnoozeService(st, fake, timers, restore, log, testSweepInterval)
	collections := service.NewCollectionService(st, binding, nil, log)

	return &testEnv{
		store:       st,
		fake:        fake,
		timers:      timers,
		binding:     binding,
		remapper:    remapper,
		capture:     capture,
		restore:     restore,
		snooze:      snooze,
		collections: collections,
	}
}

func waitUntil(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal(msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
