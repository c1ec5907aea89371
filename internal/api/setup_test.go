package api

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/tabvault/tabvault-server/internal/browser"
	"github.com/tabvault/tabvault-server/internal/logger"
	"github.com/tabvault/tabvault-server/internal/ratelimit"
	"github.com/tabvault/tabvault-server/internal/search"
	"github.com/tabvault/tabvault-server/internal/service"
	"github.com/tabvault/tabvault-server/internal/store"
	"github.com/tabvault/tabvault-server/internal/timer"
	"github.com/tabvault/tabvault-server/internal/validation"
)

// testEnvelope mirrors the response envelope for decoding in tests.
type testEnvelope[T any] struct {
	V       int    `json:"v"`
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// testServer wraps the API server with a humatest client and the fake
// browser behind it.
type testServer struct {
	*Server
	api  humatest.TestAPI
	fake *browser.Fake
}

// setupTestServer builds the full route table against a temp store, a
// fresh search index, and a fake browser. The snooze sweep interval is
// long so nothing fires mid-test.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	tmpDir := t.TempDir()

	st, err := store.New(filepath.Join(tmpDir, "db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	log := logger.New(logger.Config{Writer: io.Discard, Format: "json", Level: slog.LevelError})

	fake := browser.NewFake()

	timers := timer.New(log)
	t.Cleanup(timers.Stop)

	limiter := ratelimit.New(1000, 100)
	t.Cleanup(limiter.Stop)

	v := validation.New()

	idx, err := search.NewSearchIndex(search.Options{
		DataPath: filepath.Join(tmpDir, "search"),
		Logger:   log.Logger,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	remapper := service.NewRemapper(st, log)
	binding := service.NewBindingService(st, fake, remapper, log)
	capture := service.NewCaptureService(st, fake, binding, remapper, idx, v, log)
	restore := service.NewRestoreService(st, fake, binding, remapper, limiter, v, log, 10, time.Millisecond)
	snooze := service.NewSnoozeService(st, fake, timers, restore, log, time.Hour)
	collections := service.NewCollectionService(st, binding, idx, log)

	services := &Services{
		Collection: collections,
		Capture:    capture,
		Restore:    restore,
		Binding:    binding,
		Snooze:     snooze,
		Search:     idx,
	}

	router := chi.NewRouter()

	humaConfig := huma.DefaultConfig("TabVault API Test", "1.0.0")
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)

	humaAPI := humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s := &Server{
		store:    st,
		services: services,
		router:   router,
		api:      humaAPI,
		logger:   log,
	}

	s.registerHealthRoutes()
	s.registerCollectionRoutes()
	s.registerSnoozeRoutes()
	s.registerSearchRoutes()

	return &testServer{
		Server: s,
		api:    humatest.Wrap(t, humaAPI),
		fake:   fake,
	}
}

// addWindowWithTabs seeds the fake browser with a window holding the
// given pages and returns the live window id.
func (ts *testServer) addWindowWithTabs(pages ...[2]string) int {
	winID := ts.fake.AddWindow()
	for _, p := range pages {
		ts.fake.AddTab(winID, p[0], p[1], false)
	}
	return winID
}
