package providers

import (
	"context"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/tabvault/tabvault-server/internal/api"
	"github.com/tabvault/tabvault-server/internal/config"
	"github.com/tabvault/tabvault-server/internal/logger"
	"github.com/tabvault/tabvault-server/internal/service"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server with all routes mounted and
// starts it in the background.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	bridgeHandle := do.MustInvoke[*BridgeHandle](i)
	searchHandle := do.MustInvoke[*SearchIndexHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	binding := do.MustInvoke[*service.BindingService](i)
	capture := do.MustInvoke[*service.CaptureService](i)
	restore := do.MustInvoke[*service.RestoreService](i)
	snooze := do.MustInvoke[*service.SnoozeService](i)
	collections := do.MustInvoke[*service.CollectionService](i)

	// When the extension (re)connects, drop bindings whose windows did not
	// survive the browser restart.
	bridgeHandle.SetOnConnect(func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := binding.Rebuild(ctx); err != nil {
			log.Warn("binding rebuild after reconnect failed", "error", err)
		}
	})

	services := &api.Services{
		Collection: collections,
		Capture:    capture,
		Restore:    restore,
		Binding:    binding,
		Snooze:     snooze,
		Search:     searchHandle.SearchIndex,
	}

	handler := api.NewServer(storeHandle.Store, services, bridgeHandle.Bridge, log)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", srv.Addr)

	return &HTTPServerHandle{Server: srv}, nil
}

// RehydrateSnoozeTimers re-arms the one-shot wake timers for every stored
// snoozed item. Called once at startup so wake-ups do not wait for the
// first API request.
func RehydrateSnoozeTimers(i do.Injector) {
	snooze := do.MustInvoke[*service.SnoozeService](i)
	log := do.MustInvoke[*logger.Logger](i)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if _, err := snooze.List(ctx); err != nil {
			log.Error("snooze timer rehydration failed", "error", err)
		}
	}()
}
