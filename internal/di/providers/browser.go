package providers

import (
	"github.com/samber/do/v2"

	"github.com/tabvault/tabvault-server/internal/browser"
	"github.com/tabvault/tabvault-server/internal/config"
	"github.com/tabvault/tabvault-server/internal/logger"
	"github.com/tabvault/tabvault-server/internal/ratelimit"
	"github.com/tabvault/tabvault-server/internal/timer"
)

// BridgeHandle wraps the extension bridge with shutdown capability.
type BridgeHandle struct {
	*browser.Bridge
}

// Shutdown implements do.Shutdownable.
func (h *BridgeHandle) Shutdown() error {
	return h.Close()
}

// ProvideBridge provides the WebSocket bridge to the browser extension.
// The bridge starts disconnected; control calls fail with ErrNoBrowser
// until the extension dials in.
func ProvideBridge(i do.Injector) (*BridgeHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	bridge := browser.NewBridge(log.Logger, cfg.Bridge.CallTimeout, cfg.Bridge.AllowedOrigins)

	log.Info("Extension bridge ready",
		"call_timeout", cfg.Bridge.CallTimeout,
		"allowed_origins", len(cfg.Bridge.AllowedOrigins),
	)

	return &BridgeHandle{Bridge: bridge}, nil
}

// TimerHandle wraps the timer service with shutdown capability.
type TimerHandle struct {
	*timer.Service
}

// Shutdown implements do.Shutdownable.
func (h *TimerHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideTimers provides the in-memory timer service for snooze wake-ups.
func ProvideTimers(i do.Injector) (*TimerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return &TimerHandle{Service: timer.New(log)}, nil
}

// RateLimiterHandle wraps the keyed rate limiter with shutdown capability.
type RateLimiterHandle struct {
	*ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *RateLimiterHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideRateLimiter provides the per-window pacer for browser control calls.
func ProvideRateLimiter(i do.Injector) (*RateLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return &RateLimiterHandle{
		KeyedRateLimiter: ratelimit.New(cfg.Engine.ControlRPS, cfg.Engine.ControlBurst),
	}, nil
}
