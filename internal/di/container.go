// Package di provides dependency injection configuration for the TabVault server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/tabvault/tabvault-server/internal/config"
	"github.com/tabvault/tabvault-server/internal/di/providers"
	"github.com/tabvault/tabvault-server/internal/logger"
	"github.com/tabvault/tabvault-server/internal/service"
	"github.com/tabvault/tabvault-server/internal/validation"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideValidator)

	// Durable state
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Live browser side
	do.Provide(injector, providers.ProvideBridge)
	do.Provide(injector, providers.ProvideTimers)
	do.Provide(injector, providers.ProvideRateLimiter)

	// Engine services
	do.Provide(injector, providers.ProvideBindingService)
	do.Provide(injector, providers.ProvideRemapper)
	do.Provide(injector, providers.ProvideCaptureService)
	do.Provide(injector, providers.ProvideRestoreService)
	do.Provide(injector, providers.ProvideSnoozeService)
	do.Provide(injector, providers.ProvideCollectionService)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns once the server is live.
// This triggers lazy initialization of everything in dependency order.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*validation.Validator](injector)

	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)

	_ = do.MustInvoke[*providers.BridgeHandle](injector)
	_ = do.MustInvoke[*providers.TimerHandle](injector)
	_ = do.MustInvoke[*providers.RateLimiterHandle](injector)

	_ = do.MustInvoke[*service.BindingService](injector)
	_ = do.MustInvoke[*service.Remapper](injector)
	_ = do.MustInvoke[*service.CaptureService](injector)
	_ = do.MustInvoke[*service.RestoreService](injector)
	_ = do.MustInvoke[*service.SnoozeService](injector)
	_ = do.MustInvoke[*service.CollectionService](injector)

	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	// Re-arm wake timers for items snoozed before the last restart.
	providers.RehydrateSnoozeTimers(injector)

	return nil
}
