package providers

import (
	"github.com/samber/do/v2"

	"github.com/tabvault/tabvault-server/internal/config"
	"github.com/tabvault/tabvault-server/internal/logger"
	"github.com/tabvault/tabvault-server/internal/service"
	"github.com/tabvault/tabvault-server/internal/validation"
)

// ProvideValidator provides the request validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}

// ProvideBindingService provides the window-to-collection binding cache.
func ProvideBindingService(i do.Injector) (*service.BindingService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	bridgeHandle := do.MustInvoke[*BridgeHandle](i)
	remapper := do.MustInvoke[*service.Remapper](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewBindingService(storeHandle.Store, bridgeHandle.Bridge, remapper, log), nil
}

// ProvideRemapper provides the live-id remapper.
func ProvideRemapper(i do.Injector) (*service.Remapper, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewRemapper(storeHandle.Store, log), nil
}

// ProvideCaptureService provides the window capture service.
func ProvideCaptureService(i do.Injector) (*service.CaptureService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	bridgeHandle := do.MustInvoke[*BridgeHandle](i)
	binding := do.MustInvoke[*service.BindingService](i)
	remapper := do.MustInvoke[*service.Remapper](i)
	searchHandle := do.MustInvoke[*SearchIndexHandle](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewCaptureService(
		storeHandle.Store,
		bridgeHandle.Bridge,
		binding,
		remapper,
		searchHandle.SearchIndex,
		v,
		log,
	), nil
}

// ProvideRestoreService provides the batched restoration service.
func ProvideRestoreService(i do.Injector) (*service.RestoreService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	bridgeHandle := do.MustInvoke[*BridgeHandle](i)
	binding := do.MustInvoke[*service.BindingService](i)
	remapper := do.MustInvoke[*service.Remapper](i)
	limiterHandle := do.MustInvoke[*RateLimiterHandle](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewRestoreService(
		storeHandle.Store,
		bridgeHandle.Bridge,
		binding,
		remapper,
		limiterHandle.KeyedRateLimiter,
		v,
		log,
		cfg.Engine.RestoreBatchSize,
		cfg.Engine.RestoreBatchDelay,
	), nil
}

// ProvideSnoozeService provides the snooze/wake state machine.
func ProvideSnoozeService(i do.Injector) (*service.SnoozeService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	bridgeHandle := do.MustInvoke[*BridgeHandle](i)
	timerHandle := do.MustInvoke[*TimerHandle](i)
	restore := do.MustInvoke[*service.RestoreService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSnoozeService(
		storeHandle.Store,
		bridgeHandle.Bridge,
		timerHandle.Service,
		restore,
		log,
		cfg.Engine.SweepInterval,
	), nil
}

// ProvideCollectionService provides collection listing and lifecycle.
func ProvideCollectionService(i do.Injector) (*service.CollectionService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	binding := do.MustInvoke[*service.BindingService](i)
	searchHandle := do.MustInvoke[*SearchIndexHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewCollectionService(storeHandle.Store, binding, searchHandle.SearchIndex, log), nil
}
