package api

import (
	"github.com/tabvault/tabvault-server/internal/search"
	"github.com/tabvault/tabvault-server/internal/service"
)

// Services groups all business logic services used by the API server.
// This reduces the parameter count for NewServer and improves testability.
type Services struct {
	Collection *service.CollectionService
	Capture    *service.CaptureService
	Restore    *service.RestoreService
	Binding    *service.BindingService
	Snooze     *service.SnoozeService
	Search     *search.SearchIndex // nil disables the search route
}
