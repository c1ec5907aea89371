// Package service provides the business logic layer: capture, restoration,
// snooze scheduling, window binding, and live-id remapping.
package service

import (
	stderrors "errors"
	"fmt"

	"github.com/tabvault/tabvault-server/internal/browser"
	"github.com/tabvault/tabvault-server/internal/errors"
)

// mapBrowserErr converts browser control errors into domain errors.
func mapBrowserErr(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, browser.ErrNotFound):
		return errors.NotFoundf("%s: browser resource not found", op)
	case stderrors.Is(err, browser.ErrNoBrowser):
		return errors.ExternalAPIf("%s: no browser connected", op)
	default:
		return errors.Wrap(err, errors.CodeExternalAPI, fmt.Sprintf("%s failed", op))
	}
}
