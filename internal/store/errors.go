package store

import "github.com/tabvault/tabvault-server/internal/errors"

// Sentinel errors returned by the entity accessors. They carry the shared
// error vocabulary, so handlers map them without a store-specific case.
var (
	ErrNotFound      = errors.NotFound("record not found")
	ErrAlreadyExists = errors.AlreadyExists("record already exists")
)
