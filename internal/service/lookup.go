package service

import (
	"database/sql"
	"errors"

	appErrors "github.com/noah-isme/ctp-api/pkg/errors"
)

// lookupError maps a repository miss to NotFound and anything else to an internal error.
func lookupError(err error, kind, key string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.NotFound(kind, key)
	}
	return appErrors.Internal(err, "failed to load "+kind)
}
