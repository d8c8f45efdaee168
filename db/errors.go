package db

import "errors"

// ErrNotFound is returned by GetContext instead of sql.ErrNoRows.
var ErrNotFound = errors.New("not found")
