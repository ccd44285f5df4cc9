package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrSchemaMismatch = errors.New("schema mismatch")
	ErrMissingColumn  = errors.New("missing required column")
	ErrInvalidRow     = errors.New("invalid row")
	ErrNoSources      = errors.New("no sources configured")
	ErrUnknownKPI     = errors.New("unknown kpi")
)
