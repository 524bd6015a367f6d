// Package apperr holds the error classes shared by the store and its surfaces.
package apperr

import "errors"

var (
	// ErrScanFailed means the root directory could not be enumerated.
	ErrScanFailed = errors.New("scan failed")
	// ErrStorageWriteFailed covers directory creation and item writes.
	ErrStorageWriteFailed = errors.New("storage write failed")
	// ErrStorageDeleteFailed covers category removal.
	ErrStorageDeleteFailed = errors.New("storage delete failed")

	ErrInvalidName = errors.New("invalid name")
	ErrUnavailable = errors.New("store unavailable")
	ErrNotFound    = errors.New("not found")
)
