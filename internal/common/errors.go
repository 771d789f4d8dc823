// Package common defines shared constants and sentinel errors used across
// the modzart server layers. Callers should use errors.Is to match these
// values; components wrap them with additional context via fmt.Errorf("%w").
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")
	ErrVersionConflict = errors.New("version conflict")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")
	ErrorValidation   = errors.New("validation error")

	// Upload pipeline errors.
	ErrStaging       = errors.New("staging error")
	ErrScanRejected  = errors.New("file failed security scan")
	ErrStorageWrite  = errors.New("storage write error")
	ErrStorageDelete = errors.New("storage delete error")
	ErrRecordCreate  = errors.New("record create error")
	ErrRecordUpdate  = errors.New("record update error")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
