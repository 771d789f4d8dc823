// Package blobstore stores mod files under opaque object keys. The local,
// S3 and MinIO backends share one contract so callers never branch on the
// backend in use.
package blobstore

import (
	"context"
	"errors"
	"time"
)

// DefaultURLTTL is the lifetime of retrieval URLs when the caller passes zero.
const DefaultURLTTL = time.Hour

// ErrInvalidKey is returned for keys that are empty or resolve outside the
// storage root.
var ErrInvalidKey = errors.New("invalid object key")

// Store is the durable storage contract.
//
// Put copies the staged file at localPath to key, replacing any existing
// object, and returns the key. Failures wrap common.ErrStorageWrite and leave
// no partial object visible.
//
// Delete removes key. A missing object is not an error, so repeated deletes
// succeed. Genuine backend failures wrap common.ErrStorageDelete.
//
// URL returns a link granting read access to key. Remote backends sign it
// for ttl; the local backend returns a stable link served by the retrieval
// endpoint and reports common.ErrorNotFound when the object is missing.
type Store interface {
	Put(ctx context.Context, localPath, key string) (string, error)
	Delete(ctx context.Context, key string) error
	URL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

func ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultURLTTL
	}
	return ttl
}
