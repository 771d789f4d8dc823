package models

import "time"

// Version is an uploaded revision of a mod. StorageKey always refers to an
// existing blob store object: the row is written after the object.
type Version struct {
	ID            int64     `json:"id"`
	ModID         int64     `json:"mod_id"`
	VersionNumber string    `json:"version_number"`
	Changelog     string    `json:"changelog"`
	StorageKey    string    `json:"storage_key"`
	CreatedAt     time.Time `json:"created_at"`
}
