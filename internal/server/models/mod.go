// Package models defines server-side data models persisted in the database.
package models

import (
	"fmt"
	"strings"
	"time"
)

// FileRefKind tells what a mod's file reference points at.
type FileRefKind int

const (
	// FileRefPending marks a record whose file is not committed yet.
	FileRefPending FileRefKind = iota
	// FileRefProject marks a pseudo-entry that links to an external project page.
	FileRefProject
	// FileRefStored marks a record backed by an object in the blob store.
	FileRefStored
)

func (k FileRefKind) String() string {
	switch k {
	case FileRefPending:
		return "pending"
	case FileRefProject:
		return "project"
	case FileRefStored:
		return "stored"
	default:
		return fmt.Sprintf("FileRefKind(%d)", int(k))
	}
}

// Column encodings of FileRef. They are only interpreted by EncodeFileRef and
// DecodeFileRef.
const (
	pendingUploadSentinel = "PENDING_UPLOAD"
	projectPrefix         = "project:"
)

// FileRef is the tagged reference held by a mod: pending, a project URL, or a
// blob store key. The zero value is Pending.
type FileRef struct {
	Kind FileRefKind
	// URL is set for FileRefProject.
	URL string
	// Key is set for FileRefStored.
	Key string
}

// PendingRef returns the placeholder reference used during two-phase create.
func PendingRef() FileRef { return FileRef{Kind: FileRefPending} }

// ProjectRef returns a reference to an external project page.
func ProjectRef(url string) FileRef { return FileRef{Kind: FileRefProject, URL: url} }

// StoredRef returns a reference to a blob store object.
func StoredRef(key string) FileRef { return FileRef{Kind: FileRefStored, Key: key} }

// IsStored reports whether the reference owns a blob store object.
func (r FileRef) IsStored() bool { return r.Kind == FileRefStored }

func (r FileRef) String() string {
	return EncodeFileRef(r)
}

// EncodeFileRef renders the reference into the mods.filename column.
func EncodeFileRef(r FileRef) string {
	switch r.Kind {
	case FileRefProject:
		return projectPrefix + r.URL
	case FileRefStored:
		return r.Key
	default:
		return pendingUploadSentinel
	}
}

// DecodeFileRef parses a mods.filename column value. An empty column is
// treated as pending.
func DecodeFileRef(s string) FileRef {
	switch {
	case s == "" || s == pendingUploadSentinel:
		return PendingRef()
	case strings.HasPrefix(s, projectPrefix):
		return ProjectRef(strings.TrimPrefix(s, projectPrefix))
	default:
		return StoredRef(s)
	}
}

// Mod is a catalog record owned by a user.
type Mod struct {
	ID            int64
	Title         string
	Description   string
	File          FileRef
	DownloadCount int64
	Visibility    string
	UserID        int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ModFilter narrows catalog listings. Zero fields are ignored.
type ModFilter struct {
	Search string
	UserID int64
	Skip   int
	Limit  int
}
