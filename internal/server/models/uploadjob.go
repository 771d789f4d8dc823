package models

import "time"

// UploadJobStatus is the state of a background upload.
type UploadJobStatus string

const (
	UploadJobQueued    UploadJobStatus = "queued"
	UploadJobScanning  UploadJobStatus = "scanning"
	UploadJobCompleted UploadJobStatus = "completed"
	UploadJobRejected  UploadJobStatus = "rejected"
	UploadJobFailed    UploadJobStatus = "failed"
)

// Terminal reports whether the job will not change state again.
func (s UploadJobStatus) Terminal() bool {
	switch s {
	case UploadJobCompleted, UploadJobRejected, UploadJobFailed:
		return true
	}
	return false
}

// UploadJob tracks an asynchronous scan-and-store run for one mod.
type UploadJob struct {
	ID        string
	ModID     int64
	UserID    int64
	Filename  string
	Status    UploadJobStatus
	Reason    string
	CreatedAt time.Time
	UpdatedAt time.Time
}
