package uploadjobs

import (
	"context"

	"github.com/dmitrijs2005/modzart/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, job *models.UploadJob) error
	Get(ctx context.Context, id string) (*models.UploadJob, error)
	SetStatus(ctx context.Context, id string, status models.UploadJobStatus, reason string) error
}
