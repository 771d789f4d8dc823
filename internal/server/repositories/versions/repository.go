package versions

import (
	"context"

	"github.com/dmitrijs2005/modzart/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, v *models.Version) (*models.Version, error)
	GetByNumber(ctx context.Context, modID int64, number string) (*models.Version, error)
	ListByMod(ctx context.Context, modID int64) ([]*models.Version, error)
	Delete(ctx context.Context, id int64) error
}
