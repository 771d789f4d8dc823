package mods

import (
	"context"

	"github.com/dmitrijs2005/modzart/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, mod *models.Mod) (*models.Mod, error)
	GetByID(ctx context.Context, id int64) (*models.Mod, error)
	List(ctx context.Context, filter models.ModFilter) ([]*models.Mod, error)
	UpdateDetails(ctx context.Context, mod *models.Mod) error
	SetFile(ctx context.Context, id int64, expected, next models.FileRef) error
	IncrementDownloads(ctx context.Context, id int64) (int64, error)
	Delete(ctx context.Context, id int64) error
}
