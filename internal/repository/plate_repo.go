package repository

import (
	"context"
	"errors"

	"github.com/Eyemetric/plates_service/internal/models"
)

var ErrPlateNotFound = errors.New("plate not found")

type PlateRepository interface {
	CreatePlate(ctx context.Context, p models.NewPlate) (int64, error)
	CreateIngredients(ctx context.Context, plateID int64, names []string, userID int64) error
	GetPlate(ctx context.Context, id int64) (*models.Plate, error)
	GetIngredients(ctx context.Context, plateID int64) ([]models.Ingredient, error)
	DeletePlate(ctx context.Context, id int64) error
	UpdatePlate(ctx context.Context, id int64, u models.PlateUpdate) error
	ReplaceIngredients(ctx context.Context, plateID int64, names []string, userID int64) error
	ListPlates(ctx context.Context, f models.PlateFilter) ([]models.Plate, error)
	ListIngredientsByUser(ctx context.Context, userID int64) ([]models.Ingredient, error)

	// WithTx runs fn against a repository bound to a single transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(repo PlateRepository) error) error
}

var (
	_ PlateRepository = (*PgxPlateRepo)(nil)
	_ PlateRepository = (*MemPlateRepo)(nil)
)
