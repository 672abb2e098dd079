package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Eyemetric/plates_service/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// dbtx is the subset shared by *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

type PgxPlateRepo struct {
	db dbtx
}

func NewPgxPlateRepo(pool *pgxpool.Pool) *PgxPlateRepo {
	return &PgxPlateRepo{db: pool}
}

func (r *PgxPlateRepo) WithTx(ctx context.Context, fn func(repo PlateRepository) error) error {
	//inside a tx Begin opens a savepoint, so nesting is safe
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		return fn(&PgxPlateRepo{db: tx})
	})
}

func (r *PgxPlateRepo) CreatePlate(ctx context.Context, p models.NewPlate) (int64, error) {
	rows, err := r.db.Query(ctx, `
		INSERT INTO plates (title, description, category, price, image, user_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		p.Title, p.Description, p.Category, p.Price, p.Image, p.UserID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert plate: %w", err)
	}

	id, err := pgx.CollectExactlyOneRow(rows, pgx.RowTo[int64])
	if err != nil {
		return 0, fmt.Errorf("failed to read plate id: %w", err)
	}
	return id, nil
}

func (r *PgxPlateRepo) CreateIngredients(ctx context.Context, plateID int64, names []string, userID int64) error {
	if len(names) == 0 {
		return nil
	}

	src := make([][]any, len(names))
	for i, name := range names {
		src[i] = []any{plateID, name, userID}
	}

	cnt, err := r.db.CopyFrom(ctx,
		pgx.Identifier{"ingredients"},
		[]string{"plate_id", "name", "user_id"},
		pgx.CopyFromRows(src))
	if err != nil {
		return fmt.Errorf("failed to insert ingredients: %w", err)
	}

	logrus.WithFields(logrus.Fields{"plate_id": plateID, "count": cnt}).Debug("ingredients inserted")
	return nil
}

func (r *PgxPlateRepo) GetPlate(ctx context.Context, id int64) (*models.Plate, error) {
	rows, err := r.db.Query(ctx, baseSQL+" WHERE id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get plate %d: %w", id, err)
	}

	plate, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[models.Plate])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlateNotFound
		}
		return nil, fmt.Errorf("failed to scan plate %d: %w", id, err)
	}
	return &plate, nil
}

func (r *PgxPlateRepo) GetIngredients(ctx context.Context, plateID int64) ([]models.Ingredient, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, plate_id, name, user_id FROM ingredients
		WHERE plate_id = $1
		ORDER BY name ASC, id ASC`, plateID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ingredients for plate %d: %w", plateID, err)
	}
	return collectIngredients(rows)
}

func (r *PgxPlateRepo) DeletePlate(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM plates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete plate %d: %w", id, err)
	}
	logrus.WithFields(logrus.Fields{"plate_id": id, "rows": tag.RowsAffected()}).Debug("plate deleted")
	return nil
}

func (r *PgxPlateRepo) UpdatePlate(ctx context.Context, id int64, u models.PlateUpdate) error {
	_, err := r.db.Exec(ctx, `
		UPDATE plates
		SET title = $2, description = $3, category = $4, price = $5, image = $6, updated_at = now()
		WHERE id = $1`,
		id, u.Title, u.Description, u.Category, u.Price, u.Image)
	if err != nil {
		return fmt.Errorf("failed to update plate %d: %w", id, err)
	}
	return nil
}

func (r *PgxPlateRepo) ReplaceIngredients(ctx context.Context, plateID int64, names []string, userID int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM ingredients WHERE plate_id = $1`, plateID); err != nil {
		return fmt.Errorf("failed to clear ingredients for plate %d: %w", plateID, err)
	}
	return r.CreateIngredients(ctx, plateID, names, userID)
}

func (r *PgxPlateRepo) ListPlates(ctx context.Context, f models.PlateFilter) ([]models.Plate, error) {
	q := BuildListQuery(f)

	rows, err := r.db.Query(ctx, q.Text, q.Params...)
	if err != nil {
		return nil, fmt.Errorf("failed to list plates: %w", err)
	}

	plates, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.Plate])
	if err != nil {
		return nil, fmt.Errorf("failed to collect plates: %w", err)
	}
	return plates, nil
}

func (r *PgxPlateRepo) ListIngredientsByUser(ctx context.Context, userID int64) ([]models.Ingredient, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, plate_id, name, user_id FROM ingredients
		WHERE user_id = $1
		ORDER BY name ASC, id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingredients for user %d: %w", userID, err)
	}
	return collectIngredients(rows)
}

func collectIngredients(rows pgx.Rows) ([]models.Ingredient, error) {
	ingredients, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.Ingredient])
	if err != nil {
		return nil, fmt.Errorf("failed to collect ingredients: %w", err)
	}
	return ingredients, nil
}
