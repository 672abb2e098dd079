package repository

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Eyemetric/plates_service/internal/models"
)

// MemPlateRepo keeps plates and ingredients in memory.
// WithTx restores a snapshot when fn fails; it does not isolate concurrent transactions.
type MemPlateRepo struct {
	mu          sync.Mutex
	plates      map[int64]models.Plate
	ingredients map[int64]models.Ingredient
	nextPlate   int64
	nextIngr    int64
	now         func() time.Time
}

type MemOption func(*MemPlateRepo)

// WithClock overrides the clock used for created_at/updated_at.
func WithClock(now func() time.Time) MemOption {
	return func(r *MemPlateRepo) { r.now = now }
}

func NewMemPlateRepo(opts ...MemOption) *MemPlateRepo {
	r := &MemPlateRepo{
		plates:      map[int64]models.Plate{},
		ingredients: map[int64]models.Ingredient{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type memSnapshot struct {
	plates      map[int64]models.Plate
	ingredients map[int64]models.Ingredient
	nextPlate   int64
	nextIngr    int64
}

func (r *MemPlateRepo) WithTx(ctx context.Context, fn func(repo PlateRepository) error) error {
	r.mu.Lock()
	snap := memSnapshot{
		plates:      cloneMap(r.plates),
		ingredients: cloneMap(r.ingredients),
		nextPlate:   r.nextPlate,
		nextIngr:    r.nextIngr,
	}
	r.mu.Unlock()

	if err := fn(r); err != nil {
		r.mu.Lock()
		r.plates, r.ingredients = snap.plates, snap.ingredients
		r.nextPlate, r.nextIngr = snap.nextPlate, snap.nextIngr
		r.mu.Unlock()
		return err
	}
	return nil
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (r *MemPlateRepo) CreatePlate(ctx context.Context, p models.NewPlate) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextPlate++
	now := r.now()
	r.plates[r.nextPlate] = models.Plate{
		ID:          r.nextPlate,
		Title:       p.Title,
		Description: p.Description,
		Category:    p.Category,
		Price:       p.Price,
		Image:       p.Image,
		UserID:      p.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return r.nextPlate, nil
}

func (r *MemPlateRepo) CreateIngredients(ctx context.Context, plateID int64, names []string, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkPlate(plateID, names); err != nil {
		return err
	}
	r.insertIngredients(plateID, names, userID)
	return nil
}

// checkPlate mirrors the ingredients foreign key: rows may only point at an existing plate.
func (r *MemPlateRepo) checkPlate(plateID int64, names []string) error {
	if len(names) == 0 {
		return nil
	}
	if _, ok := r.plates[plateID]; !ok {
		return fmt.Errorf("ingredients for plate %d: %w", plateID, ErrPlateNotFound)
	}
	return nil
}

func (r *MemPlateRepo) insertIngredients(plateID int64, names []string, userID int64) {
	for _, name := range names {
		r.nextIngr++
		r.ingredients[r.nextIngr] = models.Ingredient{
			ID:      r.nextIngr,
			PlateID: plateID,
			Name:    name,
			UserID:  userID,
		}
	}
}

func (r *MemPlateRepo) GetPlate(ctx context.Context, id int64) (*models.Plate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.plates[id]
	if !ok {
		return nil, ErrPlateNotFound
	}
	return &p, nil
}

func (r *MemPlateRepo) GetIngredients(ctx context.Context, plateID int64) ([]models.Ingredient, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.selectIngredients(func(i models.Ingredient) bool { return i.PlateID == plateID }), nil
}

func (r *MemPlateRepo) DeletePlate(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.plates, id)
	//mirrors ON DELETE CASCADE
	r.deleteIngredients(id)
	return nil
}

func (r *MemPlateRepo) deleteIngredients(plateID int64) {
	for k, v := range r.ingredients {
		if v.PlateID == plateID {
			delete(r.ingredients, k)
		}
	}
}

func (r *MemPlateRepo) UpdatePlate(ctx context.Context, id int64, u models.PlateUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.plates[id]
	if !ok {
		return nil
	}
	p.Title = u.Title
	p.Description = u.Description
	p.Category = u.Category
	p.Price = u.Price
	p.Image = u.Image
	p.UpdatedAt = r.now()
	r.plates[id] = p
	return nil
}

func (r *MemPlateRepo) ReplaceIngredients(ctx context.Context, plateID int64, names []string, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkPlate(plateID, names); err != nil {
		return err
	}
	r.deleteIngredients(plateID)
	r.insertIngredients(plateID, names, userID)
	return nil
}

func (r *MemPlateRepo) ListPlates(ctx context.Context, f models.PlateFilter) ([]models.Plate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	title := strings.ToLower(f.Title)
	var matchPlate map[int64]bool
	if len(f.Ingredients) > 0 {
		matchPlate = map[int64]bool{}
		for _, i := range r.ingredients {
			if slices.Contains(f.Ingredients, i.Name) {
				matchPlate[i.PlateID] = true
			}
		}
	}

	plates := []models.Plate{}
	for _, p := range r.plates {
		if p.UserID != f.UserID {
			continue
		}
		if title != "" && !strings.Contains(strings.ToLower(p.Title), title) {
			continue
		}
		if matchPlate != nil && !matchPlate[p.ID] {
			continue
		}
		plates = append(plates, p)
	}

	sort.Slice(plates, func(a, b int) bool {
		if plates[a].Title != plates[b].Title {
			return plates[a].Title < plates[b].Title
		}
		return plates[a].ID < plates[b].ID
	})
	return plates, nil
}

func (r *MemPlateRepo) ListIngredientsByUser(ctx context.Context, userID int64) ([]models.Ingredient, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.selectIngredients(func(i models.Ingredient) bool { return i.UserID == userID }), nil
}

// selectIngredients returns matching ingredients ordered by name, then id.
func (r *MemPlateRepo) selectIngredients(keep func(models.Ingredient) bool) []models.Ingredient {
	out := []models.Ingredient{}
	for _, i := range r.ingredients {
		if keep(i) {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Name != out[b].Name {
			return out[a].Name < out[b].Name
		}
		return out[a].ID < out[b].ID
	})
	return out
}
