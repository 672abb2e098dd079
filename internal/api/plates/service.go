package plates

import (
	"context"
	"errors"
	"fmt"

	"github.com/Eyemetric/plates_service/internal/api/apperror"
	"github.com/Eyemetric/plates_service/internal/models"
	"github.com/Eyemetric/plates_service/internal/repository"
	"github.com/Eyemetric/plates_service/internal/storage"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const msgPlateNotFound = "Plate not found"

type Service struct {
	repo    repository.PlateRepository
	storage storage.FileStorage
}

func NewService(repo repository.PlateRepository, store storage.FileStorage) *Service {
	return &Service{repo: repo, storage: store}
}

type CreateInput struct {
	Title       string
	Description string
	Category    string
	Price       float64
	Ingredients string //JSON array of names
}

// UpdateInput holds the fields sent with an update. nil means "keep the current value".
// A non-nil empty Ingredients clears the plate's ingredients.
type UpdateInput struct {
	Title       *string
	Description *string
	Category    *string
	Price       *float64
	Ingredients *[]string
}

// Create stores the staged image, then inserts the plate and its ingredients in one transaction.
// tmpImage may be empty, in which case the plate has no image.
func (s *Service) Create(ctx context.Context, in CreateInput, tmpImage string, userID int64) (int64, error) {
	names, err := ParseIngredients(in.Ingredients)
	if err != nil {
		return 0, err
	}

	var image *string
	if tmpImage != "" {
		stored, err := s.storage.SaveFile(ctx, tmpImage)
		if err != nil {
			return 0, apperror.Storage(err)
		}
		image = &stored
	}

	var id int64
	err = s.repo.WithTx(ctx, func(tx repository.PlateRepository) error {
		var err error
		id, err = tx.CreatePlate(ctx, models.NewPlate{
			Title:       in.Title,
			Description: in.Description,
			Category:    in.Category,
			Price:       in.Price,
			Image:       image,
			UserID:      userID,
		})
		if err != nil {
			return err
		}
		return tx.CreateIngredients(ctx, id, names, userID)
	})
	if err != nil {
		s.discardImage(ctx, image)
		return 0, fmt.Errorf("create plate: %w", err)
	}

	logrus.WithFields(logrus.Fields{"plate_id": id, "user_id": userID, "ingredients": len(names)}).Info("plate created")
	return id, nil
}

// Show returns a plate merged with its ingredients, sorted by name.
func (s *Service) Show(ctx context.Context, id int64) (*models.PlateView, error) {
	plate, err := s.getPlate(ctx, id)
	if err != nil {
		return nil, err
	}

	ingredients, err := s.repo.GetIngredients(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("show plate %d: %w", id, err)
	}

	return &models.PlateView{Plate: *plate, Ingredients: nonNil(ingredients)}, nil
}

// Delete removes the plate row; its ingredients go with it. Missing ids are not an error.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.DeletePlate(ctx, id); err != nil {
		return fmt.Errorf("delete plate %d: %w", id, err)
	}
	logrus.WithField("plate_id", id).Info("plate deleted")
	return nil
}

// Update merges the input over the stored plate. A new image replaces the old one
// and a supplied ingredient list replaces the whole set.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput, tmpImage string) error {
	plate, err := s.getPlate(ctx, id)
	if err != nil {
		return err
	}

	upd := models.PlateUpdate{
		Title:       valueOr(in.Title, plate.Title),
		Description: valueOr(in.Description, plate.Description),
		Category:    valueOr(in.Category, plate.Category),
		Price:       valueOr(in.Price, plate.Price),
		Image:       plate.Image,
	}

	var newImage *string
	if tmpImage != "" {
		stored, err := s.storage.SaveFile(ctx, tmpImage)
		if err != nil {
			return apperror.Storage(err)
		}
		newImage = &stored
		upd.Image = newImage
	}

	err = s.repo.WithTx(ctx, func(tx repository.PlateRepository) error {
		if in.Ingredients != nil {
			//always stamp the plate owner, not the caller
			if err := tx.ReplaceIngredients(ctx, id, *in.Ingredients, plate.UserID); err != nil {
				return err
			}
		}
		return tx.UpdatePlate(ctx, id, upd)
	})
	if err != nil {
		s.discardImage(ctx, newImage)
		return fmt.Errorf("update plate %d: %w", id, err)
	}

	//the new image is committed, the old one is garbage now
	if newImage != nil && plate.Image != nil && *plate.Image != *newImage {
		s.discardImage(ctx, plate.Image)
	}

	logrus.WithField("plate_id", id).Info("plate updated")
	return nil
}

// Index lists the user's plates sorted by title, each with its ingredients.
// ingredientsCSV, when non-empty, keeps only plates having at least one of the named ingredients.
func (s *Service) Index(ctx context.Context, title, ingredientsCSV string, userID int64) ([]models.PlateView, error) {
	filter := models.PlateFilter{UserID: userID, Title: title}
	if names := SplitCSV(ingredientsCSV); len(names) > 0 {
		filter.Ingredients = names
	}

	//one fetch for the whole user, grouped in memory
	var (
		plates          []models.Plate
		userIngredients []models.Ingredient
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if plates, err = s.repo.ListPlates(gctx, filter); err != nil {
			return fmt.Errorf("list plates: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if userIngredients, err = s.repo.ListIngredientsByUser(gctx, userID); err != nil {
			return fmt.Errorf("list ingredients: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byPlate := make(map[int64][]models.Ingredient, len(plates))
	for _, ingr := range userIngredients {
		byPlate[ingr.PlateID] = append(byPlate[ingr.PlateID], ingr)
	}

	views := make([]models.PlateView, 0, len(plates))
	for _, p := range plates {
		views = append(views, models.PlateView{Plate: p, Ingredients: nonNil(byPlate[p.ID])})
	}
	return views, nil
}

func (s *Service) getPlate(ctx context.Context, id int64) (*models.Plate, error) {
	plate, err := s.repo.GetPlate(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrPlateNotFound) {
			return nil, apperror.NotFound(msgPlateNotFound)
		}
		return nil, fmt.Errorf("get plate %d: %w", id, err)
	}
	return plate, nil
}

// discardImage is a best effort cleanup; failures are only logged.
func (s *Service) discardImage(ctx context.Context, name *string) {
	if name == nil {
		return
	}
	if err := s.storage.DeleteFile(ctx, *name); err != nil {
		logrus.WithError(err).WithField("file", *name).Warn("could not delete stored image")
	}
}

func valueOr[T any](v *T, fallback T) T {
	if v != nil {
		return *v
	}
	return fallback
}

func nonNil(in []models.Ingredient) []models.Ingredient {
	if in == nil {
		return []models.Ingredient{}
	}
	return in
}
