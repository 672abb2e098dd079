package main

import (
	"errors"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Eyemetric/plates_service/internal/api/apperror"
	"github.com/Eyemetric/plates_service/internal/api/plates"
	"github.com/Eyemetric/plates_service/internal/auth"
	"github.com/Eyemetric/plates_service/internal/storage"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// updateBody is the JSON form of an update. Absent fields stay nil.
type updateBody struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Category    *string   `json:"category"`
	Price       *float64  `json:"price"`
	Ingredients *[]string `json:"ingredients"`
}

func (app *App) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

/*
- recieve a multipart form with the plate fields and an "image" file
- stage the file in the tmp folder, the service moves it into storage
- ingredients arrive as a JSON array string, e.g. ["tomato","basil"]
*/
func (app *App) createPlate(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	price, err := parsePrice(c.FormValue("price"))
	if err != nil {
		return err
	}

	tmpName, err := app.stage(c)
	if err != nil {
		return err
	}
	defer app.removeStaged(tmpName)

	in := plates.CreateInput{
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		Category:    c.FormValue("category"),
		Price:       price,
		Ingredients: c.FormValue("ingredients"),
	}

	if _, err := app.Plates.Create(c.Request().Context(), in, tmpName, userID); err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}

func (app *App) showPlate(c echo.Context) error {
	id, err := plateID(c)
	if err != nil {
		return err
	}

	view, err := app.Plates.Show(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

func (app *App) deletePlate(c echo.Context) error {
	id, err := plateID(c)
	if err != nil {
		return err
	}

	if err := app.Plates.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}

// updatePlate accepts either a JSON body or a multipart form with an optional new image.
func (app *App) updatePlate(c echo.Context) error {
	id, err := plateID(c)
	if err != nil {
		return err
	}

	var (
		in      plates.UpdateInput
		tmpName string
	)

	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		var body updateBody
		if err := c.Bind(&body); err != nil {
			return apperror.Validation("Bad plate document", err)
		}
		if body.Price != nil {
			if err := checkPrice(*body.Price); err != nil {
				return err
			}
		}
		in = plates.UpdateInput(body)
	} else {
		in, err = updateFromForm(c)
		if err != nil {
			return err
		}

		if _, err := c.FormFile("image"); err == nil {
			tmpName, err = app.stage(c)
			if err != nil {
				return err
			}
			defer app.removeStaged(tmpName)
		} else if !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart) {
			return apperror.Validation("Bad image upload", err)
		}
	}

	if err := app.Plates.Update(c.Request().Context(), id, in, tmpName); err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}

func (app *App) indexPlates(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	views, err := app.Plates.Index(c.Request().Context(), c.QueryParam("title"), c.QueryParam("ingredients"), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, views)
}

// serveFile serves stored images. S3 backed storage redirects to a presigned link.
func (app *App) serveFile(c echo.Context) error {
	name := c.Param("name")
	if name == "" || filepath.Base(name) != name {
		return echo.ErrNotFound
	}

	if p, ok := app.Storage.(storage.Presigner); ok {
		url, err := p.PresignUrl(c.Request().Context(), name)
		if err != nil {
			return apperror.Storage(err)
		}
		return c.Redirect(http.StatusTemporaryRedirect, url)
	}
	return c.File(filepath.Join(app.Config.UploadsFolder, name))
}

func updateFromForm(c echo.Context) (plates.UpdateInput, error) {
	var in plates.UpdateInput

	form, err := c.FormParams()
	if err != nil {
		return in, apperror.Validation("Bad plate form", err)
	}

	field := func(key string) *string {
		if vals, ok := form[key]; ok && len(vals) > 0 {
			return &vals[0]
		}
		return nil
	}

	in.Title = field("title")
	in.Description = field("description")
	in.Category = field("category")

	if raw := field("price"); raw != nil {
		price, err := parsePrice(*raw)
		if err != nil {
			return in, err
		}
		in.Price = &price
	}

	if raw := field("ingredients"); raw != nil {
		names, err := plates.ParseIngredients(*raw)
		if err != nil {
			return in, err
		}
		in.Ingredients = &names
	}
	return in, nil
}

// stage copies the request's image into the tmp folder.
func (app *App) stage(c echo.Context) (string, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		return "", apperror.Validation("Image file is required", err)
	}
	name, err := storage.StageUpload(fh, app.Config.TmpFolder)
	if err != nil {
		return "", apperror.Storage(err)
	}
	return name, nil
}

// removeStaged drops a leftover tmp file. After a successful save it is already gone.
func (app *App) removeStaged(name string) {
	err := os.Remove(filepath.Join(app.Config.TmpFolder, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithError(err).WithField("file", name).Warn("could not remove staged upload")
	}
}

func currentUser(c echo.Context) (int64, error) {
	id, err := auth.UserID(c)
	if err != nil {
		return 0, apperror.Unauthorized("JWT token not provided")
	}
	return id, nil
}

func plateID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, apperror.Validation("Invalid plate id", err)
	}
	return id, nil
}

func parsePrice(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, apperror.Validation("Invalid price", err)
	}
	if err := checkPrice(price); err != nil {
		return 0, err
	}
	return price, nil
}

// maxPrice is the largest value a NUMERIC(10,2) column holds.
const maxPrice = 99999999.99

var errPriceRange = errors.New("price must be a finite number between 0 and 99999999.99")

func checkPrice(price float64) error {
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 || price > maxPrice {
		return apperror.Validation("Invalid price", errPriceRange)
	}
	return nil
}
