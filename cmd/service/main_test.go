package main

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Eyemetric/plates_service/internal/api/plates"
	"github.com/Eyemetric/plates_service/internal/auth"
	"github.com/Eyemetric/plates_service/internal/models"
	"github.com/Eyemetric/plates_service/internal/repository"
	"github.com/Eyemetric/plates_service/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type testApp struct {
	*App
	repo *repository.MemPlateRepo
}

// newTestApp wires the real routes over an in-memory repo and disk storage in a temp dir.
func newTestApp(t *testing.T) *testApp {
	t.Helper()
	root := t.TempDir()
	conf := Config{
		JWTSecret:     testSecret,
		TmpFolder:     filepath.Join(root, "tmp"),
		UploadsFolder: filepath.Join(root, "uploads"),
	}

	repo := repository.NewMemPlateRepo()
	store := storage.NewDiskStorage(conf.TmpFolder, conf.UploadsFolder)
	app := &App{
		Echo:    newEcho(),
		Plates:  plates.NewService(repo, store),
		Storage: store,
		Config:  conf,
		Context: context.Background(),
	}
	registerRoutes(app)
	return &testApp{App: app, repo: repo}
}

func token(t *testing.T, userID int64) string {
	t.Helper()
	tok, err := auth.Sign([]byte(testSecret), userID, time.Hour)
	require.NoError(t, err)
	return tok
}

func (a *testApp) do(t *testing.T, req *http.Request, userID int64) *httptest.ResponseRecorder {
	t.Helper()
	if userID != 0 {
		req.Header.Set("Authorization", "Bearer "+token(t, userID))
	}
	w := httptest.NewRecorder()
	a.Echo.ServeHTTP(w, req)
	return w
}

func multipartRequest(t *testing.T, method, target string, fields map[string]string, imageName string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if imageName != "" {
		part, err := mw.CreateFormFile("image", imageName)
		require.NoError(t, err)
		_, err = part.Write([]byte("image-bytes-" + imageName))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func (a *testApp) createPlate(t *testing.T, userID int64, title, ingredients string) int64 {
	t.Helper()
	req := multipartRequest(t, http.MethodPost, "/api/plates", map[string]string{
		"title":       title,
		"description": "tasty",
		"price":       "30",
		"category":    "pizza",
		"ingredients": ingredients,
	}, "a.png")
	w := a.do(t, req, userID)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	list, err := a.repo.ListPlates(context.Background(), models.PlateFilter{UserID: userID, Title: title})
	require.NoError(t, err)
	require.NotEmpty(t, list)
	return list[len(list)-1].ID
}

func (a *testApp) show(t *testing.T, id int64) (int, models.PlateView, ErrorRes) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/plates/"+itoa(id), nil)
	w := a.do(t, req, 1)

	var view models.PlateView
	var errRes ErrorRes
	if w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	} else {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errRes))
	}
	return w.Code, view, errRes
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func TestHealth(t *testing.T) {
	a := newTestApp(t)

	w := a.do(t, httptest.NewRequest(http.MethodGet, "/health", nil), 0)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRequiresToken(t *testing.T) {
	a := newTestApp(t)

	w := a.do(t, httptest.NewRequest(http.MethodGet, "/api/plates", nil), 0)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var res ErrorRes
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "error", res.Status)
}

func TestCreateAndShowPlate(t *testing.T) {
	a := newTestApp(t)
	id := a.createPlate(t, 1, "Margherita", `["tomato","basil","mozzarella"]`)

	code, view, _ := a.show(t, id)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Margherita", view.Title)
	assert.Equal(t, 30.0, view.Price)
	assert.Equal(t, "pizza", view.Category)
	require.Len(t, view.Ingredients, 3)
	assert.Equal(t, "basil", view.Ingredients[0].Name)
	assert.Equal(t, "mozzarella", view.Ingredients[1].Name)
	assert.Equal(t, "tomato", view.Ingredients[2].Name)

	require.NotNil(t, view.Image)
	assert.True(t, strings.HasSuffix(*view.Image, "-a.png"))
	assert.FileExists(t, filepath.Join(a.Config.UploadsFolder, *view.Image))

	//staged copy was moved, not left behind
	left, _ := os.ReadDir(a.Config.TmpFolder)
	assert.Empty(t, left)

	w := a.do(t, httptest.NewRequest(http.MethodGet, "/files/"+*view.Image, nil), 0)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image-bytes-a.png", w.Body.String())
}

func TestCreateRequiresImage(t *testing.T) {
	a := newTestApp(t)

	req := multipartRequest(t, http.MethodPost, "/api/plates", map[string]string{"title": "No image"}, "")
	w := a.do(t, req, 1)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateBadIngredients(t *testing.T) {
	a := newTestApp(t)

	req := multipartRequest(t, http.MethodPost, "/api/plates", map[string]string{
		"title":       "Broken",
		"ingredients": `["tomato"`,
	}, "b.png")
	w := a.do(t, req, 1)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var res ErrorRes
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "BAD_REQUEST", res.Code)

	left, _ := os.ReadDir(a.Config.TmpFolder)
	assert.Empty(t, left)
}

func TestShowMissingPlate(t *testing.T) {
	a := newTestApp(t)

	code, _, res := a.show(t, 99)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Plate not found", res.Message)
}

func TestShowBadID(t *testing.T) {
	a := newTestApp(t)

	w := a.do(t, httptest.NewRequest(http.MethodGet, "/api/plates/abc", nil), 1)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdatePlateForm(t *testing.T) {
	a := newTestApp(t)
	id := a.createPlate(t, 1, "Margherita", `["tomato"]`)
	_, before, _ := a.show(t, id)

	req := multipartRequest(t, http.MethodPut, "/api/plates/"+itoa(id), map[string]string{
		"price":       "35.5",
		"ingredients": `["tomato","oregano"]`,
	}, "new.png")
	w := a.do(t, req, 1)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	_, after, _ := a.show(t, id)
	assert.Equal(t, "Margherita", after.Title)
	assert.Equal(t, 35.5, after.Price)
	require.Len(t, after.Ingredients, 2)
	assert.Equal(t, "oregano", after.Ingredients[0].Name)

	require.NotNil(t, after.Image)
	assert.True(t, strings.HasSuffix(*after.Image, "-new.png"))
	assert.FileExists(t, filepath.Join(a.Config.UploadsFolder, *after.Image))
	assert.NoFileExists(t, filepath.Join(a.Config.UploadsFolder, *before.Image))
}

func TestUpdatePlateJSON(t *testing.T) {
	a := newTestApp(t)
	id := a.createPlate(t, 1, "Margherita", `["tomato","basil"]`)

	req := httptest.NewRequest(http.MethodPut, "/api/plates/"+itoa(id),
		strings.NewReader(`{"title":"Marinara","ingredients":["garlic"]}`))
	req.Header.Set("Content-Type", "application/json")
	w := a.do(t, req, 1)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	_, view, _ := a.show(t, id)
	assert.Equal(t, "Marinara", view.Title)
	assert.Equal(t, "tasty", view.Description)
	require.Len(t, view.Ingredients, 1)
	assert.Equal(t, "garlic", view.Ingredients[0].Name)
}

func TestUpdateMissingPlate(t *testing.T) {
	a := newTestApp(t)

	req := httptest.NewRequest(http.MethodPut, "/api/plates/42", strings.NewReader(`{"title":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	w := a.do(t, req, 1)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var res ErrorRes
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "Plate not found", res.Message)
}

func TestDeletePlate(t *testing.T) {
	a := newTestApp(t)
	id := a.createPlate(t, 1, "Soup", `["leek"]`)

	w := a.do(t, httptest.NewRequest(http.MethodDelete, "/api/plates/"+itoa(id), nil), 1)
	assert.Equal(t, http.StatusOK, w.Code)

	code, _, _ := a.show(t, id)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestIndexPlates(t *testing.T) {
	a := newTestApp(t)
	a.createPlate(t, 1, "Pizza", `["tomato","basil"]`)
	a.createPlate(t, 1, "Caprese", `["tomato","mozzarella"]`)
	a.createPlate(t, 1, "Risotto", `["rice"]`)
	a.createPlate(t, 2, "Pizza bianca", `["basil"]`)

	list := func(query string) []models.PlateView {
		w := a.do(t, httptest.NewRequest(http.MethodGet, "/api/plates"+query, nil), 1)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var views []models.PlateView
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &views))
		return views
	}
	titles := func(views []models.PlateView) []string {
		out := []string{}
		for _, v := range views {
			out = append(out, v.Title)
		}
		return out
	}

	assert.Equal(t, []string{"Caprese", "Pizza", "Risotto"}, titles(list("")))
	assert.Equal(t, []string{"Pizza"}, titles(list("?title=piz")))
	assert.Equal(t, []string{"Caprese", "Pizza"}, titles(list("?ingredients=tomato,%20basil")))

	views := list("?title=pizza&ingredients=basil")
	require.Len(t, views, 1)
	assert.Len(t, views[0].Ingredients, 2)

	assert.Empty(t, list("?title=sushi"))
}

func TestIndexEmptyIsArray(t *testing.T) {
	a := newTestApp(t)

	w := a.do(t, httptest.NewRequest(http.MethodGet, "/api/plates", nil), 1)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestServeFileRejectsMissing(t *testing.T) {
	a := newTestApp(t)

	w := a.do(t, httptest.NewRequest(http.MethodGet, "/files/nope.png", nil), 0)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateRejectsBadPrice(t *testing.T) {
	a := newTestApp(t)

	for _, price := range []string{"NaN", "Inf", "-Inf", "-1", "1e12", "abc"} {
		req := multipartRequest(t, http.MethodPost, "/api/plates", map[string]string{
			"title": "Odd",
			"price": price,
		}, "c.png")
		w := a.do(t, req, 1)
		assert.Equal(t, http.StatusBadRequest, w.Code, price)
	}

	//nothing was stored, so the listing still renders
	w := a.do(t, httptest.NewRequest(http.MethodGet, "/api/plates", nil), 1)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestUpdateRejectsBadPrice(t *testing.T) {
	a := newTestApp(t)
	id := a.createPlate(t, 1, "Margherita", `["tomato"]`)

	req := multipartRequest(t, http.MethodPut, "/api/plates/"+itoa(id), map[string]string{"price": "NaN"}, "")
	w := a.do(t, req, 1)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	for _, body := range []string{`{"price":-5}`, `{"price":1e12}`} {
		req := httptest.NewRequest(http.MethodPut, "/api/plates/"+itoa(id), strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := a.do(t, req, 1)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}

	code, view, _ := a.show(t, id)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 30.0, view.Price)
}

func TestCheckSecret(t *testing.T) {
	assert.ErrorIs(t, checkSecret(Config{Store: "postgres", JWTSecret: defaultJWTSecret}), errDefaultSecret)
	assert.ErrorIs(t, checkSecret(Config{Store: "postgres"}), errDefaultSecret)
	assert.NoError(t, checkSecret(Config{Store: "memory", JWTSecret: defaultJWTSecret}))
	assert.NoError(t, checkSecret(Config{Store: "postgres", JWTSecret: "s3cret"}))
}
