package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Eyemetric/plates_service/internal/auth"
	"github.com/sirupsen/logrus"
)

// SeedPlate is one entry of the seed file. Image is a path relative to the seed file.
type SeedPlate struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Price       float64  `json:"price"`
	Ingredients []string `json:"ingredients"`
	Image       string   `json:"image"`
}

type Client struct {
	base  string
	token string
	http  *http.Client
}

func NewClient(base, token string) *Client {
	return &Client{
		base:  base,
		token: token,
		http:  &http.Client{Timeout: 15 * time.Second},
	}
}

// helper
func getEnv(key string, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func main() {
	port := getEnv("PLATES_PORT", "3333")
	seedFile := getEnv("SEED_FILE", "plates_seed.json")
	userID, err := strconv.ParseInt(getEnv("SEED_USER_ID", "1"), 10, 64)
	if err != nil {
		logrus.WithError(err).Fatal("SEED_USER_ID must be numeric")
	}

	//sign our own token with the service secret, there is no login endpoint here
	token, err := auth.Sign([]byte(getEnv("JWT_SECRET", "default")), userID, time.Hour)
	if err != nil {
		logrus.WithError(err).Fatal("could not sign token")
	}
	client := NewClient("http://localhost:"+port, token)

	data, err := os.ReadFile(seedFile)
	if err != nil {
		logrus.WithError(err).Fatal("could not read seed file")
	}

	var plates []SeedPlate
	if err := json.Unmarshal(data, &plates); err != nil {
		logrus.WithError(err).Fatal("seed file must be a json array of plates")
	}

	baseDir := filepath.Dir(seedFile)
	for idx, p := range plates {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := client.CreatePlate(ctx, p, baseDir)
		cancel()
		if err != nil {
			logrus.WithError(err).WithField("item", idx).Fatal("post failed")
		}
		logrus.WithFields(logrus.Fields{"item": idx, "title": p.Title}).Info("plate posted")
	}
}

// CreatePlate posts one plate as the multipart form the service expects.
func (c *Client) CreatePlate(ctx context.Context, p SeedPlate, baseDir string) error {
	ingredients, err := json.Marshal(p.Ingredients)
	if err != nil {
		return err
	}

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fields := map[string]string{
		"title":       p.Title,
		"description": p.Description,
		"category":    p.Category,
		"price":       strconv.FormatFloat(p.Price, 'f', -1, 64),
		"ingredients": string(ingredients),
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}

	img, err := os.Open(filepath.Join(baseDir, p.Image))
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer img.Close()

	part, err := mw.CreateFormFile("image", filepath.Base(p.Image))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, img); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/plates", body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return &httpError{Code: resp.StatusCode, Body: string(msg)}
	}
	return nil
}

type httpError struct {
	Code int
	Body string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("unexpected status code: %d %s", e.Code, e.Body)
}
