package storage

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// StageUpload writes an uploaded file into tmpDir as "<uuid>-<original name>"
// and returns that name.
func StageUpload(fh *multipart.FileHeader, tmpDir string) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", fmt.Errorf("create tmp folder: %w", err)
	}

	name := uuid.NewString() + "-" + cleanName(fh.Filename)
	dst, err := os.Create(filepath.Join(tmpDir, name))
	if err != nil {
		return "", fmt.Errorf("create tmp file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("write tmp file: %w", err)
	}
	return name, nil
}

func cleanName(name string) string {
	//browsers on windows may send the full path
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	name = strings.ReplaceAll(name, " ", "-")
	if name == "." || name == "/" || name == "" {
		return "upload"
	}
	return name
}
