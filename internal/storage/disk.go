package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// DiskStorage keeps uploads on the local file system.
type DiskStorage struct {
	TmpDir     string
	UploadsDir string
}

func NewDiskStorage(tmpDir, uploadsDir string) *DiskStorage {
	return &DiskStorage{TmpDir: tmpDir, UploadsDir: uploadsDir}
}

func (d *DiskStorage) SaveFile(ctx context.Context, tmpName string) (string, error) {
	if err := checkName(tmpName); err != nil {
		return "", err
	}
	if err := os.MkdirAll(d.UploadsDir, 0o755); err != nil {
		return "", fmt.Errorf("create uploads folder: %w", err)
	}

	src := filepath.Join(d.TmpDir, tmpName)
	dst := filepath.Join(d.UploadsDir, tmpName)
	if err := os.Rename(src, dst); err != nil {
		//rename fails across devices, fall back to copy
		if err := copyFile(src, dst); err != nil {
			return "", fmt.Errorf("save %s: %w", tmpName, err)
		}
		_ = os.Remove(src)
	}

	logrus.WithField("file", tmpName).Debug("file saved to uploads")
	return tmpName, nil
}

func (d *DiskStorage) DeleteFile(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(d.UploadsDir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
