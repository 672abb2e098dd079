package storage

import (
	"context"
	"fmt"
	"path/filepath"
)

// FileStorage moves staged uploads into permanent storage.
// SaveFile takes the name of a file in the temp folder and returns the stored filename.
type FileStorage interface {
	SaveFile(ctx context.Context, tmpName string) (string, error)
	DeleteFile(ctx context.Context, name string) error
}

// Presigner is implemented by stores that serve files through signed links.
type Presigner interface {
	PresignUrl(ctx context.Context, name string) (string, error)
}

// checkName rejects anything that is not a bare file name.
func checkName(name string) error {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return fmt.Errorf("invalid file name %q", name)
	}
	return nil
}

var (
	_ FileStorage = (*DiskStorage)(nil)
	_ FileStorage = (*Wasabi)(nil)
	_ Presigner   = (*Wasabi)(nil)
)
