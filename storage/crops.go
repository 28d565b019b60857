package storage

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
)

// CropStore writes enrollment face crops to disk, one file per person,
// grouped by owner: <dir>/<owner_id>/<person_id>.jpg.
type CropStore struct {
	dir string
}

func NewCropStore(dir string) (*CropStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create faces directory: %w", err)
	}
	return &CropStore{dir: dir}, nil
}

// Save encodes the crop as JPEG and returns the stored path.
func (c *CropStore) Save(ownerID, personID string, crop image.Image) (string, error) {
	ownerDir := filepath.Join(c.dir, ownerID)
	if err := os.MkdirAll(ownerDir, 0o755); err != nil {
		return "", fmt.Errorf("create owner directory: %w", err)
	}

	path := filepath.Join(ownerDir, personID+".jpg")
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create crop file: %w", err)
	}
	defer file.Close()

	if err := jpeg.Encode(file, crop, &jpeg.Options{Quality: 80}); err != nil {
		return "", fmt.Errorf("encode crop: %w", err)
	}
	return path, nil
}
