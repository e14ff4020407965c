package dataset

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// imageExts is the lookup order used when resolving a stem to a file.
var imageExts = []string{".png", ".jpg", ".JPG", ".PNG", ".jpeg", ".JPEG", ".bmp", ".tif", ".tiff", ".webp"}

// ImageFile is an image found in an images/ directory.
type ImageFile struct {
	Stem string
	Name string
}

func IsImageFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range imageExts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

// ListImages enumerates image files in dir, sorted by name. A missing
// directory yields no images. When several files share a stem, only the
// first one in name order is kept.
func ListImages(fs afero.Fs, dir string) (ret []ImageFile, err error) {
	infos, err := afero.ReadDir(fs, dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list images in %s: %w", dir, err)
	}

	seen := make(map[string]bool)
	for _, fi := range infos {
		if fi.IsDir() || !IsImageFile(fi.Name()) {
			continue
		}
		stem := strings.TrimSuffix(fi.Name(), filepath.Ext(fi.Name()))
		if seen[stem] {
			continue
		}
		seen[stem] = true
		ret = append(ret, ImageFile{Stem: stem, Name: fi.Name()})
	}

	return
}

// FindImage resolves stem to an existing file name inside dir.
func FindImage(fs afero.Fs, dir, stem string) (name string, ok bool) {
	for _, ext := range imageExts {
		fi, err := fs.Stat(filepath.Join(dir, stem+ext))
		if err == nil && !fi.IsDir() {
			return stem + ext, true
		}
	}
	return "", false
}

// ImageSize decodes only the image header to get its dimensions.
func ImageSize(fs afero.Fs, path string) (w, h int, err error) {
	f, err := fs.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("decode header of %s: %w", path, err)
	}

	return cfg.Width, cfg.Height, nil
}
