package source

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// IsImage reports whether path has an extension the decoders handle.
func IsImage(path string) bool {
	return imageExts[strings.ToLower(filepath.Ext(path))]
}

// List returns the image files directly inside dir, sorted by name.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, entry := range entries {
		if !entry.IsDir() && IsImage(entry.Name()) {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// ImageSource is a directory of images, or one image, seen as pages.
type ImageSource struct {
	paths []string
}

func NewImageSource(path string) (*ImageSource, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	var paths []string
	if fi.IsDir() {
		if paths, err = List(path); err != nil {
			return nil, err
		}
	} else {
		paths = []string{path}
	}
	return &ImageSource{paths: paths}, nil
}

func (s *ImageSource) PageCount() int {
	return len(s.paths)
}

func (s *ImageSource) GetPageDimensions(index int) (float64, float64, error) {
	f, err := os.Open(s.paths[index])
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("decode %s: %w", s.paths[index], err)
	}
	return float64(cfg.Width), float64(cfg.Height), nil
}

// RenderPage decodes the image; dpi does not apply to raster files.
func (s *ImageSource) RenderPage(index int, dpi int) (image.Image, error) {
	return decodeFile(s.paths[index])
}

func (s *ImageSource) Close() error {
	return nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// EveryNth picks every nth identifier as a fast preview set and returns the
// frame mapping from a preview frame back onto the full set.
func EveryNth(ids []string, n int) (preview []string, match func(previewFrame int) int) {
	if n < 1 {
		n = 1
	}
	for i := 0; i < len(ids); i += n {
		preview = append(preview, ids[i])
	}
	match = func(frame int) int {
		full := (frame-1)*n + 1
		if full > len(ids) {
			full = len(ids)
		}
		if full < 1 {
			full = 1
		}
		return full
	}
	return preview, match
}
