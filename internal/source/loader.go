package source

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog"
)

// FileLoader decodes local files, http(s) URLs and PDF pages.
type FileLoader struct {
	// Client fetches URLs; http.DefaultClient when nil.
	Client *http.Client
	// DPI applies to PDF pages.
	DPI int
	Log zerolog.Logger
}

func NewFileLoader(log zerolog.Logger) *FileLoader {
	return &FileLoader{DPI: DefaultDPI, Log: log}
}

func (l *FileLoader) Load(ctx context.Context, id string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch {
	case strings.HasPrefix(id, "http://"), strings.HasPrefix(id, "https://"):
		return l.fetch(ctx, id)
	}
	if path, index, ok := SplitPageID(id); ok {
		return l.renderPage(path, index)
	}
	return decodeFile(id)
}

func (l *FileLoader) fetch(ctx context.Context, url string) (image.Image, error) {
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get %s: %s", url, resp.Status)
	}
	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	return img, nil
}

func (l *FileLoader) renderPage(path string, index int) (image.Image, error) {
	dpi := l.DPI
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer doc.Close()
	if index >= doc.NumPage() {
		return nil, fmt.Errorf("%s has %d pages, no page %d", path, doc.NumPage(), index+1)
	}
	img, err := doc.ImageDPI(index, float64(dpi))
	if err != nil {
		return nil, fmt.Errorf("render %s page %d: %w", path, index+1, err)
	}
	l.Log.Debug().Str("pdf", path).Int("page", index+1).Int("dpi", dpi).Msg("page rendered")
	return img, nil
}
