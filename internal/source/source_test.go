package source

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	data := encodePNG(t, 4, 2)
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), data, 0644))
	}
}

func TestListSortsAndFilters(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "b.png", "a.PNG", "c.webp", "notes.txt")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.png"), 0755))

	got, err := List(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.PNG"),
		filepath.Join(dir, "b.png"),
		filepath.Join(dir, "c.webp"),
	}, got)
}

func TestIdentifiers(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "1.png", "2.png")

	ids, err := Identifiers(dir)
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	single := filepath.Join(dir, "1.png")
	ids, err = Identifiers(single)
	require.NoError(t, err)
	assert.Equal(t, []string{single}, ids)

	_, err = Identifiers(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestPageIDs(t *testing.T) {
	tests := []struct {
		id    string
		path  string
		index int
		ok    bool
	}{
		{"deck.pdf#1", "deck.pdf", 0, true},
		{"dir/Deck.PDF#12", "dir/Deck.PDF", 11, true},
		{"deck.pdf#0", "", 0, false},
		{"deck.pdf#x", "", 0, false},
		{"frame.png#2", "", 0, false},
		{"deck.pdf", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			path, index, ok := SplitPageID(tt.id)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.path, path)
			assert.Equal(t, tt.index, index)
		})
	}
	assert.Equal(t, "deck.pdf#3", PageID("deck.pdf", 3))
}

func TestEveryNth(t *testing.T) {
	ids := []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10"}
	preview, match := EveryNth(ids, 4)
	assert.Equal(t, []string{"1", "5", "9"}, preview)
	assert.Equal(t, 1, match(1))
	assert.Equal(t, 5, match(2))
	assert.Equal(t, 9, match(3))
	assert.Equal(t, 10, match(4))
}

func TestImageSourcePages(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.png", "b.png")

	src, err := Open(dir)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, 2, src.PageCount())
	w, h, err := src.GetPageDimensions(1)
	require.NoError(t, err)
	assert.Equal(t, 4.0, w)
	assert.Equal(t, 2.0, h)

	img, err := src.RenderPage(0, DefaultDPI)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 2), img.Bounds())
}

func TestFileLoaderDecodesFiles(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.png")
	l := NewFileLoader(zerolog.Nop())

	img, err := l.Load(context.Background(), filepath.Join(dir, "a.png"))
	require.NoError(t, err)
	r, _, _, _ := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), r)

	_, err = l.Load(context.Background(), filepath.Join(dir, "nope.png"))
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Load(ctx, filepath.Join(dir, "a.png"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileLoaderFetchesURLs(t *testing.T) {
	data := encodePNG(t, 8, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/frame.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	defer srv.Close()

	l := NewFileLoader(zerolog.Nop())
	l.Client = srv.Client()

	img, err := l.Load(context.Background(), srv.URL+"/frame.png")
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())

	_, err = l.Load(context.Background(), srv.URL+"/gone.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
