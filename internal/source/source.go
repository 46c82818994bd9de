// Package source turns directories, PDFs and URLs into frame identifiers and
// decodes them into images.
//
// Identifiers are plain strings: a file path, an http(s) URL, or a PDF page
// written as "doc.pdf#3" (pages count from 1).
package source

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// DefaultDPI is the resolution PDF pages are rendered at.
const DefaultDPI = 150

// Source is a paged document whose pages become frames.
type Source interface {
	PageCount() int
	GetPageDimensions(index int) (width, height float64, err error)
	RenderPage(index int, dpi int) (image.Image, error)
	Close() error
}

type FitzPDFSource struct {
	doc  *fitz.Document
	path string
}

func NewFitzPDFSource(path string) (*FitzPDFSource, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	return &FitzPDFSource{doc: doc, path: path}, nil
}

func (f *FitzPDFSource) PageCount() int {
	return f.doc.NumPage()
}

func (f *FitzPDFSource) GetPageDimensions(index int) (float64, float64, error) {
	rect, err := f.doc.Bound(index)
	if err != nil {
		return 0, 0, err
	}
	return float64(rect.Dx()), float64(rect.Dy()), nil
}

// RenderPage opens its own document: a fitz document must not be used from
// two goroutines at once.
func (f *FitzPDFSource) RenderPage(index int, dpi int) (image.Image, error) {
	workerDoc, err := fitz.New(f.path)
	if err != nil {
		return nil, err
	}
	defer workerDoc.Close()
	return workerDoc.ImageDPI(index, float64(dpi))
}

func (f *FitzPDFSource) Close() error {
	return f.doc.Close()
}

// Open returns the document at path: a directory of images, a PDF, or a
// single image.
func Open(path string) (Source, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() && isPDF(path) {
		return NewFitzPDFSource(path)
	}
	return NewImageSource(path)
}

// Identifiers lists the frames found at path, in playback order.
func Identifiers(path string) ([]string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	switch {
	case fi.IsDir():
		return List(path)
	case isPDF(path):
		return PDFPages(path)
	}
	return []string{path}, nil
}

// PDFPages returns one identifier per page of the PDF at path.
func PDFPages(path string) ([]string, error) {
	src, err := NewFitzPDFSource(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	n := src.PageCount()
	ids := make([]string, n)
	for i := range ids {
		ids[i] = PageID(path, i+1)
	}
	return ids, nil
}

// PageID is the identifier of page (from 1) of the PDF at path.
func PageID(path string, page int) string {
	return path + "#" + strconv.Itoa(page)
}

// SplitPageID reports the PDF path and the zero-based page index of id.
func SplitPageID(id string) (path string, index int, ok bool) {
	i := strings.LastIndexByte(id, '#')
	if i < 0 || !isPDF(id[:i]) {
		return "", 0, false
	}
	page, err := strconv.Atoi(id[i+1:])
	if err != nil || page < 1 {
		return "", 0, false
	}
	return id[:i], page - 1, true
}

func isPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}
