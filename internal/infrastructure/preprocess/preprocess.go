// Package preprocess normalizes operator uploads into the bounded-size
// JPEG pages the recognition service is billed on. The fixed downscale and
// quality factor trade pixels for payload: printed and handwritten marks
// stay machine-legible well below the original scan resolution.
package preprocess

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/quizpix/quizpix/internal/core/domain"
)

const (
	// DefaultMaxWidth bounds the longer dimension of raster uploads.
	DefaultMaxWidth = 900
	// DefaultJPEGQuality is the sweet spot between OCR accuracy and
	// payload size for answer-sheet scans.
	DefaultJPEGQuality = 55
	// DefaultRenderDPI keeps rasterized PDF pages deliberately light.
	DefaultRenderDPI = 80
)

type Preprocessor struct {
	maxWidth  int
	quality   int
	renderDPI float64
}

func New(maxWidth, quality int, renderDPI float64) *Preprocessor {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	if renderDPI <= 0 {
		renderDPI = DefaultRenderDPI
	}
	return &Preprocessor{maxWidth: maxWidth, quality: quality, renderDPI: renderDPI}
}

// Normalize turns uploads into ordered page images, one per visual page,
// in file-then-page order with stable 1-based indexes. Any undecodable
// file fails the whole call: no partial page list survives a bad upload.
func (p *Preprocessor) Normalize(ctx context.Context, uploads []domain.Upload) ([]domain.PageImage, error) {
	var pages []domain.PageImage
	index := 0

	for _, upload := range uploads {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var (
			images []image.Image
			err    error
		)
		if isPDF(upload) {
			images, err = p.renderPDF(upload.Data)
		} else {
			images, err = decodeRaster(upload.Data)
		}
		if err != nil {
			return nil, domain.WrapError(domain.ErrDecode, fmt.Sprintf("preprocess %q", upload.Filename), err)
		}

		for _, img := range images {
			index++
			data, err := p.encodePage(img)
			if err != nil {
				return nil, domain.WrapError(domain.ErrDecode, fmt.Sprintf("encode %q page %d", upload.Filename, index), err)
			}
			pages = append(pages, domain.PageImage{Index: index, Data: data})
		}
	}
	return pages, nil
}

// encodePage downscales oversized rasters and re-encodes everything at the
// fixed quality factor, so every page leaves here as a bounded JPEG.
func (p *Preprocessor) encodePage(img image.Image) ([]byte, error) {
	if img.Bounds().Dx() > p.maxWidth {
		img = imaging.Resize(img, p.maxWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(p.quality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeRaster(data []byte) ([]image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return []image.Image{img}, nil
}

func isPDF(upload domain.Upload) bool {
	if strings.EqualFold(upload.MimeType, "application/pdf") {
		return true
	}
	return bytes.HasPrefix(upload.Data, []byte("%PDF"))
}
