package preprocess

import (
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// renderPDF rasterizes every page of a PDF at the configured DPI. The DPI
// is intentionally low; encodePage re-compresses the result like any other
// raster page.
func (p *Preprocessor) renderPDF(data []byte) ([]image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	pages := make([]image.Image, 0, doc.NumPage())
	for n := 0; n < doc.NumPage(); n++ {
		img, err := doc.ImageDPI(n, p.renderDPI)
		if err != nil {
			return nil, fmt.Errorf("render pdf page %d: %w", n+1, err)
		}
		pages = append(pages, img)
	}
	return pages, nil
}
