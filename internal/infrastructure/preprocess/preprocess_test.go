package preprocess

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/quizpix/quizpix/internal/core/domain"
)

func pngUpload(t *testing.T, name string, width, height int) domain.Upload {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		img.Set(x, height/2, color.Black)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return domain.Upload{Filename: name, MimeType: "image/png", Data: buf.Bytes()}
}

func TestNormalizeDownscalesWidePagesAndReencodesJPEG(t *testing.T) {
	p := New(900, 55, 80)

	pages, err := p.Normalize(context.Background(), []domain.Upload{pngUpload(t, "wide.png", 1800, 1200)})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(pages))
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(pages[0].Data))
	if err != nil {
		t.Fatalf("decode produced page: %v", err)
	}
	if format != "jpeg" {
		t.Fatalf("expected jpeg output, got %s", format)
	}
	if cfg.Width != 900 {
		t.Fatalf("expected width capped at 900, got %d", cfg.Width)
	}
	if cfg.Height != 600 {
		t.Fatalf("expected aspect preserved (600), got %d", cfg.Height)
	}
}

func TestNormalizeKeepsSmallPagesUnscaled(t *testing.T) {
	p := New(900, 55, 80)

	pages, err := p.Normalize(context.Background(), []domain.Upload{pngUpload(t, "small.png", 400, 500)})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(pages[0].Data))
	if err != nil {
		t.Fatalf("decode produced page: %v", err)
	}
	if cfg.Width != 400 || cfg.Height != 500 {
		t.Fatalf("small page should keep its size, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestNormalizeAssignsFileThenPageOrder(t *testing.T) {
	p := New(0, 0, 0)

	pages, err := p.Normalize(context.Background(), []domain.Upload{
		pngUpload(t, "a.png", 100, 100),
		pngUpload(t, "b.png", 100, 100),
	})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}
	for i, page := range pages {
		if page.Index != i+1 {
			t.Fatalf("expected 1-based stable index %d, got %d", i+1, page.Index)
		}
	}
}

func TestNormalizeFailsWholeUploadOnUndecodableFile(t *testing.T) {
	p := New(900, 55, 80)

	_, err := p.Normalize(context.Background(), []domain.Upload{
		pngUpload(t, "ok.png", 100, 100),
		{Filename: "broken.jpg", MimeType: "image/jpeg", Data: []byte("not an image")},
	})
	if err == nil {
		t.Fatalf("expected error for undecodable file")
	}
	if !domain.IsKind(err, domain.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestIsPDFSniffsMagicBytes(t *testing.T) {
	if !isPDF(domain.Upload{MimeType: "application/octet-stream", Data: []byte("%PDF-1.7 ...")}) {
		t.Fatalf("magic bytes should mark upload as pdf")
	}
	if !isPDF(domain.Upload{MimeType: "application/pdf"}) {
		t.Fatalf("mime type should mark upload as pdf")
	}
	if isPDF(domain.Upload{MimeType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}) {
		t.Fatalf("png upload misdetected as pdf")
	}
}
