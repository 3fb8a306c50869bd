package preprocess

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"testing"

	"github.com/joseph-ayodele/hr-extractor/constants"
	"github.com/joseph-ayodele/hr-extractor/internal/entity"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: 255, A: 255})
	}
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func newPreparer(cfg Config) *Preparer {
	return New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestPrepareKeepsSmallImages(t *testing.T) {
	data := pngBytes(t, 40, 30)
	p := newPreparer(Config{MaxDimension: 100})
	req, err := p.Prepare(context.Background(), entity.Document{Filename: "a.png", MediaType: "image/png", Data: data})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if req.MediaType != constants.MediaTypePNG || !bytes.Equal(req.Data, data) {
		t.Fatalf("small image should pass through, got %s (%d bytes)", req.MediaType, len(req.Data))
	}
}

func TestPrepareDownscalesLargeImages(t *testing.T) {
	data := pngBytes(t, 400, 200)
	p := newPreparer(Config{MaxDimension: 100})
	req, err := p.Prepare(context.Background(), entity.Document{Filename: "big.png", MediaType: "image/png", Data: data})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if req.MediaType != constants.MediaTypeJPEG {
		t.Fatalf("media type = %s, want image/jpeg", req.MediaType)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(req.Data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if format != "jpeg" || cfg.Width != 100 || cfg.Height != 50 {
		t.Fatalf("got %s %dx%d, want jpeg 100x50", format, cfg.Width, cfg.Height)
	}
}

func TestPreparePassesPDFThrough(t *testing.T) {
	data := []byte("%PDF-1.4\n%fake")
	p := newPreparer(Config{MaxDimension: 10})
	req, err := p.Prepare(context.Background(), entity.Document{Filename: "ficha.pdf", MediaType: "application/pdf", Data: data})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if req.MediaType != constants.MediaTypePDF || !bytes.Equal(req.Data, data) || req.Filename != "ficha.pdf" {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestPrepareSizeGate(t *testing.T) {
	p := newPreparer(Config{MaxBytes: 8})
	_, err := p.Prepare(context.Background(), entity.Document{Filename: "x.pdf", MediaType: "application/pdf", Data: []byte("%PDF-1.4 too long")})
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("err = %v, want ErrPayloadTooLarge", err)
	}
}

func TestPrepareHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newPreparer(Config{}).Prepare(ctx, entity.Document{Filename: "a.pdf", MediaType: "application/pdf", Data: []byte("%PDF")})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestDetectMediaType(t *testing.T) {
	cases := []struct {
		name     string
		filename string
		data     []byte
		want     string
	}{
		{"png sniffed", "scan.bin", pngBytes(t, 2, 2), constants.MediaTypePNG},
		{"pdf sniffed", "noext", []byte("%PDF-1.7\n"), constants.MediaTypePDF},
		{"extension fallback", "FOTO.JPG", []byte("not really an image"), constants.MediaTypeJPEG},
		{"unsupported", "notes.txt", []byte("hello"), ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetectMediaType(tc.filename, tc.data); got != tc.want {
				t.Fatalf("DetectMediaType = %q, want %q", got, tc.want)
			}
		})
	}
}
