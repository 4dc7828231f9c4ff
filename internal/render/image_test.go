package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"storyreel/internal/models"
)

// testPNG encodes a solid-color image of the given size.
func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestCoverFitExactDimensions(t *testing.T) {
	tests := []struct {
		srcW, srcH, dstW, dstH int
	}{
		{1000, 500, 400, 400},  // wide source, square target
		{500, 1000, 400, 400},  // tall source
		{400, 400, 1080, 1920}, // upscale to portrait
		{3000, 2000, 1920, 1080},
	}

	for _, tt := range tests {
		src := image.NewRGBA(image.Rect(0, 0, tt.srcW, tt.srcH))
		out := CoverFit(src, tt.dstW, tt.dstH)
		b := out.Bounds()
		if b.Dx() != tt.dstW || b.Dy() != tt.dstH {
			t.Errorf("CoverFit(%dx%d -> %dx%d): got %dx%d", tt.srcW, tt.srcH, tt.dstW, tt.dstH, b.Dx(), b.Dy())
		}
	}
}

func TestDecodeInlineBase64(t *testing.T) {
	raw := testPNG(t, 10, 10)
	encoded := base64.StdEncoding.EncodeToString(raw)

	img, err := decodeInline(encoded)
	if err != nil {
		t.Fatalf("failed to decode base64 image: %v", err)
	}
	if img.Bounds().Dx() != 10 {
		t.Errorf("unexpected width %d", img.Bounds().Dx())
	}
}

func TestDecodeInlineDataURI(t *testing.T) {
	raw := testPNG(t, 8, 12)
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)

	img, err := decodeInline(uri)
	if err != nil {
		t.Fatalf("failed to decode data URI: %v", err)
	}
	if img.Bounds().Dy() != 12 {
		t.Errorf("unexpected height %d", img.Bounds().Dy())
	}
}

func TestDecodeInlineGarbage(t *testing.T) {
	if _, err := decodeInline("not base64 at all!!!"); err == nil {
		t.Error("expected error for garbage inline data")
	}
}

func TestResolveLocalPath(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "images")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "scene1.png"), testPNG(t, 20, 30), 0644); err != nil {
		t.Fatal(err)
	}

	n := &Normalizer{StorageRoot: root}
	img, err := n.Resolve(context.Background(), models.Scene{
		SceneNumber: 1,
		ImageURL:    "/images/scene1.png",
	})
	if err != nil {
		t.Fatalf("failed to resolve local image: %v", err)
	}
	if img.Bounds().Dx() != 20 || img.Bounds().Dy() != 30 {
		t.Errorf("unexpected bounds %v", img.Bounds())
	}
}

func TestResolveRemoteFallback(t *testing.T) {
	raw := testPNG(t, 16, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/images/scene2.png" {
			http.NotFound(w, r)
			return
		}
		w.Write(raw)
	}))
	defer srv.Close()

	// Relative reference, missing locally — resolved against the base URL.
	n := &Normalizer{StorageRoot: t.TempDir(), BaseURL: srv.URL}
	img, err := n.Resolve(context.Background(), models.Scene{
		SceneNumber: 2,
		ImageURL:    "/images/scene2.png",
	})
	if err != nil {
		t.Fatalf("failed to resolve remote image: %v", err)
	}
	if img.Bounds().Dx() != 16 {
		t.Errorf("unexpected width %d", img.Bounds().Dx())
	}
}

func TestResolveAbsoluteURL(t *testing.T) {
	raw := testPNG(t, 6, 6)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(raw)
	}))
	defer srv.Close()

	n := &Normalizer{}
	img, err := n.Resolve(context.Background(), models.Scene{
		SceneNumber: 3,
		ImageURL:    srv.URL + "/any.png",
	})
	if err != nil {
		t.Fatalf("failed to resolve absolute URL: %v", err)
	}
	if img.Bounds().Dx() != 6 {
		t.Errorf("unexpected width %d", img.Bounds().Dx())
	}
}

func TestResolveInlineTakesPriority(t *testing.T) {
	// Inline decodes directly; the (nonexistent) URL must never be touched.
	n := &Normalizer{StorageRoot: t.TempDir(), BaseURL: "http://127.0.0.1:1"}
	img, err := n.Resolve(context.Background(), models.Scene{
		SceneNumber: 4,
		ImageData:   base64.StdEncoding.EncodeToString(testPNG(t, 5, 5)),
		ImageURL:    "/missing.png",
	})
	if err != nil {
		t.Fatalf("inline resolution failed: %v", err)
	}
	if img.Bounds().Dx() != 5 {
		t.Errorf("unexpected width %d", img.Bounds().Dx())
	}
}

func TestResolveAllFormsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	n := &Normalizer{StorageRoot: t.TempDir(), BaseURL: srv.URL}
	_, err := n.Resolve(context.Background(), models.Scene{
		SceneNumber: 7,
		ImageData:   "!!bad!!",
		ImageURL:    "/gone.png",
	})
	if err == nil {
		t.Fatal("expected error when all forms fail")
	}
	if !strings.Contains(err.Error(), "scene 7") {
		t.Errorf("error should identify the scene: %v", err)
	}
}

func TestResolveNoReference(t *testing.T) {
	n := &Normalizer{}
	if _, err := n.Resolve(context.Background(), models.Scene{SceneNumber: 9}); err == nil {
		t.Error("expected error for scene with no image reference")
	}
}

func TestNormalizeToFile(t *testing.T) {
	n := &Normalizer{}
	outPath := filepath.Join(t.TempDir(), "out.png")

	orientation, err := n.NormalizeToFile(context.Background(), models.Scene{
		SceneNumber: 1,
		ImageData:   base64.StdEncoding.EncodeToString(testPNG(t, 300, 100)),
	}, 64, 64, outPath)
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if orientation != OrientationLandscape {
		t.Errorf("expected landscape orientation for 300x100 source, got %s", orientation)
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatalf("output missing: %v", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("output not a valid PNG: %v", err)
	}
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 64 {
		t.Errorf("output is %v, want 64x64", img.Bounds())
	}
}
