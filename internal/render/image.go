package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG decoding
	"image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	"storyreel/internal/models"
)

// maxImageBytes bounds a remote image fetch. Generated scene stills top
// out well under this.
const maxImageBytes = 32 << 20

// Normalizer resolves a scene's image from any of its supplied forms and
// fits it to the render canvas. Resolution order: inline data, a path
// relative to the storage root, then a remote fetch (relative references
// resolved against BaseURL). A scene whose image is unreachable in all
// forms aborts the job — silently skipping a scene would desynchronize
// scene order from timing allocation.
type Normalizer struct {
	StorageRoot string
	BaseURL     string
	Client      *http.Client
}

// NormalizeToFile resolves the scene image, cover-fits it to width x height
// and writes it as PNG to outPath. Returns the source image's orientation
// (detected before cropping) for motion selection.
func (n *Normalizer) NormalizeToFile(ctx context.Context, scene models.Scene, width, height int, outPath string) (Orientation, error) {
	src, err := n.Resolve(ctx, scene)
	if err != nil {
		return "", err
	}

	bounds := src.Bounds()
	orientation := DetectOrientation(bounds.Dx(), bounds.Dy())

	fitted := CoverFit(src, width, height)

	f, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("failed to create normalized image: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, fitted); err != nil {
		return "", fmt.Errorf("failed to encode normalized image: %w", err)
	}

	return orientation, nil
}

// Resolve loads and decodes the scene image, trying each supplied form in
// order.
func (n *Normalizer) Resolve(ctx context.Context, scene models.Scene) (image.Image, error) {
	var attempts []string

	if scene.ImageData != "" {
		img, err := decodeInline(scene.ImageData)
		if err == nil {
			return img, nil
		}
		attempts = append(attempts, fmt.Sprintf("inline: %v", err))
	}

	if scene.ImageURL != "" {
		if !isAbsoluteURL(scene.ImageURL) {
			img, err := n.readLocal(scene.ImageURL)
			if err == nil {
				return img, nil
			}
			attempts = append(attempts, fmt.Sprintf("local: %v", err))
		}

		img, err := n.fetchRemote(ctx, scene.ImageURL)
		if err == nil {
			return img, nil
		}
		attempts = append(attempts, fmt.Sprintf("remote: %v", err))
	}

	if len(attempts) == 0 {
		return nil, fmt.Errorf("scene %d has no image reference", scene.SceneNumber)
	}
	return nil, fmt.Errorf("scene %d image unreachable (%s)", scene.SceneNumber, strings.Join(attempts, "; "))
}

// decodeInline decodes embedded image data: either a data URI or bare
// base64.
func decodeInline(data string) (image.Image, error) {
	payload := data
	if strings.HasPrefix(data, "data:") {
		idx := strings.Index(data, ",")
		if idx < 0 {
			return nil, fmt.Errorf("malformed data URI")
		}
		payload = data[idx+1:]
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, fmt.Errorf("base64 decode failed: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("image decode failed: %w", err)
	}
	return img, nil
}

// readLocal reads a storage-root relative path from disk.
func (n *Normalizer) readLocal(ref string) (image.Image, error) {
	rel := strings.TrimPrefix(ref, "/")
	path := filepath.Join(n.StorageRoot, filepath.FromSlash(rel))

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("image decode failed for %s: %w", path, err)
	}
	return img, nil
}

// fetchRemote downloads and decodes the image, resolving relative
// references against the configured base address.
func (n *Normalizer) fetchRemote(ctx context.Context, ref string) (image.Image, error) {
	target := ref
	if !isAbsoluteURL(ref) {
		base, err := url.Parse(n.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid base URL: %w", err)
		}
		rel, err := url.Parse(ref)
		if err != nil {
			return nil, fmt.Errorf("invalid image reference: %w", err)
		}
		target = base.ResolveReference(rel).String()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read image body: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("image decode failed: %w", err)
	}
	return img, nil
}

func isAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// CoverFit scales src to cover the target canvas and crops the centered
// overflow, so the frame is always fully filled — never letterboxed.
func CoverFit(src image.Image, width, height int) *image.RGBA {
	srcB := src.Bounds()
	srcW, srcH := srcB.Dx(), srcB.Dy()

	// Scale factor that covers both dimensions.
	scaleX := float64(width) / float64(srcW)
	scaleY := float64(height) / float64(srcH)
	scale := scaleX
	if scaleY > scale {
		scale = scaleY
	}

	scaledW := int(float64(srcW)*scale + 0.5)
	scaledH := int(float64(srcH)*scale + 0.5)
	if scaledW < width {
		scaledW = width
	}
	if scaledH < height {
		scaledH = height
	}

	scaled := image.NewRGBA(image.Rect(0, 0, scaledW, scaledH))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), src, srcB, draw.Src, nil)

	// Centered crop of the overflow.
	offX := (scaledW - width) / 2
	offY := (scaledH - height) / 2

	out := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(out, out.Bounds(), scaled, image.Pt(offX, offY), draw.Src)
	return out
}
