package render

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"storyreel/internal/models"
)

// canvasPad is the oversize factor for the synthesis source canvas. The
// extra 25% leaves travel room for the zoom and pan expressions; the
// zoompan crop brings the output back to exact target dimensions.
const canvasPad = 1.25

// travelZoom bounds the zoom ramp and sets the fixed crop for pans.
const travelZoom = 1.25

// ClipSpec describes one clip synthesis call.
type ClipSpec struct {
	Duration float64 // seconds
	Effect   Effect
	Width    int
	Height   int
	FPS      int
	Quality  string
}

// Encoder abstracts the external media encoder so the pipeline can be
// exercised without ffmpeg on the path.
type Encoder interface {
	SynthesizeClip(ctx context.Context, imagePath, outputPath string, spec ClipSpec) error
	Concatenate(ctx context.Context, clipPaths []string, audioPath, outputPath string, totalSeconds float64, fps int, quality string, progress func(float64)) error
	ProbeDuration(ctx context.Context, mediaPath string) (float64, error)
}

// FFmpeg drives the ffmpeg/ffprobe binaries as subprocesses. Every
// invocation runs under a hard wall-clock timeout; exceeding it is a
// synthesis failure, never a silent partial clip.
type FFmpeg struct {
	clipTimeout   time.Duration
	concatTimeout time.Duration
}

func NewFFmpeg(clipTimeout, concatTimeout time.Duration) *FFmpeg {
	return &FFmpeg{
		clipTimeout:   clipTimeout,
		concatTimeout: concatTimeout,
	}
}

// SynthesizeClip renders a fixed-duration animated clip from a still image
// and a motion effect.
func (f *FFmpeg) SynthesizeClip(ctx context.Context, imagePath, outputPath string, spec ClipSpec) error {
	vf := buildClipFilter(spec)
	log.Printf("[FFmpeg] Synthesizing clip: effect=%s duration=%.2fs filter=%s", spec.Effect, spec.Duration, vf)

	args := []string{
		"-y",
		"-i", imagePath,
		"-vf", vf,
		"-c:v", "libx264",
	}
	args = append(args, qualityArgs(spec.Quality)...)
	args = append(args,
		"-pix_fmt", "yuv420p",
		"-an",
		outputPath,
	)

	clipCtx, cancel := context.WithTimeout(ctx, f.clipTimeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(clipCtx, "ffmpeg", args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(clipCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("clip synthesis timed out after %s (effect=%s)", f.clipTimeout, spec.Effect)
		}
		return fmt.Errorf("ffmpeg clip synthesis failed (effect=%s): %s", spec.Effect, diagnostic(stderr.String(), err))
	}

	return nil
}

// buildClipFilter constructs the -vf chain: upscale to an oversized canvas,
// then zoompan with a continuous-time transform, cropping back to exact
// target dimensions.
//
// Zoom ramps linearly 1.0 -> travelZoom (or the reverse); pans hold the
// crop at travelZoom and translate it linearly across the overflow.
func buildClipFilter(spec ClipSpec) string {
	frames := int(spec.Duration*float64(spec.FPS) + 0.5)
	if frames < 1 {
		frames = 1
	}

	padW := even(int(float64(spec.Width) * canvasPad))
	padH := even(int(float64(spec.Height) * canvasPad))

	centerX := "iw/2-(iw/zoom/2)"
	centerY := "ih/2-(ih/zoom/2)"

	var zExpr, xExpr, yExpr string
	switch spec.Effect {
	case EffectZoomIn:
		zExpr = fmt.Sprintf("1.0+%.2f*on/%d", travelZoom-1.0, frames)
		xExpr = centerX
		yExpr = centerY
	case EffectZoomOut:
		zExpr = fmt.Sprintf("%.2f-%.2f*on/%d", travelZoom, travelZoom-1.0, frames)
		xExpr = centerX
		yExpr = centerY
	case EffectPanHorizontal:
		zExpr = fmt.Sprintf("%.2f", travelZoom)
		xExpr = fmt.Sprintf("(iw-iw/zoom)*on/%d", frames)
		yExpr = centerY
	case EffectPanVertical:
		zExpr = fmt.Sprintf("%.2f", travelZoom)
		xExpr = centerX
		yExpr = fmt.Sprintf("(ih-ih/zoom)*on/%d", frames)
	default:
		zExpr = fmt.Sprintf("1.0+%.2f*on/%d", travelZoom-1.0, frames)
		xExpr = centerX
		yExpr = centerY
	}

	return fmt.Sprintf(
		"scale=%dx%d:flags=lanczos,zoompan=z='%s':x='%s':y='%s':d=%d:s=%dx%d:fps=%d",
		padW, padH,
		zExpr, xExpr, yExpr,
		frames,
		spec.Width, spec.Height,
		spec.FPS,
	)
}

// qualityArgs maps a quality tier to x264 speed/size options.
func qualityArgs(quality string) []string {
	switch quality {
	case models.QualityDraft:
		return []string{"-preset", "ultrafast", "-crf", "30"}
	case models.QualityHigh:
		return []string{"-preset", "medium", "-crf", "18"}
	default: // standard
		return []string{"-preset", "veryfast", "-crf", "23"}
	}
}

// Concatenate merges the ordered clips with the narration audio into one
// output. The clip list goes through the concat demuxer; video and audio
// are re-encoded together and -shortest trims to the shorter stream so a
// slightly mismatched total never leaves trailing silence or a frozen
// frame. audioPath may be empty for preview renders (no narration).
//
// progress receives this phase's own fractional completion (0..1), parsed
// from ffmpeg's -progress output against totalSeconds.
func (f *FFmpeg) Concatenate(ctx context.Context, clipPaths []string, audioPath, outputPath string, totalSeconds float64, fps int, quality string, progress func(float64)) error {
	if len(clipPaths) == 0 {
		return fmt.Errorf("no clips to concatenate")
	}

	listPath := filepath.Join(filepath.Dir(outputPath), "concat_list.txt")
	if err := writeConcatList(listPath, clipPaths); err != nil {
		return err
	}
	defer os.Remove(listPath)

	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
	}
	if audioPath != "" {
		args = append(args, "-i", audioPath, "-map", "0:v", "-map", "1:a")
	} else {
		args = append(args, "-an")
	}
	args = append(args, "-c:v", "libx264")
	args = append(args, qualityArgs(quality)...)
	if audioPath != "" {
		args = append(args, "-c:a", "aac", "-b:a", "192k", "-shortest")
	}
	args = append(args,
		"-r", strconv.Itoa(fps),
		"-pix_fmt", "yuv420p",
		"-progress", "pipe:1",
		"-nostats",
		outputPath,
	)

	concatCtx, cancel := context.WithTimeout(ctx, f.concatTimeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(concatCtx, "ffmpeg", args...)
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open progress pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg concatenate: %w", err)
	}

	// Drain -progress output, converting encoded time to a fraction.
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if sec, ok := parseProgressLine(scanner.Text()); ok && totalSeconds > 0 && progress != nil {
			frac := sec / totalSeconds
			if frac > 1 {
				frac = 1
			}
			progress(frac)
		}
	}

	if err := cmd.Wait(); err != nil {
		if errors.Is(concatCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("concatenation timed out after %s", f.concatTimeout)
		}
		return fmt.Errorf("ffmpeg concatenate failed: %s", diagnostic(stderr.String(), err))
	}

	if progress != nil {
		progress(1)
	}
	return nil
}

// writeConcatList writes the demuxer manifest: one durable, already
// duration-correct clip per line, in render order.
func writeConcatList(listPath string, clipPaths []string) error {
	var buf bytes.Buffer
	for _, p := range clipPaths {
		fmt.Fprintf(&buf, "file '%s'\n", escapeConcatPath(p))
	}
	if err := os.WriteFile(listPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write concat list: %w", err)
	}
	return nil
}

// escapeConcatPath escapes single quotes for the concat demuxer's quoted
// file syntax.
func escapeConcatPath(path string) string {
	return strings.ReplaceAll(path, "'", `'\''`)
}

// parseProgressLine extracts the encoded position in seconds from one line
// of ffmpeg -progress output. Despite the name, out_time_ms is in
// microseconds.
func parseProgressLine(line string) (float64, bool) {
	value, ok := strings.CutPrefix(strings.TrimSpace(line), "out_time_ms=")
	if !ok {
		return 0, false
	}
	us, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || us < 0 {
		return 0, false
	}
	return float64(us) / 1e6, true
}

// ProbeDuration returns a media file's duration in seconds via ffprobe.
func (f *FFmpeg) ProbeDuration(ctx context.Context, mediaPath string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		mediaPath,
	}

	cmd := exec.CommandContext(ctx, "ffprobe", args...)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	var durationSec float64
	if _, err := fmt.Sscanf(strings.TrimSpace(string(output)), "%f", &durationSec); err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}

	return durationSec, nil
}

// diagnostic combines the exec error with the tail of the encoder's stderr,
// bounded so it stays readable as a job error message.
func diagnostic(stderr string, err error) string {
	const maxTail = 400
	tail := strings.TrimSpace(stderr)
	if len(tail) > maxTail {
		tail = "..." + tail[len(tail)-maxTail:]
	}
	if tail == "" {
		return err.Error()
	}
	return fmt.Sprintf("%v: %s", err, tail)
}

// even rounds down to the nearest even value; x264 requires even frame
// dimensions.
func even(v int) int {
	return v &^ 1
}
