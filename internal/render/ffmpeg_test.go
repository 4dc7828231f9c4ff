package render

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"storyreel/internal/models"
)

func TestBuildClipFilterEffects(t *testing.T) {
	base := ClipSpec{Duration: 4, Width: 1080, Height: 1920, FPS: 30, Quality: models.QualityStandard}

	tests := []struct {
		effect   Effect
		contains []string
		excludes []string
	}{
		{EffectZoomIn, []string{"z='1.0+0.25*on/120'", "iw/2-(iw/zoom/2)"}, nil},
		{EffectZoomOut, []string{"z='1.25-0.25*on/120'"}, nil},
		{EffectPanHorizontal, []string{"z='1.25'", "x='(iw-iw/zoom)*on/120'"}, []string{"(ih-ih/zoom)*on"}},
		{EffectPanVertical, []string{"z='1.25'", "y='(ih-ih/zoom)*on/120'"}, []string{"(iw-iw/zoom)*on"}},
	}

	for _, tt := range tests {
		spec := base
		spec.Effect = tt.effect
		filter := buildClipFilter(spec)

		for _, want := range tt.contains {
			if !strings.Contains(filter, want) {
				t.Errorf("%s: filter %q missing %q", tt.effect, filter, want)
			}
		}
		for _, unwanted := range tt.excludes {
			if strings.Contains(filter, unwanted) {
				t.Errorf("%s: filter %q unexpectedly contains %q", tt.effect, filter, unwanted)
			}
		}
	}
}

func TestBuildClipFilterOversizedCanvas(t *testing.T) {
	spec := ClipSpec{Duration: 2, Effect: EffectZoomIn, Width: 1080, Height: 1920, FPS: 30}
	filter := buildClipFilter(spec)

	// 1080*1.25=1350, 1920*1.25=2400 — both even, so used as-is.
	if !strings.Contains(filter, "scale=1350x2400") {
		t.Errorf("filter %q missing oversized scale", filter)
	}
	if !strings.Contains(filter, "s=1080x1920") {
		t.Errorf("filter %q missing exact target crop size", filter)
	}
}

func TestBuildClipFilterMinimumFrames(t *testing.T) {
	spec := ClipSpec{Duration: 0, Effect: EffectZoomIn, Width: 640, Height: 360, FPS: 30}
	filter := buildClipFilter(spec)
	if !strings.Contains(filter, "d=1") {
		t.Errorf("filter %q should clamp to at least one frame", filter)
	}
}

func TestQualityArgs(t *testing.T) {
	tests := []struct {
		quality string
		preset  string
		crf     string
	}{
		{models.QualityDraft, "ultrafast", "30"},
		{models.QualityStandard, "veryfast", "23"},
		{models.QualityHigh, "medium", "18"},
		{"", "veryfast", "23"}, // unknown falls back to standard
	}

	for _, tt := range tests {
		args := qualityArgs(tt.quality)
		joined := strings.Join(args, " ")
		if !strings.Contains(joined, tt.preset) || !strings.Contains(joined, tt.crf) {
			t.Errorf("quality %q: got %v, want preset=%s crf=%s", tt.quality, args, tt.preset, tt.crf)
		}
	}
}

func TestParseProgressLine(t *testing.T) {
	tests := []struct {
		line    string
		wantSec float64
		wantOK  bool
	}{
		{"out_time_ms=5000000", 5.0, true}, // out_time_ms is microseconds
		{"out_time_ms=500000", 0.5, true},
		{"frame=120", 0, false},
		{"out_time_ms=bogus", 0, false},
		{"out_time_ms=-1", 0, false},
		{"  out_time_ms=1000000  ", 1.0, true},
	}

	for _, tt := range tests {
		sec, ok := parseProgressLine(tt.line)
		if ok != tt.wantOK || sec != tt.wantSec {
			t.Errorf("parseProgressLine(%q) = (%v, %v), want (%v, %v)", tt.line, sec, ok, tt.wantSec, tt.wantOK)
		}
	}
}

func TestWriteConcatList(t *testing.T) {
	dir := t.TempDir()
	listPath := filepath.Join(dir, "concat_list.txt")

	clips := []string{
		filepath.Join(dir, "clip_0.mp4"),
		filepath.Join(dir, "clip_1.mp4"),
		filepath.Join(dir, "it's.mp4"),
	}
	if err := writeConcatList(listPath, clips); err != nil {
		t.Fatalf("failed to write concat list: %v", err)
	}

	data, err := os.ReadFile(listPath)
	if err != nil {
		t.Fatalf("failed to read concat list: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], "file '") {
		t.Errorf("unexpected list format: %q", lines[0])
	}
	if !strings.Contains(lines[2], `'\''`) {
		t.Errorf("single quote not escaped: %q", lines[2])
	}
}

func TestDiagnosticTrimsTail(t *testing.T) {
	long := strings.Repeat("x", 2000)
	msg := diagnostic(long, os.ErrInvalid)
	if len(msg) > 500 {
		t.Errorf("diagnostic too long: %d chars", len(msg))
	}
	if !strings.Contains(msg, "...") {
		t.Errorf("expected truncation marker in %q", msg)
	}
}

func TestEven(t *testing.T) {
	if even(1351) != 1350 || even(1350) != 1350 {
		t.Error("even rounding broken")
	}
}
