package render

import (
	"math"
	"testing"

	"storyreel/internal/models"
)

func f64(v float64) *float64 { return &v }

func scenesWithEstimates(estimates ...float64) []models.Scene {
	scenes := make([]models.Scene, len(estimates))
	for i, e := range estimates {
		scenes[i] = models.Scene{SceneNumber: i + 1, EstimatedDuration: f64(e)}
	}
	return scenes
}

func TestAllocateScalesToAudioDuration(t *testing.T) {
	durations, err := AllocateTimings(scenesWithEstimates(4, 4, 4), 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, d := range durations {
		if math.Abs(d-3.0) > 1e-9 {
			t.Errorf("scene %d: got %v, want 3.0", i, d)
		}
	}

	var sum float64
	for _, d := range durations {
		sum += d
	}
	if math.Abs(sum-9.0) > 1e-9 {
		t.Errorf("sum = %v, want 9.0", sum)
	}
}

func TestAllocateSumMatchesAudio(t *testing.T) {
	cases := [][]float64{
		{2, 7, 3.5},
		{1, 1, 1, 1, 1},
		{10},
		{4.2, 8.8, 2.1, 6.6},
	}

	for _, estimates := range cases {
		const audio = 42.5
		durations, err := AllocateTimings(scenesWithEstimates(estimates...), audio)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var sum, clampExcess float64
		for _, d := range durations {
			sum += d
			if d == minSceneSeconds {
				clampExcess += minSceneSeconds
			}
		}
		// Sum equals the audio duration unless floor-clamping pushed it over.
		if sum < audio-1e-6 || sum > audio+clampExcess+1e-6 {
			t.Errorf("estimates %v: sum = %v, audio = %v", estimates, sum, audio)
		}
	}
}

func TestAllocateIdentityWithoutAudio(t *testing.T) {
	durations, err := AllocateTimings(scenesWithEstimates(2, 5, 3), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []float64{2, 5, 3}
	for i, d := range durations {
		if math.Abs(d-want[i]) > 1e-9 {
			t.Errorf("scene %d: got %v, want %v", i, d, want[i])
		}
	}
}

func TestAllocateFloorAfterScaling(t *testing.T) {
	// Scaling down to a very short track would make every clip degenerate;
	// the floor must win.
	durations, err := AllocateTimings(scenesWithEstimates(10, 10), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, d := range durations {
		if d < minSceneSeconds {
			t.Errorf("scene %d: %v below floor %v", i, d, minSceneSeconds)
		}
	}
}

func TestAllocateTimestampsTakePriority(t *testing.T) {
	scenes := []models.Scene{
		{SceneNumber: 1, StartTime: f64(0), EndTime: f64(6), EstimatedDuration: f64(2)},
	}
	durations, err := AllocateTimings(scenes, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if durations[0] != 6 {
		t.Errorf("got %v, want 6 (timestamps over estimate)", durations[0])
	}
}

func TestAllocateInvertedTimestampsFallBack(t *testing.T) {
	scenes := []models.Scene{
		{SceneNumber: 1, StartTime: f64(8), EndTime: f64(3), EstimatedDuration: f64(5)},
	}
	durations, err := AllocateTimings(scenes, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if durations[0] != 5 {
		t.Errorf("got %v, want 5 (estimate when end <= start)", durations[0])
	}
}

func TestAllocateMillisecondNormalization(t *testing.T) {
	scenes := []models.Scene{
		{SceneNumber: 1, EstimatedDuration: f64(4000)}, // 4000ms = 4s
		{SceneNumber: 2, StartTime: f64(2000), EndTime: f64(5000)}, // 3s
	}
	durations, err := AllocateTimings(scenes, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if durations[0] != 4 {
		t.Errorf("scene 1: got %v, want 4", durations[0])
	}
	if durations[1] != 3 {
		t.Errorf("scene 2: got %v, want 3", durations[1])
	}
}

func TestAllocateFallbackDuration(t *testing.T) {
	scenes := []models.Scene{{SceneNumber: 1}}
	durations, err := AllocateTimings(scenes, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if durations[0] != fallbackSceneSeconds {
		t.Errorf("got %v, want fallback %v", durations[0], fallbackSceneSeconds)
	}
}

func TestAllocateEmptySceneList(t *testing.T) {
	if _, err := AllocateTimings(nil, 10); err != ErrNoScenes {
		t.Errorf("got %v, want ErrNoScenes", err)
	}
}
