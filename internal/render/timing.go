package render

import (
	"errors"

	"storyreel/internal/models"
)

// ErrNoScenes is returned when a project has nothing to render. Fatal for
// the job; resubmission is an explicit new enqueue.
var ErrNoScenes = errors.New("no renderable scenes")

const (
	// minSceneSeconds floors every allocated duration. Clips shorter than
	// this produce single-frame flashes that read as glitches.
	minSceneSeconds = 0.8

	// fallbackSceneSeconds is used when a scene carries no usable timing
	// signal at all.
	fallbackSceneSeconds = 4.0

	// millisThreshold separates seconds from milliseconds in upstream time
	// values. Script tooling is inconsistent about units; no scene plays
	// for over 1000 seconds, so anything above is milliseconds.
	millisThreshold = 1000.0
)

// AllocateTimings computes one duration in seconds per scene, in scene
// order. Raw durations come from explicit start/end timestamps, then the
// estimated-duration field, then a fixed fallback. When audioSeconds is
// positive, every raw duration is scaled uniformly so the clips sum to the
// narration length — per-scene drift would otherwise accumulate and the
// tracks would not terminate together. The minimum floor is re-applied
// after scaling.
func AllocateTimings(scenes []models.Scene, audioSeconds float64) ([]float64, error) {
	if len(scenes) == 0 {
		return nil, ErrNoScenes
	}

	durations := make([]float64, len(scenes))
	var rawSum float64
	for i, scene := range scenes {
		d := rawDuration(scene)
		if d < minSceneSeconds {
			d = minSceneSeconds
		}
		durations[i] = d
		rawSum += d
	}

	if audioSeconds > 0 && rawSum > 0 {
		scale := audioSeconds / rawSum
		for i := range durations {
			durations[i] *= scale
			if durations[i] < minSceneSeconds {
				durations[i] = minSceneSeconds
			}
		}
	}

	return durations, nil
}

// rawDuration derives a scene's unscaled duration in seconds, in priority
// order: explicit timestamps, estimated duration, fixed fallback.
func rawDuration(scene models.Scene) float64 {
	if scene.StartTime != nil && scene.EndTime != nil {
		start := normalizeSeconds(*scene.StartTime)
		end := normalizeSeconds(*scene.EndTime)
		if end > start {
			return end - start
		}
	}
	if scene.EstimatedDuration != nil && *scene.EstimatedDuration > 0 {
		return normalizeSeconds(*scene.EstimatedDuration)
	}
	return fallbackSceneSeconds
}

// normalizeSeconds converts a possibly-millisecond value to seconds.
func normalizeSeconds(v float64) float64 {
	if v > millisThreshold {
		return v / 1000.0
	}
	return v
}
