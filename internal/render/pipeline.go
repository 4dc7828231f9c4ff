package render

import (
	"context"
	"fmt"
	"log"
	"os"
	"path"

	"github.com/google/uuid"

	"storyreel/internal/models"
)

// minOutputBytes is the sanity threshold for the concatenated output. A
// near-empty file after a reported encoder success indicates a silent
// internal encoder fault.
const minOutputBytes = 10 * 1024

// Overall progress bands. The claim itself sets a small nonzero value;
// per-scene work fills the widest band, concatenation is the last heavy
// phase before verification.
const (
	progressTimingDone  = 10
	progressScenesDone  = 75
	progressConcatDone  = 95
	progressPublishDone = 100
)

// SceneProvider supplies a project's ordered scenes and narration track.
type SceneProvider interface {
	ScenesForProject(ctx context.Context, projectID uuid.UUID) ([]models.Scene, error)
	AudioForProject(ctx context.Context, projectID uuid.UUID) (*models.AudioTrack, error)
}

// ObjectStore is the byte-addressable surface for reading the narration
// file and publishing the final output.
type ObjectStore interface {
	DownloadToFile(ctx context.Context, storagePath, localPath string) error
	UploadFile(ctx context.Context, storagePath, localPath, contentType string) error
	GetPublicURL(storagePath string) string
}

// Result is the metadata of a successfully published render.
type Result struct {
	StoragePath string
	VideoURL    string
	FileSize    int64
}

// Pipeline runs one job end to end: timing allocation, per-scene
// normalization and clip synthesis, concatenation, output verification,
// and publishing. Stages inside a job are sequential — the encoder is
// CPU/IO heavy and clips must land in scene order.
type Pipeline struct {
	scenes     SceneProvider
	objects    ObjectStore
	encoder    Encoder
	normalizer *Normalizer
	tempDir    string
}

func NewPipeline(scenes SceneProvider, objects ObjectStore, encoder Encoder, normalizer *Normalizer, tempDir string) *Pipeline {
	return &Pipeline{
		scenes:     scenes,
		objects:    objects,
		encoder:    encoder,
		normalizer: normalizer,
		tempDir:    tempDir,
	}
}

// Render produces and publishes the video for one job. progress receives
// monotonically increasing overall percentages. The job workspace is
// removed on every exit path; the only surviving artifact is the published
// output.
func (p *Pipeline) Render(ctx context.Context, jobID, projectID uuid.UUID, settings models.RenderSettings, progress func(int)) (*Result, error) {
	ws, err := NewWorkspace(p.tempDir, jobID)
	if err != nil {
		return nil, err
	}
	defer ws.Cleanup()

	scenes, err := p.scenes.ScenesForProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load scenes: %w", err)
	}
	scenes = filterSceneRange(scenes, settings.SceneRange)
	if len(scenes) == 0 {
		return nil, ErrNoScenes
	}

	audio, err := p.scenes.AudioForProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load audio track: %w", err)
	}

	// Absent audio is a preview render: durations stay raw and the output
	// is silent. A present but unreadable track is fatal.
	audioPath := ""
	var audioSeconds float64
	if audio != nil {
		audioPath = ws.Path("narration.mp3")
		if err := p.objects.DownloadToFile(ctx, audio.StoragePath, audioPath); err != nil {
			return nil, fmt.Errorf("missing audio: %w", err)
		}
		audioSeconds = audio.DurationSeconds
		if audioSeconds <= 0 {
			audioSeconds, err = p.encoder.ProbeDuration(ctx, audioPath)
			if err != nil {
				return nil, fmt.Errorf("failed to probe audio duration: %w", err)
			}
		}
	}

	durations, err := AllocateTimings(scenes, audioSeconds)
	if err != nil {
		return nil, err
	}
	progress(progressTimingDone)

	width, height := settings.Dimensions()

	// Per-scene: normalize the image, pick its motion, synthesize the clip.
	clipPaths := make([]string, len(scenes))
	var videoSeconds float64
	for i, scene := range scenes {
		imagePath := ws.Path(fmt.Sprintf("scene_%03d.png", i))
		orientation, err := p.normalizer.NormalizeToFile(ctx, scene, width, height, imagePath)
		if err != nil {
			return nil, err
		}

		effect := SelectEffect(i, orientation)
		clipPath := ws.Path(fmt.Sprintf("clip_%03d.mp4", i))
		spec := ClipSpec{
			Duration: durations[i],
			Effect:   effect,
			Width:    width,
			Height:   height,
			FPS:      settings.FPS,
			Quality:  settings.Quality,
		}
		if err := p.encoder.SynthesizeClip(ctx, imagePath, clipPath, spec); err != nil {
			return nil, fmt.Errorf("scene %d: %w", scene.SceneNumber, err)
		}

		clipPaths[i] = clipPath
		videoSeconds += durations[i]
		progress(progressTimingDone + (i+1)*(progressScenesDone-progressTimingDone)/len(scenes))
	}

	// Concatenation progress is remapped into the 75-95 band.
	totalSeconds := videoSeconds
	if audioSeconds > 0 && audioSeconds < totalSeconds {
		totalSeconds = audioSeconds
	}
	outputPath := ws.Path("output.mp4")
	concatProgress := func(frac float64) {
		progress(progressScenesDone + int(frac*float64(progressConcatDone-progressScenesDone)))
	}
	if err := p.encoder.Concatenate(ctx, clipPaths, audioPath, outputPath, totalSeconds, settings.FPS, settings.Quality, concatProgress); err != nil {
		return nil, err
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return nil, fmt.Errorf("output file missing after encode: %w", err)
	}
	if info.Size() < minOutputBytes {
		return nil, fmt.Errorf("output file implausibly small (%d bytes)", info.Size())
	}

	storagePath := path.Join("renders", projectID.String(), jobID.String()+".mp4")
	if err := p.objects.UploadFile(ctx, storagePath, outputPath, "video/mp4"); err != nil {
		return nil, fmt.Errorf("failed to publish video: %w", err)
	}

	url := p.objects.GetPublicURL(storagePath)
	progress(progressPublishDone)
	log.Printf("[Pipeline] Job %s published %s (%d bytes)", jobID, storagePath, info.Size())

	return &Result{
		StoragePath: storagePath,
		VideoURL:    url,
		FileSize:    info.Size(),
	}, nil
}

// filterSceneRange keeps scenes whose number falls inside the inclusive
// range; a nil range keeps everything.
func filterSceneRange(scenes []models.Scene, r *models.SceneRange) []models.Scene {
	if r == nil {
		return scenes
	}
	filtered := make([]models.Scene, 0, len(scenes))
	for _, s := range scenes {
		if s.SceneNumber >= r.Start && s.SceneNumber <= r.End {
			filtered = append(filtered, s)
		}
	}
	return filtered
}
