package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Enums

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status is a final state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// VideoFormat selects the output orientation. Portrait is the default:
// narrated story videos are published to vertical-first platforms.
type VideoFormat string

const (
	FormatPortrait  VideoFormat = "portrait"
	FormatLandscape VideoFormat = "landscape"
)

// Quality tiers map to encoder speed/size trade-offs (see render package).
const (
	QualityDraft    = "draft"
	QualityStandard = "standard"
	QualityHigh     = "high"
)

// SceneRange limits a render to an inclusive range of scene numbers.
type SceneRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// RenderSettings controls one render job. Zero values are filled in by
// ApplyDefaults before the job row is written, so the persisted settings
// are always complete.
type RenderSettings struct {
	Resolution string      `json:"resolution,omitempty"` // "480p", "720p", "1080p"
	FPS        int         `json:"fps,omitempty"`
	Quality    string      `json:"quality,omitempty"` // "draft", "standard", "high"
	Format     VideoFormat `json:"format,omitempty"`
	SceneRange *SceneRange `json:"scene_range,omitempty"`
}

// ApplyDefaults fills unset fields from service-level defaults.
func (s *RenderSettings) ApplyDefaults(resolution string, fps int, quality string) {
	if s.Resolution == "" {
		s.Resolution = resolution
	}
	if s.FPS <= 0 {
		s.FPS = fps
	}
	if s.Quality == "" {
		s.Quality = quality
	}
	if s.Format == "" {
		s.Format = FormatPortrait
	}
}

// Validate rejects settings that would produce an unusable render.
func (s RenderSettings) Validate() error {
	switch s.Resolution {
	case "", "480p", "720p", "1080p":
	default:
		return fmt.Errorf("unknown resolution %q", s.Resolution)
	}
	switch s.Quality {
	case "", QualityDraft, QualityStandard, QualityHigh:
	default:
		return fmt.Errorf("unknown quality %q", s.Quality)
	}
	switch s.Format {
	case "", FormatPortrait, FormatLandscape:
	default:
		return fmt.Errorf("unknown format %q", s.Format)
	}
	if s.SceneRange != nil && (s.SceneRange.Start < 1 || s.SceneRange.End < s.SceneRange.Start) {
		return fmt.Errorf("invalid scene range %d-%d", s.SceneRange.Start, s.SceneRange.End)
	}
	return nil
}

// Dimensions returns the output pixel size for the configured resolution
// and format. Resolutions are named by their short edge with a 16:9 long
// edge; portrait swaps width and height.
func (s RenderSettings) Dimensions() (width, height int) {
	switch s.Resolution {
	case "480p":
		width, height = 854, 480
	case "720p":
		width, height = 1280, 720
	default: // 1080p
		width, height = 1920, 1080
	}
	if s.Format != FormatLandscape {
		width, height = height, width
	}
	return width, height
}

// Value implements driver.Valuer so settings persist as a JSONB column.
func (s RenderSettings) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner for the JSONB settings column.
func (s *RenderSettings) Scan(value interface{}) error {
	if value == nil {
		*s = RenderSettings{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("settings: expected []byte, got %T", value)
	}
	return json.Unmarshal(bytes, s)
}

// Models

// VideoJob is one durable render request. Only the scheduler mutates a
// processing job; once the status is terminal, exactly one of VideoURL
// and ErrorMessage is set.
type VideoJob struct {
	ID           uuid.UUID      `json:"id"`
	ProjectID    uuid.UUID      `json:"project_id"`
	Status       JobStatus      `json:"status"`
	Progress     int            `json:"progress"` // 0-100
	Settings     RenderSettings `json:"settings"`
	VideoURL     *string        `json:"video_url,omitempty"`
	FileSize     *int64         `json:"file_size,omitempty"`
	ErrorMessage *string        `json:"error,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// Scene is one still-image unit, ordered by SceneNumber (1-based).
// The image may arrive in any of three forms: inline data (base64 or a
// data URI), a storage-root relative path, or a remote URL. Time fields
// may be expressed in seconds or milliseconds upstream; the timing
// allocator normalizes them.
type Scene struct {
	ID                uuid.UUID `json:"id"`
	ProjectID         uuid.UUID `json:"project_id"`
	SceneNumber       int       `json:"scene_number"`
	ImageData         string    `json:"image_data,omitempty"`
	ImageURL          string    `json:"image_url,omitempty"`
	StartTime         *float64  `json:"start_time,omitempty"`
	EndTime           *float64  `json:"end_time,omitempty"`
	EstimatedDuration *float64  `json:"estimated_duration,omitempty"`
}

// AudioTrack is the narration for a project. DurationSeconds is probed at
// generation time and is authoritative for total video length.
type AudioTrack struct {
	ProjectID       uuid.UUID `json:"project_id"`
	StoragePath     string    `json:"storage_path"`
	DurationSeconds float64   `json:"duration_seconds"`
}

// DTOs for API responses

type CreateRenderRequest struct {
	ProjectID uuid.UUID       `json:"project_id"`
	Settings  *RenderSettings `json:"settings,omitempty"`
}

type CreateRenderResponse struct {
	JobID  uuid.UUID `json:"job_id"`
	Status JobStatus `json:"status"`
}

// JobStatusResponse is the poll surface: callers poll until Status is
// terminal.
type JobStatusResponse struct {
	JobID    uuid.UUID `json:"job_id"`
	Status   JobStatus `json:"status"`
	Progress int       `json:"progress"`
	VideoURL *string   `json:"video_url,omitempty"`
	FileSize *int64    `json:"file_size,omitempty"`
	Error    *string   `json:"error,omitempty"`
}
