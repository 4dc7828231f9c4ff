package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"storyreel/internal/models"
)

// ScenesForProject returns a project's scenes ordered by scene number.
// Scene rows are written by the generation side; the render pipeline only
// reads them.
func (db *DB) ScenesForProject(ctx context.Context, projectID uuid.UUID) ([]models.Scene, error) {
	query := `
		SELECT
			id, project_id, scene_number, image_data, image_url,
			start_time, end_time, estimated_duration
		FROM scenes
		WHERE project_id = $1
		ORDER BY scene_number
	`

	rows, err := db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenes: %w", err)
	}
	defer rows.Close()

	var scenes []models.Scene
	for rows.Next() {
		var s models.Scene
		var imageData, imageURL sql.NullString
		if err := rows.Scan(
			&s.ID, &s.ProjectID, &s.SceneNumber, &imageData, &imageURL,
			&s.StartTime, &s.EndTime, &s.EstimatedDuration,
		); err != nil {
			return nil, fmt.Errorf("failed to scan scene: %w", err)
		}
		s.ImageData = imageData.String
		s.ImageURL = imageURL.String
		scenes = append(scenes, s)
	}

	return scenes, rows.Err()
}

// AudioForProject returns the project's narration track, or nil when the
// project has none (preview renders proceed without narration).
func (db *DB) AudioForProject(ctx context.Context, projectID uuid.UUID) (*models.AudioTrack, error) {
	query := `
		SELECT project_id, storage_path, duration_seconds
		FROM audio_tracks
		WHERE project_id = $1
	`

	track := &models.AudioTrack{}
	err := db.QueryRowContext(ctx, query, projectID).Scan(
		&track.ProjectID, &track.StoragePath, &track.DurationSeconds,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get audio track: %w", err)
	}

	return track, nil
}
