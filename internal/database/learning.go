package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"lyrahub/internal/domain"

	"github.com/goccy/go-json"
)

// GetLearningPath returns the user's plan or domain.ErrNotFound.
func (d *Database) GetLearningPath(ctx context.Context, userID string) (*domain.LearningPath, error) {
	query := `select user_id, selected_areas, progress, custom_goals, overall_progress, current_level,
		last_active_at, created_at, updated_at
	from learning_paths
	where user_id = ?`

	var (
		p                             domain.LearningPath
		areas, progress, goals, level string
	)

	err := d.db.QueryRowContext(ctx, query, userID).Scan(&p.UserID, &areas, &progress, &goals,
		&p.OverallProgress, &level, &p.LastActiveAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}

		return nil, fmt.Errorf("scan row: %w", err)
	}

	p.CurrentLevel = domain.LearningLevel(level)

	if err = json.Unmarshal([]byte(areas), &p.SelectedAreas); err != nil {
		return nil, fmt.Errorf("unmarshal selected areas (user = %s): %w", userID, err)
	}

	if err = json.Unmarshal([]byte(progress), &p.Progress); err != nil {
		return nil, fmt.Errorf("unmarshal progress (user = %s): %w", userID, err)
	}

	if err = json.Unmarshal([]byte(goals), &p.CustomGoals); err != nil {
		return nil, fmt.Errorf("unmarshal custom goals (user = %s): %w", userID, err)
	}

	return &p, nil
}

// SaveLearningPath inserts or replaces the user's plan. CreatedAt of an
// existing plan is kept.
func (d *Database) SaveLearningPath(ctx context.Context, path *domain.LearningPath) error {
	areas, err := json.Marshal(path.SelectedAreas)
	if err != nil {
		return fmt.Errorf("marshal selected areas: %w", err)
	}

	progress, err := json.Marshal(path.Progress)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}

	goals := path.CustomGoals
	if goals == nil {
		goals = []domain.LearningGoal{}
	}

	goalsJSON, err := json.Marshal(goals)
	if err != nil {
		return fmt.Errorf("marshal custom goals: %w", err)
	}

	query := `insert into learning_paths (user_id, selected_areas, progress, custom_goals,
		overall_progress, current_level, last_active_at, created_at, updated_at)
	values (?, ?, ?, ?, ?, ?, ?, ?, ?)
	on conflict (user_id) do update set
		selected_areas = excluded.selected_areas,
		progress = excluded.progress,
		custom_goals = excluded.custom_goals,
		overall_progress = excluded.overall_progress,
		current_level = excluded.current_level,
		last_active_at = excluded.last_active_at,
		updated_at = excluded.updated_at`

	_, err = d.db.ExecContext(ctx, query,
		path.UserID, string(areas), string(progress), string(goalsJSON),
		path.OverallProgress, string(path.CurrentLevel),
		path.LastActiveAt.UTC(), path.CreatedAt.UTC(), path.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("save learning path (user = %s): %w", path.UserID, err)
	}

	return nil
}
