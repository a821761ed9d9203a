package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"lyrahub/internal/domain"
	"lyrahub/internal/learning"
	"lyrahub/internal/validation"
)

type goalRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	TargetDate  string `json:"targetDate" validate:"omitempty,datetime=2006-01-02"`
	Completed   bool   `json:"completed"`
}

type planRequest struct {
	SelectedAreas domain.SelectedAreas `json:"selectedAreas"`
	// CustomGoals replaces the stored goals when present.
	CustomGoals []goalRequest `json:"customGoals" validate:"omitempty,max=50,dive"`
}

type moduleUpdateRequest struct {
	Area        string `json:"area" validate:"required,oneof=technicalSkills behavioralQuestions practicalProjects"`
	ModuleIndex *int   `json:"moduleIndex" validate:"required,gte=0"`
	Completed   bool   `json:"completed"`
	ProjectURL  string `json:"projectUrl" validate:"omitempty,url,max=2048"`
}

type learningPathResponse struct {
	Success      bool                 `json:"success"`
	Message      string               `json:"message,omitempty"`
	LearningPath *domain.LearningPath `json:"learningPath"`
}

type learningProgressResponse struct {
	Success         bool              `json:"success"`
	HasLearningPath bool              `json:"hasLearningPath"`
	Progress        *learning.Summary `json:"progress"`
}

// handleGetLearningPath returns the user's plan, creating an empty one on
// first access.
func (s *Server) handleGetLearningPath(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFrom(ctx)

	path, err := s.store.GetLearningPath(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		empty := learning.Empty(userID, s.now().UTC())
		path, err = &empty, s.store.SaveLearningPath(ctx, &empty)
	}

	if err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	respondJSON(ctx, w, s.log, http.StatusOK, learningPathResponse{Success: true, LearningPath: path})
}

func (s *Server) handlePlanLearningPath(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFrom(ctx)
	now := s.now().UTC()

	var req planRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	if err := validation.Struct(req); err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	path, err := s.store.GetLearningPath(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		empty := learning.Empty(userID, now)
		path, err = &empty, nil
	}

	if err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	if err = learning.Plan(path, req.SelectedAreas, goalsFromRequest(req.CustomGoals), now); err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	if err = s.store.SaveLearningPath(ctx, path); err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	respondJSON(ctx, w, s.log, http.StatusOK, learningPathResponse{
		Success:      true,
		Message:      "Learning path created successfully!",
		LearningPath: path,
	})
}

func (s *Server) handleUpdateLearningModule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req moduleUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	req.ProjectURL = strings.TrimSpace(req.ProjectURL)

	if err := validation.Struct(req); err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	path, err := s.store.GetLearningPath(ctx, userIDFrom(ctx))
	if err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	err = learning.SetModule(path, domain.LearningArea(req.Area), *req.ModuleIndex, req.Completed, req.ProjectURL, s.now().UTC())
	if err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	if err = s.store.SaveLearningPath(ctx, path); err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	respondJSON(ctx, w, s.log, http.StatusOK, learningPathResponse{
		Success:      true,
		Message:      "Progress updated successfully!",
		LearningPath: path,
	})
}

func (s *Server) handleLearningProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	path, err := s.store.GetLearningPath(ctx, userIDFrom(ctx))
	if errors.Is(err, domain.ErrNotFound) {
		respondJSON(ctx, w, s.log, http.StatusOK, learningProgressResponse{Success: true})
		return
	}

	if err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	summary := learning.Summarize(*path)

	respondJSON(ctx, w, s.log, http.StatusOK, learningProgressResponse{
		Success:         true,
		HasLearningPath: true,
		Progress:        &summary,
	})
}

// goalsFromRequest keeps nil for an absent list so stored goals survive.
func goalsFromRequest(reqs []goalRequest) []domain.LearningGoal {
	if reqs == nil {
		return nil
	}

	goals := make([]domain.LearningGoal, 0, len(reqs))

	for _, g := range reqs {
		goal := domain.LearningGoal{
			Title:       strings.TrimSpace(g.Title),
			Description: strings.TrimSpace(g.Description),
			Completed:   g.Completed,
		}

		if g.TargetDate != "" {
			if d, err := time.Parse(dateLayout, g.TargetDate); err == nil {
				goal.TargetDate = &d
			}
		}

		goals = append(goals, goal)
	}

	return goals
}
