// Package learning builds study plans from the module catalogue and keeps
// their progress counters and level in step with module completion.
package learning

import (
	"fmt"
	"time"

	"lyrahub/internal/domain"
)

const minSelectedAreas = 2

var catalogue = map[domain.LearningArea][]string{
	domain.AreaTechnicalSkills: {
		"JavaScript Fundamentals",
		"React Basics",
		"Node.js Introduction",
		"Database Design",
		"API Development",
		"Testing Fundamentals",
		"Version Control (Git)",
		"Cloud Computing Basics",
		"Security Best Practices",
		"Performance Optimization",
		"Data Structures",
		"Algorithms",
		"System Design",
		"DevOps Fundamentals",
		"Microservices",
		"Machine Learning Basics",
		"Mobile Development",
		"Frontend Frameworks",
		"Backend Architecture",
		"Project Management Tools",
	},
	domain.AreaBehavioralQuestions: {
		"Leadership Scenarios",
		"Team Collaboration",
		"Problem Solving",
		"Communication Skills",
		"Conflict Resolution",
		"Time Management",
		"Adaptability",
		"Decision Making",
		"Customer Focus",
		"Innovation Thinking",
		"Stress Management",
		"Goal Setting",
		"Feedback Reception",
		"Cultural Awareness",
		"Ethical Dilemmas",
	},
	domain.AreaPracticalProjects: {
		"Personal Portfolio Website",
		"Task Management App",
		"E-commerce Platform",
		"Data Visualization Dashboard",
		"Mobile App Development",
		"API Integration Project",
		"Database Management System",
		"Machine Learning Model",
		"Cloud Deployment Project",
		"Open Source Contribution",
	},
}

// Empty is the plan a user has before choosing any area.
func Empty(userID string, now time.Time) domain.LearningPath {
	return domain.LearningPath{
		UserID:       userID,
		CustomGoals:  []domain.LearningGoal{},
		CurrentLevel: domain.LevelBeginner,
		LastActiveAt: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Plan resets path to fresh catalogue modules for the selected areas. Goals
// are replaced only when given.
func Plan(path *domain.LearningPath, areas domain.SelectedAreas, goals []domain.LearningGoal, now time.Time) error {
	if areas.Count() < minSelectedAreas {
		return fmt.Errorf("%w: please select at least two learning areas", domain.ErrInvalidInput)
	}

	path.SelectedAreas = areas
	path.Progress = domain.LearningProgress{}

	for _, area := range domain.LearningAreas {
		progress := path.Progress.Area(area)
		progress.Modules = []domain.LearningModule{}

		if !areas.Has(area) {
			continue
		}

		for _, name := range catalogue[area] {
			progress.Modules = append(progress.Modules, domain.LearningModule{Name: name})
		}

		progress.Total = len(progress.Modules)
	}

	if goals != nil {
		path.CustomGoals = goals
	}

	if path.CustomGoals == nil {
		path.CustomGoals = []domain.LearningGoal{}
	}

	path.LastActiveAt = now
	path.UpdatedAt = now
	recompute(path)

	return nil
}

// SetModule marks one module done or not done. A project URL is kept only on
// completed practical projects.
func SetModule(
	path *domain.LearningPath,
	area domain.LearningArea,
	index int,
	completed bool,
	projectURL string,
	now time.Time,
) error {
	progress := path.Progress.Area(area)
	if progress == nil {
		return fmt.Errorf("%w: unknown learning area %q", domain.ErrInvalidInput, area)
	}

	if index < 0 || index >= len(progress.Modules) {
		return fmt.Errorf("%w: module %d does not exist in %s", domain.ErrInvalidInput, index, area)
	}

	module := &progress.Modules[index]

	switch {
	case completed && !module.Completed:
		progress.Completed++
	case !completed && module.Completed:
		progress.Completed--
	}

	module.Completed = completed

	if completed {
		if module.CompletedAt == nil {
			at := now
			module.CompletedAt = &at
		}

		if area == domain.AreaPracticalProjects && projectURL != "" {
			module.ProjectURL = projectURL
		}
	} else {
		module.CompletedAt = nil
		module.ProjectURL = ""
	}

	path.LastActiveAt = now
	path.UpdatedAt = now
	recompute(path)

	return nil
}

func recompute(path *domain.LearningPath) {
	var total, done int

	for _, area := range domain.LearningAreas {
		if !path.SelectedAreas.Has(area) {
			continue
		}

		progress := path.Progress.Area(area)
		total += progress.Total
		done += progress.Completed
	}

	path.OverallProgress = 0
	if total > 0 {
		path.OverallProgress = (done*100 + total/2) / total
	}

	path.CurrentLevel = Level(path.OverallProgress)
}

func Level(overall int) domain.LearningLevel {
	switch {
	case overall >= 80:
		return domain.LevelExpert
	case overall >= 60:
		return domain.LevelAdvanced
	case overall >= 30:
		return domain.LevelIntermediate
	default:
		return domain.LevelBeginner
	}
}

type AreaSummary struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// Summary is the dashboard view of a plan, without module lists.
type Summary struct {
	HasLearningPath bool                                `json:"hasLearningPath"`
	SelectedAreas   domain.SelectedAreas                `json:"selectedAreas"`
	OverallProgress int                                 `json:"overallProgress"`
	CurrentLevel    domain.LearningLevel                `json:"currentLevel"`
	Progress        map[domain.LearningArea]AreaSummary `json:"progress"`
	LastActiveDate  time.Time                           `json:"lastActiveDate"`
}

func Summarize(path domain.LearningPath) Summary {
	s := Summary{
		HasLearningPath: true,
		SelectedAreas:   path.SelectedAreas,
		OverallProgress: path.OverallProgress,
		CurrentLevel:    path.CurrentLevel,
		Progress:        make(map[domain.LearningArea]AreaSummary, len(domain.LearningAreas)),
		LastActiveDate:  path.LastActiveAt,
	}

	for _, area := range domain.LearningAreas {
		progress := path.Progress.Area(area)
		s.Progress[area] = AreaSummary{Completed: progress.Completed, Total: progress.Total}
	}

	return s
}
