package learning

import (
	"errors"
	"testing"
	"time"

	"lyrahub/internal/domain"
)

var testNow = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

func plannedPath(t *testing.T, areas domain.SelectedAreas) domain.LearningPath {
	t.Helper()

	path := Empty("ada", testNow)
	if err := Plan(&path, areas, nil, testNow); err != nil {
		t.Fatalf("plan: %v", err)
	}

	return path
}

func TestPlanRequiresTwoAreas(t *testing.T) {
	path := Empty("ada", testNow)

	err := Plan(&path, domain.SelectedAreas{TechnicalSkills: true}, nil, testNow)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	if path.SelectedAreas.Count() != 0 {
		t.Fatalf("rejected plan must not change areas, got %+v", path.SelectedAreas)
	}
}

func TestPlanFillsSelectedAreasOnly(t *testing.T) {
	path := plannedPath(t, domain.SelectedAreas{TechnicalSkills: true, PracticalProjects: true})

	if got := path.Progress.TechnicalSkills; got.Total != 20 || len(got.Modules) != 20 {
		t.Fatalf("unexpected technical skills progress %d/%d", got.Total, len(got.Modules))
	}

	if got := path.Progress.PracticalProjects; got.Total != 10 || got.Modules[0].Name != "Personal Portfolio Website" {
		t.Fatalf("unexpected practical projects progress %+v", got)
	}

	if got := path.Progress.BehavioralQuestions; got.Total != 0 || len(got.Modules) != 0 {
		t.Fatalf("unselected area must stay empty, got %+v", got)
	}

	if path.CurrentLevel != domain.LevelBeginner || path.OverallProgress != 0 {
		t.Fatalf("unexpected level %s at %d%%", path.CurrentLevel, path.OverallProgress)
	}
}

func TestPlanKeepsGoalsUnlessGiven(t *testing.T) {
	path := Empty("ada", testNow)
	path.CustomGoals = []domain.LearningGoal{{Title: "Ship a side project"}}

	areas := domain.SelectedAreas{TechnicalSkills: true, BehavioralQuestions: true}
	if err := Plan(&path, areas, nil, testNow); err != nil {
		t.Fatalf("plan: %v", err)
	}

	if len(path.CustomGoals) != 1 {
		t.Fatalf("expected goals kept, got %+v", path.CustomGoals)
	}

	if err := Plan(&path, areas, []domain.LearningGoal{}, testNow); err != nil {
		t.Fatalf("plan: %v", err)
	}

	if len(path.CustomGoals) != 0 {
		t.Fatalf("expected goals replaced, got %+v", path.CustomGoals)
	}
}

func TestSetModuleCountsOnceAndLevels(t *testing.T) {
	path := plannedPath(t, domain.SelectedAreas{BehavioralQuestions: true, PracticalProjects: true})
	later := testNow.Add(time.Hour)

	for i := range 8 {
		if err := SetModule(&path, domain.AreaBehavioralQuestions, i, true, "", later); err != nil {
			t.Fatalf("set module %d: %v", i, err)
		}
	}

	if err := SetModule(&path, domain.AreaBehavioralQuestions, 0, true, "", later); err != nil {
		t.Fatalf("repeat set: %v", err)
	}

	if got := path.Progress.BehavioralQuestions.Completed; got != 8 {
		t.Fatalf("expected 8 completed, got %d", got)
	}

	// 8 of 25 modules.
	if path.OverallProgress != 32 || path.CurrentLevel != domain.LevelIntermediate {
		t.Fatalf("unexpected level %s at %d%%", path.CurrentLevel, path.OverallProgress)
	}

	if !path.LastActiveAt.Equal(later) {
		t.Fatalf("expected last active %v, got %v", later, path.LastActiveAt)
	}

	if err := SetModule(&path, domain.AreaBehavioralQuestions, 0, false, "", later); err != nil {
		t.Fatalf("unset module: %v", err)
	}

	if m := path.Progress.BehavioralQuestions.Modules[0]; m.Completed || m.CompletedAt != nil {
		t.Fatalf("expected module reset, got %+v", m)
	}

	if path.Progress.BehavioralQuestions.Completed != 7 {
		t.Fatalf("expected 7 completed, got %d", path.Progress.BehavioralQuestions.Completed)
	}
}

func TestSetModuleProjectURL(t *testing.T) {
	path := plannedPath(t, domain.SelectedAreas{TechnicalSkills: true, PracticalProjects: true})

	if err := SetModule(&path, domain.AreaPracticalProjects, 2, true, "https://shop.example.com", testNow); err != nil {
		t.Fatalf("set project: %v", err)
	}

	if got := path.Progress.PracticalProjects.Modules[2].ProjectURL; got != "https://shop.example.com" {
		t.Fatalf("unexpected project url %q", got)
	}

	if err := SetModule(&path, domain.AreaTechnicalSkills, 0, true, "https://ignored.example.com", testNow); err != nil {
		t.Fatalf("set skill: %v", err)
	}

	if got := path.Progress.TechnicalSkills.Modules[0].ProjectURL; got != "" {
		t.Fatalf("project url only applies to projects, got %q", got)
	}

	if err := SetModule(&path, domain.AreaPracticalProjects, 2, false, "", testNow); err != nil {
		t.Fatalf("unset project: %v", err)
	}

	if got := path.Progress.PracticalProjects.Modules[2].ProjectURL; got != "" {
		t.Fatalf("expected project url cleared, got %q", got)
	}
}

func TestSetModuleRejectsUnknownTargets(t *testing.T) {
	path := plannedPath(t, domain.SelectedAreas{TechnicalSkills: true, PracticalProjects: true})

	tests := []struct {
		area  domain.LearningArea
		index int
	}{
		{"cooking", 0},
		{domain.AreaTechnicalSkills, 20},
		{domain.AreaTechnicalSkills, -1},
		{domain.AreaBehavioralQuestions, 0},
	}

	for _, tt := range tests {
		if err := SetModule(&path, tt.area, tt.index, true, "", testNow); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("SetModule(%s, %d): expected ErrInvalidInput, got %v", tt.area, tt.index, err)
		}
	}
}

func TestLevel(t *testing.T) {
	tests := []struct {
		overall int
		want    domain.LearningLevel
	}{
		{0, domain.LevelBeginner},
		{29, domain.LevelBeginner},
		{30, domain.LevelIntermediate},
		{60, domain.LevelAdvanced},
		{80, domain.LevelExpert},
		{100, domain.LevelExpert},
	}

	for _, tt := range tests {
		if got := Level(tt.overall); got != tt.want {
			t.Fatalf("Level(%d): got %s want %s", tt.overall, got, tt.want)
		}
	}
}

func TestSummarize(t *testing.T) {
	path := plannedPath(t, domain.SelectedAreas{TechnicalSkills: true, BehavioralQuestions: true})

	s := Summarize(path)
	if !s.HasLearningPath || len(s.Progress) != 3 {
		t.Fatalf("unexpected summary %+v", s)
	}

	if got := s.Progress[domain.AreaBehavioralQuestions]; got.Total != 15 || got.Completed != 0 {
		t.Fatalf("unexpected behavioral summary %+v", got)
	}
}
