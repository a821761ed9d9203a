package domain

import "time"

// Author is the public face of a user on posts and comments.
type Author struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

type BlogPost struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Content   string        `json:"content"`
	Image     string        `json:"image,omitempty"`
	Author    Author        `json:"author"`
	Likes     int           `json:"likes"`
	IsLiked   bool          `json:"isLiked"`
	Comments  []BlogComment `json:"comments"`
	CreatedAt time.Time     `json:"createdAt"`
}

type BlogComment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"postId"`
	Content   string    `json:"content"`
	Author    Author    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

type LearningArea string

const (
	AreaTechnicalSkills     LearningArea = "technicalSkills"
	AreaBehavioralQuestions LearningArea = "behavioralQuestions"
	AreaPracticalProjects   LearningArea = "practicalProjects"
)

var LearningAreas = []LearningArea{AreaTechnicalSkills, AreaBehavioralQuestions, AreaPracticalProjects}

type SelectedAreas struct {
	TechnicalSkills     bool `json:"technicalSkills"`
	BehavioralQuestions bool `json:"behavioralQuestions"`
	PracticalProjects   bool `json:"practicalProjects"`
}

func (s SelectedAreas) Has(area LearningArea) bool {
	switch area {
	case AreaTechnicalSkills:
		return s.TechnicalSkills
	case AreaBehavioralQuestions:
		return s.BehavioralQuestions
	case AreaPracticalProjects:
		return s.PracticalProjects
	default:
		return false
	}
}

func (s SelectedAreas) Count() int {
	n := 0

	for _, area := range LearningAreas {
		if s.Has(area) {
			n++
		}
	}

	return n
}

type LearningModule struct {
	Name        string     `json:"name"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	ProjectURL  string     `json:"projectUrl,omitempty"`
}

type AreaProgress struct {
	Completed int              `json:"completed"`
	Total     int              `json:"total"`
	Modules   []LearningModule `json:"modules"`
}

type LearningProgress struct {
	TechnicalSkills     AreaProgress `json:"technicalSkills"`
	BehavioralQuestions AreaProgress `json:"behavioralQuestions"`
	PracticalProjects   AreaProgress `json:"practicalProjects"`
}

// Area returns the progress of area, or nil for an unknown area.
func (p *LearningProgress) Area(area LearningArea) *AreaProgress {
	switch area {
	case AreaTechnicalSkills:
		return &p.TechnicalSkills
	case AreaBehavioralQuestions:
		return &p.BehavioralQuestions
	case AreaPracticalProjects:
		return &p.PracticalProjects
	default:
		return nil
	}
}

type LearningGoal struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	TargetDate  *time.Time `json:"targetDate,omitempty"`
	Completed   bool       `json:"completed"`
}

type LearningLevel string

const (
	LevelBeginner     LearningLevel = "Beginner"
	LevelIntermediate LearningLevel = "Intermediate"
	LevelAdvanced     LearningLevel = "Advanced"
	LevelExpert       LearningLevel = "Expert"
)

// LearningPath is the single study plan a user owns.
type LearningPath struct {
	UserID          string           `json:"userId"`
	SelectedAreas   SelectedAreas    `json:"selectedAreas"`
	Progress        LearningProgress `json:"progress"`
	CustomGoals     []LearningGoal   `json:"customGoals"`
	OverallProgress int              `json:"overallProgress"`
	CurrentLevel    LearningLevel    `json:"currentLevel"`
	LastActiveAt    time.Time        `json:"lastActiveDate"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}
