package domain

import "time"

type Language string

const (
	LanguageZH Language = "zh"
	LanguageEN Language = "en"
)

func (l Language) Valid() bool {
	return l == LanguageZH || l == LanguageEN
}

type SourceKind string

const (
	SourceKindNews  SourceKind = "news"
	SourceKindPaper SourceKind = "paper"
	// SourceKindRepo items come from repository search aggregators and are
	// only picked for the digest when news and papers run out.
	SourceKindRepo SourceKind = "repo"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Recurrence struct {
	Frequency Frequency  `json:"frequency"`
	Interval  int        `json:"interval"`
	EndDate   *time.Time `json:"endDate,omitempty"`
}

type CalendarEvent struct {
	ID          string      `json:"id"`
	UserID      string      `json:"userId"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	StartDate   time.Time   `json:"startDate"`
	EndDate     time.Time   `json:"endDate"`
	StartTime   string      `json:"startTime"`
	EndTime     string      `json:"endTime"`
	Type        string      `json:"type"`
	Category    string      `json:"category"`
	Module      string      `json:"module,omitempty"`
	Priority    string      `json:"priority"`
	Location    string      `json:"location,omitempty"`
	Color       string      `json:"color"`
	Completed   bool        `json:"completed"`
	IsRecurring bool        `json:"isRecurring"`
	Recurrence  *Recurrence `json:"recurrence,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// Occurrence has the shape of a stored event so clients can render expanded
// and single events the same way. SeriesID points at the stored event.
type Occurrence struct {
	CalendarEvent

	SeriesID string `json:"seriesId"`
}

type ContentItem struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	URL           string     `json:"url"`
	Source        string     `json:"source,omitempty"`
	Kind          SourceKind `json:"kind,omitempty"`
	Lang          Language   `json:"lang,omitempty"`
	Summary       string     `json:"summary,omitempty"`
	SummaryTarget string     `json:"summaryTarget,omitempty"`
	PublishedAt   *time.Time `json:"publishedAt,omitempty"`
	Featured      bool       `json:"featured"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// BestSummary picks what a reader of lang should see when summaries were
// generated in target.
func (i ContentItem) BestSummary(lang Language, target Language) string {
	switch {
	case lang == target && i.SummaryTarget != "":
		return i.SummaryTarget
	case i.Lang == lang && i.Summary != "":
		return i.Summary
	case i.SummaryTarget != "":
		return i.SummaryTarget
	default:
		return i.Summary
	}
}

type Subscriber struct {
	Email     string    `json:"email"`
	Lang      Language  `json:"lang"`
	Confirmed bool      `json:"confirmed"`
	CreatedAt time.Time `json:"createdAt"`
}

// Source is a feed URL, or for SourceKindRepo a repository search query.
type Source struct {
	Name  string     `yaml:"name"`
	URL   string     `yaml:"url"`
	Query string     `yaml:"query"`
	Kind  SourceKind `yaml:"kind"`
	Lang  Language   `yaml:"lang"`
}

type Stats struct {
	Items       int64 `json:"items"`
	Subscribers int64 `json:"subscribers"`
}
