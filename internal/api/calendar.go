package api

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"lyrahub/internal/database"
	"lyrahub/internal/domain"
	"lyrahub/internal/ics"
	"lyrahub/internal/recurrence"
	"lyrahub/internal/validation"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	dateLayout    = "2006-01-02"
	clockLayout   = "15:04"
	defaultType   = "personal"
	defaultColor  = "#93C5FD"
	recentDefault = 3
	recentMax     = 50
)

var typeColors = map[string]string{
	"learning": "#6EE7B7",
	"personal": "#93C5FD",
	"work":     "#FCD34D",
	"deadline": "#FCA5A5",
	"meeting":  "#C4B5FD",
	"other":    "#D1D5DB",
}

type recurrenceRequest struct {
	Frequency string `json:"frequency" validate:"required,oneof=daily weekly monthly yearly"`
	Interval  int    `json:"interval" validate:"gte=0,lte=366"`
	// EndDate is the last day an occurrence may start on.
	EndDate string `json:"endDate,omitempty"`
}

type eventRequest struct {
	Title       string             `json:"title" validate:"required,max=200"`
	Description string             `json:"description" validate:"max=5000"`
	StartDate   string             `json:"startDate" validate:"required"`
	EndDate     string             `json:"endDate" validate:"required"`
	StartTime   string             `json:"startTime" validate:"required,clock"`
	EndTime     string             `json:"endTime" validate:"required,clock"`
	Type        string             `json:"type" validate:"omitempty,oneof=learning personal work deadline meeting other"`
	Category    string             `json:"category" validate:"omitempty,oneof=technicalSkills behavioralQuestions practicalProjects general"`
	Module      string             `json:"module" validate:"max=100"`
	Priority    string             `json:"priority" validate:"omitempty,oneof=high medium low"`
	Location    string             `json:"location" validate:"max=200"`
	Color       string             `json:"color" validate:"omitempty,hexcolor"`
	Completed   bool               `json:"completed"`
	IsRecurring bool               `json:"isRecurring"`
	Recurrence  *recurrenceRequest `json:"recurrence" validate:"omitnil"`
}

// eventPatch carries the fields of a partial update; nil means unchanged.
type eventPatch struct {
	Title       *string            `json:"title"`
	Description *string            `json:"description"`
	StartDate   *string            `json:"startDate"`
	EndDate     *string            `json:"endDate"`
	StartTime   *string            `json:"startTime"`
	EndTime     *string            `json:"endTime"`
	Type        *string            `json:"type"`
	Category    *string            `json:"category"`
	Module      *string            `json:"module"`
	Priority    *string            `json:"priority"`
	Location    *string            `json:"location"`
	Color       *string            `json:"color"`
	Completed   *bool              `json:"completed"`
	IsRecurring *bool              `json:"isRecurring"`
	Recurrence  *recurrenceRequest `json:"recurrence"`
}

type eventResponse struct {
	Success bool                  `json:"success"`
	Event   *domain.CalendarEvent `json:"event"`
}

type eventsResponse[T any] struct {
	Success bool `json:"success"`
	Events  []T  `json:"events"`
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	filter := database.EventFilter{
		UserID: userIDFrom(ctx),
		Type:   q.Get("type"),
	}

	rawStart, rawEnd := q.Get("start"), q.Get("end")
	if rawStart == "" && rawEnd == "" {
		events, err := s.store.ListEvents(ctx, filter)
		if err != nil {
			respondErr(ctx, w, s.log, err)
			return
		}

		respondJSON(ctx, w, s.log, http.StatusOK, eventsResponse[domain.CalendarEvent]{
			Success: true,
			Events:  nonNil(events),
		})

		return
	}

	from, to, err := parseWindow(rawStart, rawEnd)
	if err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	filter.From, filter.To = from, to

	events, err := s.store.ListEvents(ctx, filter)
	if err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	occurrences := make([]domain.Occurrence, 0, len(events))

	for _, ev := range events {
		seq, expandErr := recurrence.Expand(ev, from, to)
		if expandErr != nil {
			s.log.WarnContext(ctx, "Failed to expand recurring event",
				"error", expandErr,
				"eventID", ev.ID)
		}

		for occ := range seq {
			occurrences = append(occurrences, occ)
		}
	}

	slices.SortStableFunc(occurrences, func(a, b domain.Occurrence) int {
		return a.StartDate.Compare(b.StartDate)
	})

	respondJSON(ctx, w, s.log, http.StatusOK, eventsResponse[domain.Occurrence]{
		Success: true,
		Events:  occurrences,
	})
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req eventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	event, err := buildEvent(req)
	if err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	event.ID = uuid.NewString()
	event.UserID = userIDFrom(ctx)

	if err = s.store.CreateEvent(ctx, &event); err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	respondJSON(ctx, w, s.log, http.StatusCreated, eventResponse{Success: true, Event: &event})
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	event, err := s.store.GetEvent(ctx, userIDFrom(ctx), chi.URLParam(r, "eventID"))
	if err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	respondJSON(ctx, w, s.log, http.StatusOK, eventResponse{Success: true, Event: event})
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFrom(ctx)

	var patch eventPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	existing, err := s.store.GetEvent(ctx, userID, chi.URLParam(r, "eventID"))
	if err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	req := requestFromEvent(*existing)
	patch.apply(&req)

	event, err := buildEvent(req)
	if err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	event.ID = existing.ID
	event.UserID = userID
	event.CreatedAt = existing.CreatedAt

	if err = s.store.UpdateEvent(ctx, &event); err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	respondJSON(ctx, w, s.log, http.StatusOK, eventResponse{Success: true, Event: &event})
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.store.DeleteEvent(ctx, userIDFrom(ctx), chi.URLParam(r, "eventID")); err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	respondJSON(ctx, w, s.log, http.StatusOK, map[string]bool{"success": true})
}

// handleRecentEvents lists what is coming up from the start of today.
func (s *Server) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	limit := queryInt(r, "limit", recentDefault, 1, recentMax)

	events, err := s.store.ListUpcomingEvents(ctx, userIDFrom(ctx), today, limit)
	if err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	respondJSON(ctx, w, s.log, http.StatusOK, eventsResponse[domain.CalendarEvent]{
		Success: true,
		Events:  nonNil(events),
	})
}

func (s *Server) handleExportEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	events, err := s.store.ListEvents(ctx, database.EventFilter{UserID: userIDFrom(ctx)})
	if err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	body, err := ics.Export(events, s.now())
	if err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="lyrahub.ics"`)
	w.WriteHeader(http.StatusOK)

	if _, err = w.Write([]byte(body)); err != nil {
		s.log.WarnContext(ctx, "Failed to write calendar export",
			"error", err)
	}
}

// buildEvent validates req and turns it into an event with defaults applied.
func buildEvent(req eventRequest) (domain.CalendarEvent, error) {
	req.Title = strings.TrimSpace(req.Title)

	if !req.IsRecurring {
		req.Recurrence = nil
	}

	var verr *validation.Error
	if err := validation.Struct(req); err != nil && !errors.As(err, &verr) {
		return domain.CalendarEvent{}, err
	}

	if req.IsRecurring && req.Recurrence == nil {
		verr = addField(verr, "recurrence", "recurrence is required when isRecurring is true")
	}

	if verr != nil {
		return domain.CalendarEvent{}, verr
	}

	start, startErr := combine(req.StartDate, req.StartTime)
	end, endErr := combine(req.EndDate, req.EndTime)

	if startErr != nil {
		verr = addField(verr, "startDate", "startDate must be a date in YYYY-MM-DD format")
	}

	if endErr != nil {
		verr = addField(verr, "endDate", "endDate must be a date in YYYY-MM-DD format")
	}

	var rule *domain.Recurrence

	if req.Recurrence != nil {
		var err error

		rule, err = buildRecurrence(*req.Recurrence)
		if err != nil {
			verr = addField(verr, "recurrence.endDate", "recurrence.endDate must be a date in YYYY-MM-DD format")
		}
	}

	if verr != nil {
		return domain.CalendarEvent{}, verr
	}

	if !start.Before(end) {
		return domain.CalendarEvent{}, fmt.Errorf("%w: End time must be after start time", domain.ErrInvalidInput)
	}

	event := domain.CalendarEvent{
		Title:       req.Title,
		Description: req.Description,
		StartDate:   start,
		EndDate:     end,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Type:        cmpOr(req.Type, defaultType),
		Category:    cmpOr(req.Category, "general"),
		Module:      req.Module,
		Priority:    cmpOr(req.Priority, "medium"),
		Location:    req.Location,
		Color:       req.Color,
		Completed:   req.Completed,
		IsRecurring: req.IsRecurring,
		Recurrence:  rule,
	}

	if event.Color == "" {
		event.Color = colorFor(event.Type)
	}

	return event, nil
}

func buildRecurrence(req recurrenceRequest) (*domain.Recurrence, error) {
	freq, err := domain.ParseFrequency(req.Frequency)
	if err != nil {
		return nil, err
	}

	rule := &domain.Recurrence{Frequency: freq, Interval: max(req.Interval, 1)}

	if req.EndDate != "" {
		// The end date is inclusive for clients and exclusive for the expander.
		day, err := parseDate(req.EndDate)
		if err != nil {
			return nil, err
		}

		until := day.AddDate(0, 0, 1)
		rule.EndDate = &until
	}

	return rule, nil
}

func requestFromEvent(ev domain.CalendarEvent) eventRequest {
	req := eventRequest{
		Title:       ev.Title,
		Description: ev.Description,
		StartDate:   ev.StartDate.UTC().Format(dateLayout),
		EndDate:     ev.EndDate.UTC().Format(dateLayout),
		StartTime:   ev.StartTime,
		EndTime:     ev.EndTime,
		Type:        ev.Type,
		Category:    ev.Category,
		Module:      ev.Module,
		Priority:    ev.Priority,
		Location:    ev.Location,
		Color:       ev.Color,
		Completed:   ev.Completed,
		IsRecurring: ev.IsRecurring,
	}

	if ev.Recurrence != nil {
		req.Recurrence = &recurrenceRequest{
			Frequency: string(ev.Recurrence.Frequency),
			Interval:  ev.Recurrence.Interval,
		}

		if ev.Recurrence.EndDate != nil {
			req.Recurrence.EndDate = ev.Recurrence.EndDate.UTC().AddDate(0, 0, -1).Format(dateLayout)
		}
	}

	return req
}

func (p eventPatch) apply(req *eventRequest) {
	set(&req.Title, p.Title)
	set(&req.Description, p.Description)
	set(&req.StartDate, p.StartDate)
	set(&req.EndDate, p.EndDate)
	set(&req.StartTime, p.StartTime)
	set(&req.EndTime, p.EndTime)
	set(&req.Category, p.Category)
	set(&req.Module, p.Module)
	set(&req.Priority, p.Priority)
	set(&req.Location, p.Location)
	set(&req.Completed, p.Completed)
	set(&req.IsRecurring, p.IsRecurring)

	// A type change without an explicit color picks up the new type color.
	if p.Type != nil && *p.Type != req.Type && p.Color == nil && req.Color == colorFor(req.Type) {
		req.Color = ""
	}

	set(&req.Type, p.Type)
	set(&req.Color, p.Color)

	if p.Recurrence != nil {
		req.Recurrence = p.Recurrence
	}

	if !req.IsRecurring {
		req.Recurrence = nil
	}
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func cmpOr(v string, def string) string {
	if v == "" {
		return def
	}

	return v
}

func colorFor(eventType string) string {
	if c, ok := typeColors[eventType]; ok {
		return c
	}

	return defaultColor
}

func addField(verr *validation.Error, name string, msg string) *validation.Error {
	if verr == nil {
		verr = &validation.Error{}
	}

	return verr.Field(name, msg)
}

// parseDate accepts a calendar day or a full RFC 3339 timestamp, of which
// only the UTC day is kept.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)

	if day, err := time.Parse(dateLayout, raw); err == nil {
		return day, nil
	}

	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad date %q", domain.ErrInvalidInput, raw)
	}

	ts = ts.UTC()

	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC), nil
}

func combine(date string, clock string) (time.Time, error) {
	day, err := parseDate(date)
	if err != nil {
		return time.Time{}, err
	}

	tod, err := time.Parse(clockLayout, clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad time %q", domain.ErrInvalidInput, clock)
	}

	return day.Add(time.Duration(tod.Hour())*time.Hour + time.Duration(tod.Minute())*time.Minute), nil
}

// parseWindow reads the list window. A bare end date includes that whole day.
func parseWindow(rawStart string, rawEnd string) (time.Time, time.Time, error) {
	if rawStart == "" || rawEnd == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start and end must be given together", domain.ErrInvalidInput)
	}

	from, err := parseWindowBound(rawStart)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	to, err := parseWindowBound(rawEnd)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	if _, dayErr := time.Parse(dateLayout, strings.TrimSpace(rawEnd)); dayErr == nil {
		to = to.AddDate(0, 0, 1)
	}

	if !from.Before(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end must be after start", domain.ErrInvalidInput)
	}

	return from, to, nil
}

func parseWindowBound(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)

	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC(), nil
	}

	day, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad window bound %q", domain.ErrInvalidInput, raw)
	}

	return day, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}

	return s
}
