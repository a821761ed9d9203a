// Package api exposes the calendar, community and news digest backends over
// HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"lyrahub/internal/ask"
	"lyrahub/internal/auth"
	"lyrahub/internal/database"
	"lyrahub/internal/digest"
	"lyrahub/internal/domain"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultRateLimitPerMinute = 120
	authRateLimitPerMinute    = 10
	askRateLimitPerMinute     = 6
)

type Store interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, userID string) (*domain.User, error)
	UpdateUserName(ctx context.Context, userID string, name string) (*domain.User, error)

	CreateEvent(ctx context.Context, event *domain.CalendarEvent) error
	GetEvent(ctx context.Context, userID string, eventID string) (*domain.CalendarEvent, error)
	UpdateEvent(ctx context.Context, event *domain.CalendarEvent) error
	DeleteEvent(ctx context.Context, userID string, eventID string) error
	ListEvents(ctx context.Context, filter database.EventFilter) ([]domain.CalendarEvent, error)
	ListUpcomingEvents(ctx context.Context, userID string, from time.Time, limit int) ([]domain.CalendarEvent, error)

	CreatePost(ctx context.Context, post *domain.BlogPost) error
	ListPosts(ctx context.Context, viewerID string, limit int) ([]domain.BlogPost, error)
	DeletePost(ctx context.Context, userID string, postID string) error
	ToggleLike(ctx context.Context, userID string, postID string) (int, bool, error)
	AddComment(ctx context.Context, comment *domain.BlogComment) error
	DeleteComment(ctx context.Context, userID string, postID string, commentID string) error

	GetLearningPath(ctx context.Context, userID string) (*domain.LearningPath, error)
	SaveLearningPath(ctx context.Context, path *domain.LearningPath) error

	UpsertSubscriber(ctx context.Context, email string, lang domain.Language) error
	RemoveSubscriber(ctx context.Context, email string) (bool, error)

	ListLatestItems(ctx context.Context, limit int) ([]domain.ContentItem, error)
	ListFeaturedItems(ctx context.Context, limit int) ([]domain.ContentItem, error)
	Stats(ctx context.Context) (domain.Stats, error)
}

type DigestRunner interface {
	Run(ctx context.Context) (digest.Result, error)
}

type Asker interface {
	Ask(ctx context.Context, question string, mode ask.Mode) (ask.Answer, error)
}

type Options struct {
	CronSecret        string
	UnsubscribeSecret string
	CORSOrigins       []string
	// DigestTimeout bounds a digest run triggered over HTTP.
	DigestTimeout time.Duration
	// RateLimitPerMinute applies per client IP and endpoint. Zero picks the
	// default, a negative value disables limiting.
	RateLimitPerMinute int
}

type Server struct {
	store      Store
	authorizer *auth.Authorizer
	digest     DigestRunner
	asker      Asker
	opts       Options
	now        func() time.Time
	log        *slog.Logger
}

func NewServer(
	store Store,
	authorizer *auth.Authorizer,
	digestRunner DigestRunner,
	asker Asker,
	opts Options,
	log *slog.Logger,
) *Server {
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}

	if opts.RateLimitPerMinute == 0 {
		opts.RateLimitPerMinute = defaultRateLimitPerMinute
	}

	return &Server{
		store:      store,
		authorizer: authorizer,
		digest:     digestRunner,
		asker:      asker,
		opts:       opts,
		now:        time.Now,
		log:        log,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.logRequests)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.recordMetrics)
		r.Use(s.rateLimit(s.opts.RateLimitPerMinute))

		r.Route("/auth", func(r chi.Router) {
			r.With(s.rateLimit(authRateLimitPerMinute)).Post("/register", s.handleRegister)
			r.With(s.rateLimit(authRateLimitPerMinute)).Post("/login", s.handleLogin)

			r.Group(func(r chi.Router) {
				r.Use(s.requireAuth)
				r.Get("/profile", s.handleGetProfile)
				r.Put("/profile", s.handleUpdateProfile)
			})
		})

		r.Route("/calendar", func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/", s.handleListEvents)
			r.Post("/", s.handleCreateEvent)
			r.Get("/recent", s.handleRecentEvents)
			r.Get("/export.ics", s.handleExportEvents)
			r.Get("/{eventID}", s.handleGetEvent)
			r.Put("/{eventID}", s.handleUpdateEvent)
			r.Delete("/{eventID}", s.handleDeleteEvent)
		})

		r.Route("/blog", func(r chi.Router) {
			r.With(s.optionalAuth).Get("/", s.handleListPosts)

			r.Group(func(r chi.Router) {
				r.Use(s.requireAuth)
				r.Post("/", s.handleCreatePost)
				r.Delete("/{postID}", s.handleDeletePost)
				r.Post("/{postID}/like", s.handleToggleLike)
				r.Post("/{postID}/comment", s.handleAddComment)
				r.Delete("/{postID}/comment/{commentID}", s.handleDeleteComment)
			})
		})

		r.Route("/learning-path", func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/", s.handleGetLearningPath)
			r.Post("/", s.handlePlanLearningPath)
			r.Put("/", s.handleUpdateLearningModule)
			r.Get("/progress", s.handleLearningProgress)
		})

		r.Get("/cron/daily", s.handleCronDaily)
		r.Post("/cron/daily", s.handleCronDaily)

		r.Post("/subscribe", s.handleSubscribe)
		r.Get("/unsubscribe", s.handleUnsubscribe)

		r.Get("/items", s.handleListItems)
		r.Get("/items/featured", s.handleFeaturedItems)
		r.Get("/stats", s.handleStats)

		r.With(s.rateLimit(askRateLimitPerMinute)).Post("/ask", s.handleAsk)
	})

	return r
}

func (s *Server) rateLimit(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	return httprate.Limit(
		perMinute,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByRealIP, httprate.KeyByEndpoint),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			respondError(r.Context(), w, s.log, http.StatusTooManyRequests, "too many requests")
		}),
	)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.store.Ping(ctx); err != nil {
		s.log.ErrorContext(ctx, "Failed to ping database",
			"error", err)

		respondJSON(ctx, w, s.log, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})

		return
	}

	respondJSON(ctx, w, s.log, http.StatusOK, map[string]string{"status": "ok"})
}
