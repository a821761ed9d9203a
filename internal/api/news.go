package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"lyrahub/internal/ask"
	"lyrahub/internal/digest"
	"lyrahub/internal/domain"
	"lyrahub/internal/mailer"
	"lyrahub/internal/validation"
)

const (
	itemsDefaultLimit    = 20
	itemsMaxLimit        = 100
	featuredDefaultLimit = 10
	defaultDigestTimeout = 15 * time.Minute
)

type cronResponse struct {
	OK       bool          `json:"ok"`
	Pulled   int           `json:"pulled"`
	Mailed   int           `json:"mailed"`
	Featured []string      `json:"featured"`
	Result   digest.Result `json:"result"`
}

type subscribeRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
	Lang  string `json:"lang" validate:"omitempty,oneof=zh en"`
}

type askRequest struct {
	Question string `json:"question"`
	Mode     string `json:"mode"`
}

type itemsResponse struct {
	Items []domain.ContentItem `json:"items"`
}

// handleCronDaily triggers one digest run. The run outlives a caller that
// hangs up, bounded by the digest timeout.
func (s *Server) handleCronDaily(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !s.cronAuthorized(r) {
		respondError(ctx, w, s.log, http.StatusUnauthorized, "unauthorized")
		return
	}

	timeout := s.opts.DigestTimeout
	if timeout <= 0 {
		timeout = defaultDigestTimeout
	}

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	res, err := s.digest.Run(runCtx)
	if err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	respondJSON(ctx, w, s.log, http.StatusOK, cronResponse{
		OK:       true,
		Pulled:   res.Upserted,
		Mailed:   res.Mailed,
		Featured: nonNil(res.Featured),
		Result:   res,
	})
}

// cronAuthorized accepts the secret as ?key= or as a bearer token. Without a
// configured secret nothing is accepted.
func (s *Server) cronAuthorized(r *http.Request) bool {
	if s.opts.CronSecret == "" {
		return false
	}

	provided := r.URL.Query().Get("key")
	if provided == "" {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if len(header) > len("Bearer ") && strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
			provided = strings.TrimSpace(header[len("Bearer "):])
		}
	}

	return subtle.ConstantTimeCompare([]byte(provided), []byte(s.opts.CronSecret)) == 1
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req subscribeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Lang = strings.ToLower(strings.TrimSpace(req.Lang))

	if err := validation.Struct(req); err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	lang := domain.Language(req.Lang)
	if lang == "" {
		lang = domain.LanguageZH
	}

	if err := s.store.UpsertSubscriber(ctx, req.Email, lang); err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	s.log.InfoContext(ctx, "Subscribed",
		"lang", lang)

	respondJSON(ctx, w, s.log, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	email := q.Get("email")
	if !mailer.VerifyUnsubscribeToken(s.opts.UnsubscribeSecret, email, q.Get("token")) {
		respondError(ctx, w, s.log, http.StatusBadRequest, "invalid link")
		return
	}

	removed, err := s.store.RemoveSubscriber(ctx, email)
	if err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	s.log.InfoContext(ctx, "Unsubscribed",
		"removed", removed)

	respondJSON(ctx, w, s.log, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	items, err := s.store.ListLatestItems(ctx, queryInt(r, "limit", itemsDefaultLimit, 1, itemsMaxLimit))
	if err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	respondJSON(ctx, w, s.log, http.StatusOK, itemsResponse{Items: nonNil(items)})
}

func (s *Server) handleFeaturedItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	items, err := s.store.ListFeaturedItems(ctx, queryInt(r, "limit", featuredDefaultLimit, 1, itemsMaxLimit))
	if err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	respondJSON(ctx, w, s.log, http.StatusOK, itemsResponse{Items: nonNil(items)})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := s.store.Stats(ctx)
	if err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	respondJSON(ctx, w, s.log, http.StatusOK, stats)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req askRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	if strings.TrimSpace(req.Question) == "" {
		respondError(ctx, w, s.log, http.StatusBadRequest, "question required")
		return
	}

	mode, err := ask.ParseMode(req.Mode)
	if err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	if s.asker == nil {
		respondErr(ctx, w, s.log, ask.ErrUnavailable)
		return
	}

	answer, err := s.asker.Ask(ctx, req.Question, mode)
	if err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	respondJSON(ctx, w, s.log, http.StatusOK, answer)
}
