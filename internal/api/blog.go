package api

import (
	"errors"
	"net/http"
	"strings"

	"lyrahub/internal/domain"
	"lyrahub/internal/validation"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	postsDefault = 50
	postsMax     = 100
)

type createPostRequest struct {
	Title   string `json:"title" validate:"required,max=200"`
	Content string `json:"content" validate:"required,max=20000"`
	Image   string `json:"image" validate:"omitempty,url,max=2048"`
}

type commentRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
}

type postResponse struct {
	Success bool             `json:"success"`
	Post    *domain.BlogPost `json:"post"`
}

type postsResponse struct {
	Success bool              `json:"success"`
	Posts   []domain.BlogPost `json:"posts"`
}

type likeResponse struct {
	Success bool `json:"success"`
	Likes   int  `json:"likes"`
	IsLiked bool `json:"isLiked"`
}

type commentResponse struct {
	Success bool                `json:"success"`
	Comment *domain.BlogComment `json:"comment"`
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	posts, err := s.store.ListPosts(ctx, userIDFrom(ctx), queryInt(r, "limit", postsDefault, 1, postsMax))
	if err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	respondJSON(ctx, w, s.log, http.StatusOK, postsResponse{Success: true, Posts: nonNil(posts)})
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createPostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Content = strings.TrimSpace(req.Content)
	req.Image = strings.TrimSpace(req.Image)

	if err := validation.Struct(req); err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	author, err := s.author(r)
	if err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	post := domain.BlogPost{
		ID:       uuid.NewString(),
		Title:    req.Title,
		Content:  req.Content,
		Image:    req.Image,
		Author:   author,
		Comments: []domain.BlogComment{},
	}

	if err = s.store.CreatePost(ctx, &post); err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	respondJSON(ctx, w, s.log, http.StatusCreated, postResponse{Success: true, Post: &post})
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.store.DeletePost(ctx, userIDFrom(ctx), chi.URLParam(r, "postID")); err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	respondJSON(ctx, w, s.log, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleToggleLike(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	likes, liked, err := s.store.ToggleLike(ctx, userIDFrom(ctx), chi.URLParam(r, "postID"))
	if err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	respondJSON(ctx, w, s.log, http.StatusOK, likeResponse{Success: true, Likes: likes, IsLiked: liked})
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	req.Content = strings.TrimSpace(req.Content)

	if err := validation.Struct(req); err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	author, err := s.author(r)
	if err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	comment := domain.BlogComment{
		ID:      uuid.NewString(),
		PostID:  chi.URLParam(r, "postID"),
		Content: req.Content,
		Author:  author,
	}

	if err = s.store.AddComment(ctx, &comment); err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	respondJSON(ctx, w, s.log, http.StatusCreated, commentResponse{Success: true, Comment: &comment})
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	err := s.store.DeleteComment(ctx, userIDFrom(ctx), chi.URLParam(r, "postID"), chi.URLParam(r, "commentID"))
	if err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	respondJSON(ctx, w, s.log, http.StatusOK, map[string]bool{"success": true})
}

// author resolves the signed-in user. A token for a deleted account is
// treated as unauthorized.
func (s *Server) author(r *http.Request) (domain.Author, error) {
	user, err := s.store.GetUserByID(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Author{}, domain.ErrUnauthorized
		}

		return domain.Author{}, err
	}

	return domain.Author{UserID: user.ID, Name: user.Name}, nil
}
