package web

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dshills/postvault/internal/content"
	"github.com/dshills/postvault/internal/searcher"
	"github.com/dshills/postvault/internal/storage"
	"github.com/dshills/postvault/pkg/types"
)

type postsBody struct {
	Items []types.Post `json:"items"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	posts, err := s.repo.ListRecent(r.Context(), content.RecentLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, postsBody{Items: posts})
}

func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	page, err := pageParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.repo.ListPage(r.Context(), page, content.PostsPerPage)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	post, err := s.repo.GetPost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, post)
}

func (s *Server) handleSpecial(id string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := s.repo.GetSpecial(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, page)
	}
}

// handleSearch answers an empty query with an empty first page
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	page, err := pageParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	raw := strings.TrimSpace(r.URL.Query().Get("q"))
	if raw == "" {
		s.writeJSON(w, http.StatusOK, searcher.Result{Items: []types.Summary{}, CurrentPage: 1})
		return
	}

	result, err := s.search.SearchString(r.Context(), raw, page, searcher.DefaultPerPage)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	data, found, err := s.repo.Image(r.Context(), chi.URLParam(r, "filename"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !found {
		s.writeError(w, r, types.ErrNotFound)
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type healthBody struct {
	Status          string            `json:"status"`
	PrimaryPath     string            `json:"primary_path"`
	PoolID          string            `json:"pool_id"`
	Pool            storage.PoolStats `json:"pool"`
	Draining        []string          `json:"draining"`
	BuildMode       string            `json:"build_mode"`
	VectorExtension bool              `json:"vector_extension"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	pool := s.handle.Current()
	s.writeJSON(w, http.StatusOK, healthBody{
		Status:          "ok",
		PrimaryPath:     s.handle.PrimaryPath(),
		PoolID:          pool.ID(),
		Pool:            pool.Stats(),
		Draining:        s.handle.Draining(),
		BuildMode:       storage.BuildMode,
		VectorExtension: storage.VectorExtensionAvailable,
	})
}
