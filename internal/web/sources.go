package web

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/conorfennell/studyset/internal/gitsource"
	"github.com/conorfennell/studyset/internal/storage"
	"github.com/conorfennell/studyset/internal/sync"
)

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.db.GetSourcesForUser(r.Context(), uid(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": sources})
}

// handleAddSource registers a git URL, or a directory under the configured
// local root, as a source of material.
func (s *Server) handleAddSource(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Path string `json:"path"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	path, sourceType, err := s.resolveSource(strings.TrimSpace(body.Path))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := s.db.InsertSource(r.Context(), uid(r), path, sourceType)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, storage.Source{ID: id, UserID: uid(r), Path: path, Type: sourceType})
}

func (s *Server) resolveSource(path string) (string, string, error) {
	if path == "" {
		return "", "", fmt.Errorf("%w: path cannot be empty", errBadRequest)
	}
	if strings.HasSuffix(path, ".git") || strings.HasPrefix(path, "git@") ||
		strings.HasPrefix(path, "https://") || strings.HasPrefix(path, "http://") {
		if _, err := gitsource.LocalPath(s.opts.Sync.ReposDir, path); err != nil {
			return "", "", fmt.Errorf("%w: %v", errBadRequest, err)
		}
		return path, storage.SourceGit, nil
	}

	root := s.opts.LocalRoot
	if root == "" {
		return "", "", fmt.Errorf("%w: local sources are disabled", errBadRequest)
	}
	abs := filepath.Clean(path)
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(root, abs)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", "", fmt.Errorf("%w: local sources must be inside %s", errBadRequest, root)
	}
	return abs, storage.SourceLocal, nil
}

func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: invalid source id", errBadRequest))
		return
	}
	if err := s.db.DeleteSource(r.Context(), id, uid(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSync ingests new material from the caller's sources. It runs in the
// foreground so the report reflects what was created.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow(uid(r)) {
		w.Header().Set("Retry-After", "60")
		s.writeError(w, r, errRateLimited)
		return
	}

	opts := s.opts.Sync
	opts.UserID = uid(r)
	opts.Logger = s.requestLogger(r)
	report, err := sync.RunSync(r.Context(), s.db, s.gen, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
