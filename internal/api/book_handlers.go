package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/loanwell/lectern-go/internal/bookdb"
	"github.com/loanwell/lectern-go/internal/models"
	"github.com/loanwell/lectern-go/internal/tasks"
)

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.app.Books().List()
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to list books")
		return
	}
	RespondWithJSON(w, http.StatusOK, books)
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	bookID := models.BookID(chi.URLParam(r, "bookID"))
	book, err := s.app.Books().Get(bookID)
	if err != nil {
		if errors.Is(err, bookdb.ErrNotFound) {
			RespondWithError(w, http.StatusNotFound, "Book not found")
			return
		}
		RespondWithError(w, http.StatusInternalServerError, "Failed to load book")
		return
	}
	RespondWithJSON(w, http.StatusOK, book)
}

// handleBorrow submits a borrow task for a catalog entry. The task runs in
// the background; the response carries the ID the book will have so the
// client can follow its status.
func (s *Server) handleBorrow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProfileID string        `json:"profile_id"`
		AccountID string        `json:"account_id"`
		Entry     *models.Entry `json:"entry"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if req.Entry == nil || req.Entry.ID == "" {
		RespondWithError(w, http.StatusBadRequest, "A catalog entry is required")
		return
	}

	bookID, err := s.app.Tasks().Borrow(req.ProfileID, req.AccountID, req.Entry)
	if err != nil {
		if errors.Is(err, tasks.ErrTaskInFlight) {
			RespondWithError(w, http.StatusConflict, "A task is already running for this book")
			return
		}
		RespondWithError(w, http.StatusInternalServerError, "Failed to submit borrow")
		return
	}
	RespondWithJSON(w, http.StatusAccepted, map[string]string{"book_id": string(bookID)})
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	bookID := models.BookID(chi.URLParam(r, "bookID"))

	var req struct {
		ProfileID string `json:"profile_id"`
		AccountID string `json:"account_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := s.app.Tasks().Revoke(req.ProfileID, req.AccountID, bookID); err != nil {
		if errors.Is(err, tasks.ErrTaskInFlight) {
			RespondWithError(w, http.StatusConflict, "A task is already running for this book")
			return
		}
		RespondWithError(w, http.StatusInternalServerError, "Failed to submit revoke")
		return
	}
	RespondWithJSON(w, http.StatusAccepted, map[string]string{"book_id": string(bookID)})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	bookID := models.BookID(chi.URLParam(r, "bookID"))
	if !s.app.Tasks().Cancel(bookID) {
		RespondWithError(w, http.StatusNotFound, "No download in progress for this book")
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"book_id": string(bookID)})
}

func (s *Server) handleGetBookStatus(w http.ResponseWriter, r *http.Request) {
	bookID := models.BookID(chi.URLParam(r, "bookID"))
	st, ok := s.app.StatusRegistry().Get(bookID)
	if !ok {
		RespondWithError(w, http.StatusNotFound, "No status for this book")
		return
	}
	RespondWithJSON(w, http.StatusOK, st)
}

func (s *Server) handleListStatus(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, s.app.StatusRegistry().All())
}
