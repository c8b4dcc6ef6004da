package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/loanwell/lectern-go/internal/accounts"
)

func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string]string{"version": s.app.Version()})
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if req.ID == "" {
		RespondWithError(w, http.StatusBadRequest, "Profile ID is required")
		return
	}
	s.app.Accounts().PutProfile(accounts.NewProfile(req.ID, req.Name))
	RespondWithJSON(w, http.StatusCreated, map[string]string{"id": req.ID})
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "profileID")
	profile, err := s.app.Accounts().Profile(profileID)
	if err != nil {
		RespondWithError(w, http.StatusNotFound, "Profile not found")
		return
	}

	var req struct {
		ID       string `json:"id"`
		Provider string `json:"provider"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if req.ID == "" {
		RespondWithError(w, http.StatusBadRequest, "Account ID is required")
		return
	}

	acct := &accounts.Account{ID: req.ID, Provider: req.Provider}
	if req.Username != "" {
		acct.Basic = &accounts.BasicCredentials{Username: req.Username, Password: req.Password}
	}
	profile.PutAccount(acct)
	RespondWithJSON(w, http.StatusCreated, map[string]string{"id": req.ID})
}
