package api

import (
	"encoding/json"
	"net/http"

	"github.com/loanwell/lectern-go/internal/accounts"
)

func (s *Server) handleGetAdminJobsStatus(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, s.app.JobManager().GetStatus())
}

func (s *Server) handleRunAdminJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		JobName string `json:"job_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := s.app.JobManager().RunJob(req.JobName, s.app); err != nil {
		RespondWithError(w, http.StatusConflict, err.Error())
		return
	}
	RespondWithJSON(w, http.StatusAccepted, map[string]string{"status": "started", "job": req.JobName})
}

// handleDRMActivate activates this device with the DRM vendor and stores the
// resulting credentials on the account.
func (s *Server) handleDRMActivate(w http.ResponseWriter, r *http.Request) {
	bridge := s.app.Tasks().DRMBridge()
	if bridge == nil {
		RespondWithError(w, http.StatusNotImplemented, "This build does not support DRM")
		return
	}

	var req struct {
		ProfileID   string `json:"profile_id"`
		AccountID   string `json:"account_id"`
		VendorID    string `json:"vendor_id"`
		ClientToken string `json:"client_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if req.VendorID == "" {
		req.VendorID = s.app.Config().DRM.Vendor
	}

	profile, err := s.app.Accounts().Profile(req.ProfileID)
	if err != nil {
		RespondWithError(w, http.StatusNotFound, "Profile not found")
		return
	}
	if _, err := profile.Account(req.AccountID); err != nil {
		RespondWithError(w, http.StatusNotFound, "Account not found")
		return
	}

	activations, err := bridge.Activate(r.Context(), req.VendorID, req.ClientToken)
	if err != nil {
		RespondWithError(w, http.StatusBadGateway, "Activation failed: "+err.Error())
		return
	}

	first := activations[0]
	creds := &accounts.DeviceCredentials{
		VendorID:    first.Vendor,
		UserID:      first.UserID,
		DeviceID:    first.DeviceID,
		ClientToken: req.ClientToken,
	}
	if err := profile.SetDeviceCredentials(req.AccountID, creds); err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to store device credentials")
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{
		"vendor_id": creds.VendorID,
		"user_id":   creds.UserID,
		"device_id": creds.DeviceID,
	})
}

// handleDRMDeactivate releases the device activation and clears the stored
// credentials.
func (s *Server) handleDRMDeactivate(w http.ResponseWriter, r *http.Request) {
	bridge := s.app.Tasks().DRMBridge()
	if bridge == nil {
		RespondWithError(w, http.StatusNotImplemented, "This build does not support DRM")
		return
	}

	var req struct {
		ProfileID string `json:"profile_id"`
		AccountID string `json:"account_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	profile, err := s.app.Accounts().Profile(req.ProfileID)
	if err != nil {
		RespondWithError(w, http.StatusNotFound, "Profile not found")
		return
	}
	acct, err := profile.Account(req.AccountID)
	if err != nil {
		RespondWithError(w, http.StatusNotFound, "Account not found")
		return
	}
	if acct.Device == nil {
		RespondWithError(w, http.StatusConflict, "The device is not activated")
		return
	}

	if err := bridge.Deactivate(r.Context(), acct.Device.VendorID, acct.Device.UserID, acct.Device.ClientToken); err != nil {
		RespondWithError(w, http.StatusBadGateway, "Deactivation failed: "+err.Error())
		return
	}
	if err := profile.SetDeviceCredentials(req.AccountID, nil); err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to clear device credentials")
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}
