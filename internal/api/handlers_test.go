package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/loanwell/lectern-go/internal/testutil"
)

func doRequest(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestGetVersion(t *testing.T) {
	server, _ := testutil.SetupTestServer(t)
	rr := doRequest(t, server.Router(), http.MethodGet, "/api/version", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "test", resp["version"])
}

func TestHealth(t *testing.T) {
	server, _ := testutil.SetupTestServer(t)
	rr := doRequest(t, server.Router(), http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestCreateProfileAndAccount(t *testing.T) {
	server, app := testutil.SetupTestServer(t)
	router := server.Router()

	rr := doRequest(t, router, http.MethodPost, "/api/profiles",
		map[string]string{"id": "reader", "name": "Reader One"})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = doRequest(t, router, http.MethodPost, "/api/profiles/reader/accounts",
		map[string]string{"id": "library", "username": "reader", "password": "secret"})
	require.Equal(t, http.StatusCreated, rr.Code)

	profile, err := app.Accounts().Profile("reader")
	require.NoError(t, err)
	acct, err := profile.Account("library")
	require.NoError(t, err)
	require.NotNil(t, acct.Basic)
	assert.Equal(t, "reader", acct.Basic.Username)
}

func TestCreateProfileRequiresID(t *testing.T) {
	server, _ := testutil.SetupTestServer(t)
	rr := doRequest(t, server.Router(), http.MethodPost, "/api/profiles",
		map[string]string{"name": "No ID"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateAccountUnknownProfile(t *testing.T) {
	server, _ := testutil.SetupTestServer(t)
	rr := doRequest(t, server.Router(), http.MethodPost, "/api/profiles/ghost/accounts",
		map[string]string{"id": "library"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAdminJobsStatus(t *testing.T) {
	server, _ := testutil.SetupTestServer(t)
	rr := doRequest(t, server.Router(), http.MethodGet, "/api/admin/jobs/status", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestAdminRunUnknownJob(t *testing.T) {
	server, _ := testutil.SetupTestServer(t)
	rr := doRequest(t, server.Router(), http.MethodPost, "/api/admin/jobs/run",
		map[string]string{"job_name": "no-such-job"})
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestDRMEndpointsWithoutSupport(t *testing.T) {
	// The test app is built without a DRM connector.
	server, _ := testutil.SetupTestServer(t)
	router := server.Router()

	rr := doRequest(t, router, http.MethodPost, "/api/admin/drm/activate",
		map[string]string{"profile_id": "reader", "account_id": "library"})
	assert.Equal(t, http.StatusNotImplemented, rr.Code)

	rr = doRequest(t, router, http.MethodPost, "/api/admin/drm/deactivate",
		map[string]string{"profile_id": "reader", "account_id": "library"})
	assert.Equal(t, http.StatusNotImplemented, rr.Code)
}
