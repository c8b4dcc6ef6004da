package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/loanwell/lectern-go/internal/models"
)

func TestParseBearerToken(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	raw := `{"access_token":"abc123","expires_in":60,"location":"https://example.com/content.epub"}`

	token, err := models.ParseBearerToken([]byte(raw), now)
	require.NoError(t, err)
	assert.Equal(t, "abc123", token.AccessToken)
	assert.Equal(t, "https://example.com/content.epub", token.Location)
	assert.True(t, token.Expires.Equal(now.Add(60*time.Second)))
}

func TestParseBearerTokenRejectsMissingToken(t *testing.T) {
	_, err := models.ParseBearerToken([]byte(`{"location":"https://example.com/x"}`), time.Now())
	assert.Error(t, err)
}

func TestParseBearerTokenRejectsRelativeLocation(t *testing.T) {
	_, err := models.ParseBearerToken([]byte(`{"access_token":"abc","location":"/content.epub"}`), time.Now())
	assert.Error(t, err)
}

func TestParseBearerTokenRejectsGarbage(t *testing.T) {
	_, err := models.ParseBearerToken([]byte("not json"), time.Now())
	assert.Error(t, err)
}
