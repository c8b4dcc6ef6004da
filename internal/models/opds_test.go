package models_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/loanwell/lectern-go/internal/models"
)

func TestEntryUnmarshalDefaultsToLoanable(t *testing.T) {
	raw := `{"id":"urn:book:1","title":"A Book","acquisitions":[{"rel":"http://opds-spec.org/acquisition/open-access","href":"https://example.com/book.epub","type":"application/epub+zip"}]}`

	var entry models.Entry
	require.NoError(t, json.Unmarshal([]byte(raw), &entry))
	assert.Equal(t, "urn:book:1", entry.ID)
	assert.IsType(t, models.AvailLoanable{}, entry.Availability)
}

func TestEntryAvailabilityRoundTrip(t *testing.T) {
	until := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	revoke := "https://example.com/loans/1/revoke"
	entry := models.Entry{
		ID:    "urn:book:2",
		Title: "Borrowed Book",
		Availability: models.AvailLoaned{
			EndDate:   &until,
			RevokeURI: &revoke,
		},
	}

	data, err := json.Marshal(entry)
	require.NoError(t, err)

	var decoded models.Entry
	require.NoError(t, json.Unmarshal(data, &decoded))

	loaned, ok := decoded.Availability.(models.AvailLoaned)
	require.True(t, ok, "expected loaned availability, got %T", decoded.Availability)
	require.NotNil(t, loaned.EndDate)
	assert.True(t, loaned.EndDate.Equal(until))
	require.NotNil(t, loaned.RevokeURI)
	assert.Equal(t, revoke, *loaned.RevokeURI)
}

func TestEntryUnmarshalHeldCarriesQueuePosition(t *testing.T) {
	raw := `{"id":"urn:book:3","title":"Popular Book","availability":{"state":"held","position":7,"revoke_href":"https://example.com/holds/3"}}`

	var entry models.Entry
	require.NoError(t, json.Unmarshal([]byte(raw), &entry))

	held, ok := entry.Availability.(models.AvailHeld)
	require.True(t, ok)
	require.NotNil(t, held.QueuePosition)
	assert.Equal(t, 7, *held.QueuePosition)
	require.NotNil(t, held.RevokeURI)
}

func TestEntryUnmarshalRevokedRequiresLink(t *testing.T) {
	raw := `{"id":"urn:book:4","availability":{"state":"revoked"}}`
	var entry models.Entry
	err := json.Unmarshal([]byte(raw), &entry)
	assert.Error(t, err)
}

func TestEntryUnmarshalUnknownState(t *testing.T) {
	raw := `{"id":"urn:book:5","availability":{"state":"vaporized"}}`
	var entry models.Entry
	err := json.Unmarshal([]byte(raw), &entry)
	assert.Error(t, err)
}

func TestAvailabilityState(t *testing.T) {
	cases := map[string]models.Availability{
		"holdable":    models.AvailHoldable{},
		"held":        models.AvailHeld{},
		"ready":       models.AvailHeldReady{},
		"loanable":    models.AvailLoanable{},
		"loaned":      models.AvailLoaned{},
		"open-access": models.AvailOpenAccess{},
		"revoked":     models.AvailRevoked{RevokeURI: "https://example.com/r"},
	}
	for want, avail := range cases {
		assert.Equal(t, want, models.AvailabilityState(avail))
	}
}
