package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/loanwell/lectern-go/internal/models"
)

func TestStatusForAvailability(t *testing.T) {
	id := models.BookID("book-1")
	until := time.Now().Add(24 * time.Hour)
	pos := 3

	cases := []struct {
		avail models.Availability
		want  models.BookStatusKind
	}{
		{models.AvailHoldable{}, models.StatusHoldable},
		{models.AvailHeld{QueuePosition: &pos}, models.StatusHeld},
		{models.AvailHeldReady{EndDate: &until}, models.StatusHeldReady},
		{models.AvailLoanable{}, models.StatusLoanable},
		{models.AvailLoaned{EndDate: &until}, models.StatusLoaned},
		// Open access reads as loaned: the reader can already use the book.
		{models.AvailOpenAccess{}, models.StatusLoaned},
		{models.AvailRevoked{RevokeURI: "https://example.com/r"}, models.StatusRevoked},
	}
	for _, tc := range cases {
		st := models.StatusForAvailability(id, tc.avail)
		assert.Equal(t, tc.want, st.Kind, "availability %T", tc.avail)
		assert.Equal(t, id, st.BookID)
	}

	held := models.StatusForAvailability(id, models.AvailHeld{QueuePosition: &pos, EndDate: &until})
	assert.Equal(t, &pos, held.QueuePosition)
	assert.Equal(t, &until, held.EndDate)
}
