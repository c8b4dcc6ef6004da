package jobs

import (
	"log"
	"time"

	"github.com/loanwell/lectern-go/internal/models"
)

// sweepExpiredLoans finds loaned books whose loan end has passed and publishes
// a loanable status for each. The local copy stays on disk; removing it is a
// decision for the reader, not the sweep.
func sweepExpiredLoans(ctx JobContext) {
	books, err := ctx.Books().ListExpiredLoans(time.Now())
	if err != nil {
		log.Printf("Loan sweep could not list expired loans: %v", err)
		return
	}
	if len(books) == 0 {
		return
	}

	for _, book := range books {
		ctx.StatusRegistry().Publish(models.BookStatus{
			BookID:  book.ID,
			Kind:    models.StatusLoanable,
			Message: "The loan has expired.",
		})
	}
	log.Printf("Loan sweep flagged %d expired loan(s).", len(books))
}
