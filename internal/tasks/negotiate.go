package tasks

import (
	"fmt"
	"strings"

	"github.com/loanwell/lectern-go/internal/models"
)

// negotiateContentType reconciles the content type a server declared with the
// set the caller expects. A declared application/octet-stream is treated as
// "trust the caller" and resolves to the first expected type; anything else
// must match the expected set exactly.
func negotiateContentType(received string, expected []string) (string, error) {
	if received == models.TypeOctetStream || received == "" {
		return expected[0], nil
	}
	for _, t := range expected {
		if t == received {
			return received, nil
		}
	}
	return "", fmt.Errorf("expected one of [%s] but the server returned %q",
		strings.Join(expected, ", "), received)
}

// storableTypes are the content types with a local format handle, in the
// order they are preferred during negotiation.
var storableTypes = []string{models.TypeEPUB, models.TypePDF, models.TypeAudiobook}

// expectedTypesFor derives the caller-expected content types for an
// acquisition. A typed acquisition pins expectations to its declared type;
// an untyped one accepts any final or intermediate type the pipeline can
// process.
func expectedTypesFor(acq models.Acquisition) []string {
	if acq.Type != "" {
		return []string{acq.Type}
	}
	expected := make([]string, 0, len(storableTypes)+2)
	expected = append(expected, storableTypes...)
	expected = append(expected, models.TypeAdobeLicense, models.TypeBearerToken)
	return expected
}
