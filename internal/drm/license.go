package drm

import (
	"encoding/xml"
	"errors"
	"fmt"

	"github.com/loanwell/lectern-go/internal/models"
)

var (
	// ErrUnparseableLicense is returned when a license document cannot be
	// decoded at all.
	ErrUnparseableLicense = errors.New("license document could not be parsed")
	// ErrUnsupportedLicenseType is returned when a license declares a
	// content type other than the one supported format.
	ErrUnsupportedLicenseType = errors.New("license document declares an unsupported content type")
)

// LicenseDocument is the offline license (ACSM-equivalent) a catalog serves
// in place of DRM-protected content.
type LicenseDocument struct {
	XMLName xml.Name `xml:"fulfillmentToken"`
	Format  string   `xml:"resourceItemInfo>metadata>format"`
	Source  string   `xml:"resourceItemInfo>src"`
	Raw     []byte   `xml:"-"`
}

// ParseLicense decodes and validates a license document. Only EPUB content
// can be fulfilled; any other declared format is rejected up front so the
// connector is never handed a license it cannot honor.
func ParseLicense(data []byte) (*LicenseDocument, error) {
	var doc LicenseDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseableLicense, err)
	}
	if doc.Format != models.TypeEPUB {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLicenseType, doc.Format)
	}
	doc.Raw = data
	return &doc, nil
}
