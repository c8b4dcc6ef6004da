package drm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validLicense = `<fulfillmentToken>
  <resourceItemInfo>
    <metadata>
      <format>application/epub+zip</format>
    </metadata>
    <src>https://vendor.example.com/fulfill/123</src>
  </resourceItemInfo>
</fulfillmentToken>`

func TestParseLicense(t *testing.T) {
	doc, err := ParseLicense([]byte(validLicense))
	require.NoError(t, err)
	assert.Equal(t, "application/epub+zip", doc.Format)
	assert.Equal(t, "https://vendor.example.com/fulfill/123", doc.Source)
	assert.Equal(t, []byte(validLicense), doc.Raw)
}

func TestParseLicenseRejectsNonEPUB(t *testing.T) {
	license := `<fulfillmentToken>
  <resourceItemInfo>
    <metadata><format>application/pdf</format></metadata>
    <src>https://vendor.example.com/fulfill/456</src>
  </resourceItemInfo>
</fulfillmentToken>`
	_, err := ParseLicense([]byte(license))
	assert.ErrorIs(t, err, ErrUnsupportedLicenseType)
}

func TestParseLicenseRejectsGarbage(t *testing.T) {
	_, err := ParseLicense([]byte("this is not xml"))
	assert.ErrorIs(t, err, ErrUnparseableLicense)
}
