package models

// Content types the fulfillment pipeline recognizes.
const (
	TypeEPUB        = "application/epub+zip"
	TypePDF         = "application/pdf"
	TypeAudiobook   = "application/audiobook+json"
	TypeOctetStream = "application/octet-stream"

	// TypeAdobeLicense is the offline license document (ACSM) handed out by
	// catalogs in place of the book when Adobe DRM is in play.
	TypeAdobeLicense = "application/vnd.adobe.adept+xml"

	// TypeBearerToken is a short-lived token document pointing at the real
	// content location.
	TypeBearerToken = "application/vnd.librarysimplified.bearer-token+json"
)
