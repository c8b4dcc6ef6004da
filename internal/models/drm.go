package models

import "time"

// DRMRights is the opaque rights blob attached to a DRM-protected EPUB after a
// successful license fulfillment.
type DRMRights struct {
	Issuer     string     `json:"issuer"`
	Returnable bool       `json:"returnable"`
	Expiry     *time.Time `json:"expiry,omitempty"`
	Blob       []byte     `json:"blob,omitempty"`
}
