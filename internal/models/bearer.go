package models

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

// BearerToken is the short-lived token document some catalogs serve in place
// of content. The client is expected to re-fetch from Location using the token
// as bearer authorization.
type BearerToken struct {
	AccessToken string
	Expires     time.Time
	Location    string
}

type bearerTokenWire struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	Location    string `json:"location"`
}

// ParseBearerToken decodes a bearer token document. Expiry is computed as
// now + expires_in at parse time.
func ParseBearerToken(data []byte, now time.Time) (*BearerToken, error) {
	var w bearerTokenWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("malformed bearer token document: %w", err)
	}
	if w.AccessToken == "" {
		return nil, fmt.Errorf("bearer token document has no access_token")
	}
	loc, err := url.Parse(w.Location)
	if err != nil || !loc.IsAbs() {
		return nil, fmt.Errorf("bearer token location %q is not an absolute URI", w.Location)
	}
	return &BearerToken{
		AccessToken: w.AccessToken,
		Expires:     now.Add(time.Duration(w.ExpiresIn) * time.Second),
		Location:    w.Location,
	}, nil
}
