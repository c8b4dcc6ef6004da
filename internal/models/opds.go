package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// AcquisitionRelation tags what kind of transaction an acquisition link offers.
type AcquisitionRelation string

const (
	RelationBorrow     AcquisitionRelation = "http://opds-spec.org/acquisition/borrow"
	RelationGeneric    AcquisitionRelation = "http://opds-spec.org/acquisition"
	RelationOpenAccess AcquisitionRelation = "http://opds-spec.org/acquisition/open-access"
	RelationBuy        AcquisitionRelation = "http://opds-spec.org/acquisition/buy"
	RelationSample     AcquisitionRelation = "http://opds-spec.org/acquisition/sample"
	RelationSubscribe  AcquisitionRelation = "http://opds-spec.org/acquisition/subscribe"
)

// Acquisition is a single link in a catalog entry through which content can be
// obtained.
type Acquisition struct {
	Relation AcquisitionRelation `json:"rel"`
	Href     string              `json:"href"`
	Type     string              `json:"type"`
}

// Entry is the catalog's view of a publication: identity, metadata, the links
// through which it can be acquired, and the current availability reported by
// the server.
type Entry struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Updated      time.Time     `json:"updated"`
	Acquisitions []Acquisition `json:"acquisitions"`
	Availability Availability  `json:"-"`
}

type entryWire struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	Updated      time.Time         `json:"updated"`
	Acquisitions []Acquisition     `json:"acquisitions"`
	Availability *availabilityWire `json:"availability,omitempty"`
}

// MarshalJSON flattens the availability variant into its wire form.
func (e Entry) MarshalJSON() ([]byte, error) {
	w := entryWire{
		ID:           e.ID,
		Title:        e.Title,
		Updated:      e.Updated,
		Acquisitions: e.Acquisitions,
	}
	if e.Availability != nil {
		aw := availabilityToWire(e.Availability)
		w.Availability = &aw
	}
	return json.Marshal(w)
}

// UnmarshalJSON restores the availability variant from its wire form. An entry
// without an availability block defaults to loanable, matching how catalogs
// omit it for books that are simply on the shelf.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var w entryWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	e.ID = w.ID
	e.Title = w.Title
	e.Updated = w.Updated
	e.Acquisitions = w.Acquisitions
	if w.Availability == nil {
		e.Availability = AvailLoanable{}
		return nil
	}
	av, err := w.Availability.toAvailability()
	if err != nil {
		return err
	}
	e.Availability = av
	return nil
}

// Availability is the closed set of loan states a catalog can report for an
// entry. Consumers switch over the concrete types; the marker method keeps the
// set closed to this package.
type Availability interface {
	isAvailability()
}

type AvailHoldable struct{}

type AvailHeld struct {
	QueuePosition *int
	EndDate       *time.Time
	RevokeURI     *string
}

type AvailHeldReady struct {
	EndDate   *time.Time
	RevokeURI *string
}

type AvailLoanable struct{}

type AvailLoaned struct {
	EndDate   *time.Time
	RevokeURI *string
}

type AvailOpenAccess struct {
	RevokeURI *string
}

// AvailRevoked carries the one mandatory revoke URI in the protocol.
type AvailRevoked struct {
	RevokeURI string
}

func (AvailHoldable) isAvailability()   {}
func (AvailHeld) isAvailability()       {}
func (AvailHeldReady) isAvailability()  {}
func (AvailLoanable) isAvailability()   {}
func (AvailLoaned) isAvailability()     {}
func (AvailOpenAccess) isAvailability() {}
func (AvailRevoked) isAvailability()    {}

// AvailabilityState returns the wire name of an availability variant.
func AvailabilityState(a Availability) string {
	switch a.(type) {
	case AvailHoldable:
		return "holdable"
	case AvailHeld:
		return "held"
	case AvailHeldReady:
		return "ready"
	case AvailLoanable:
		return "loanable"
	case AvailLoaned:
		return "loaned"
	case AvailOpenAccess:
		return "open-access"
	case AvailRevoked:
		return "revoked"
	default:
		return "unknown"
	}
}

type availabilityWire struct {
	State         string     `json:"state"`
	QueuePosition *int       `json:"position,omitempty"`
	EndDate       *time.Time `json:"until,omitempty"`
	RevokeHref    *string    `json:"revoke_href,omitempty"`
}

func availabilityToWire(a Availability) availabilityWire {
	w := availabilityWire{State: AvailabilityState(a)}
	switch v := a.(type) {
	case AvailHeld:
		w.QueuePosition = v.QueuePosition
		w.EndDate = v.EndDate
		w.RevokeHref = v.RevokeURI
	case AvailHeldReady:
		w.EndDate = v.EndDate
		w.RevokeHref = v.RevokeURI
	case AvailLoaned:
		w.EndDate = v.EndDate
		w.RevokeHref = v.RevokeURI
	case AvailOpenAccess:
		w.RevokeHref = v.RevokeURI
	case AvailRevoked:
		href := v.RevokeURI
		w.RevokeHref = &href
	}
	return w
}

func (w *availabilityWire) toAvailability() (Availability, error) {
	switch w.State {
	case "holdable":
		return AvailHoldable{}, nil
	case "held":
		return AvailHeld{QueuePosition: w.QueuePosition, EndDate: w.EndDate, RevokeURI: w.RevokeHref}, nil
	case "ready":
		return AvailHeldReady{EndDate: w.EndDate, RevokeURI: w.RevokeHref}, nil
	case "loanable":
		return AvailLoanable{}, nil
	case "loaned":
		return AvailLoaned{EndDate: w.EndDate, RevokeURI: w.RevokeHref}, nil
	case "open-access":
		return AvailOpenAccess{RevokeURI: w.RevokeHref}, nil
	case "revoked":
		if w.RevokeHref == nil {
			return nil, fmt.Errorf("revoked availability is missing its revoke link")
		}
		return AvailRevoked{RevokeURI: *w.RevokeHref}, nil
	default:
		return nil, fmt.Errorf("unrecognized availability state %q", w.State)
	}
}
