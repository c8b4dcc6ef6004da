// Package accounts is the boundary to the profile/account database. The
// borrow and revoke pipelines only ever look accounts up; credential storage
// itself lives with the collaborator behind the Registry interface.
package accounts

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrProfileNotFound is returned when a profile ID resolves to nothing.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrAccountNotFound is returned when an account ID resolves to nothing
	// within a profile.
	ErrAccountNotFound = errors.New("account not found")
)

// BasicCredentials authenticate catalog requests for an account.
type BasicCredentials struct {
	Username string
	Password string
}

// DeviceCredentials are the post-activation DRM device credentials for an
// account. Absent until the device has been activated with the vendor.
type DeviceCredentials struct {
	VendorID    string
	UserID      string
	DeviceID    string
	ClientToken string
}

// Account is one catalog membership within a profile.
type Account struct {
	ID       string
	Provider string
	Basic    *BasicCredentials
	Device   *DeviceCredentials
}

// Profile groups the accounts of a single reader.
type Profile struct {
	ID   string
	Name string

	mu       sync.RWMutex
	accounts map[string]*Account
}

// NewProfile creates an empty profile.
func NewProfile(id, name string) *Profile {
	return &Profile{ID: id, Name: name, accounts: make(map[string]*Account)}
}

// Account looks up an account by ID.
func (p *Profile) Account(id string) (*Account, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	acct, ok := p.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %q: %w", id, ErrAccountNotFound)
	}
	return acct, nil
}

// PutAccount adds or replaces an account.
func (p *Profile) PutAccount(acct *Account) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accounts[acct.ID] = acct
}

// SetDeviceCredentials attaches (or clears) device credentials on an account.
func (p *Profile) SetDeviceCredentials(accountID string, creds *DeviceCredentials) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	acct, ok := p.accounts[accountID]
	if !ok {
		return fmt.Errorf("account %q: %w", accountID, ErrAccountNotFound)
	}
	acct.Device = creds
	return nil
}

// Registry resolves profiles. The production implementation is whatever
// profile database the host application provides.
type Registry interface {
	Profile(id string) (*Profile, error)
}

// MemRegistry is a thread-safe in-memory Registry used by the server and by
// tests.
type MemRegistry struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

// NewMemRegistry creates an empty registry.
func NewMemRegistry() *MemRegistry {
	return &MemRegistry{profiles: make(map[string]*Profile)}
}

// Profile looks up a profile by ID.
func (r *MemRegistry) Profile(id string) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[id]
	if !ok {
		return nil, fmt.Errorf("profile %q: %w", id, ErrProfileNotFound)
	}
	return p, nil
}

// PutProfile adds or replaces a profile.
func (r *MemRegistry) PutProfile(p *Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.ID] = p
}
