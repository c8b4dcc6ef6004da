package accounts_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/loanwell/lectern-go/internal/accounts"
)

func TestRegistryLookups(t *testing.T) {
	reg := accounts.NewMemRegistry()

	_, err := reg.Profile("reader")
	assert.ErrorIs(t, err, accounts.ErrProfileNotFound)

	profile := accounts.NewProfile("reader", "Reader One")
	reg.PutProfile(profile)

	got, err := reg.Profile("reader")
	require.NoError(t, err)

	_, err = got.Account("library")
	assert.ErrorIs(t, err, accounts.ErrAccountNotFound)

	got.PutAccount(&accounts.Account{
		ID:    "library",
		Basic: &accounts.BasicCredentials{Username: "reader", Password: "secret"},
	})
	acct, err := got.Account("library")
	require.NoError(t, err)
	assert.Equal(t, "reader", acct.Basic.Username)
	assert.Nil(t, acct.Device)
}

func TestSetDeviceCredentials(t *testing.T) {
	profile := accounts.NewProfile("reader", "Reader One")
	profile.PutAccount(&accounts.Account{ID: "library"})

	creds := &accounts.DeviceCredentials{VendorID: "vendor", UserID: "u1", DeviceID: "d1", ClientToken: "tok"}
	require.NoError(t, profile.SetDeviceCredentials("library", creds))

	acct, err := profile.Account("library")
	require.NoError(t, err)
	require.NotNil(t, acct.Device)
	assert.Equal(t, "u1", acct.Device.UserID)

	require.NoError(t, profile.SetDeviceCredentials("library", nil))
	acct, _ = profile.Account("library")
	assert.Nil(t, acct.Device)

	assert.ErrorIs(t, profile.SetDeviceCredentials("missing", creds), accounts.ErrAccountNotFound)
}
