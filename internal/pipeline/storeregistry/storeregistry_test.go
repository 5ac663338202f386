package storeregistry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pipelineerrors "github.com/wagid-sheikh/simplify-downloader/internal/errors"
)

const validConfigJSON = `{
	"urls": {
		"login": "https://td.example.com/login",
		"home": "https://td.example.com/home",
		"orders_link": "https://td.example.com/orders"
	},
	"login_selector": {
		"username": "#username",
		"password": "#password",
		"submit": "#submit"
	},
	"username": "storeop",
	"password": "secret"
}`

func TestParseSyncConfigValid(t *testing.T) {
	cfg, err := ParseSyncConfig([]byte(validConfigJSON))
	require.NoError(t, err)
	assert.Equal(t, "https://td.example.com/login", cfg.URLs.Login)
	assert.Equal(t, "#username", cfg.LoginSelectors.Username)
}

func TestParseSyncConfigMissingRequiredField(t *testing.T) {
	_, err := ParseSyncConfig([]byte(`{"urls": {"home": "https://x.example.com"}}`))
	require.Error(t, err)
	assert.Equal(t, pipelineerrors.KindFatalConfig, pipelineerrors.KindOf(err))
}

func TestParseSyncConfigInvalidJSON(t *testing.T) {
	_, err := ParseSyncConfig([]byte(`not json`))
	require.Error(t, err)
	assert.Equal(t, pipelineerrors.KindFatalConfig, pipelineerrors.KindOf(err))
}

func TestParseSyncConfigIgnoresUnknownFields(t *testing.T) {
	raw := []byte(`{
		"urls": {"login": "https://x.example.com/l", "home": "https://x.example.com/h", "orders_link": "https://x.example.com/o"},
		"login_selector": {"username": "#u", "password": "#p", "submit": "#s"},
		"username": "a", "password": "b",
		"some_future_field": "ignored"
	}`)
	_, err := ParseSyncConfig(raw)
	require.NoError(t, err)
}
