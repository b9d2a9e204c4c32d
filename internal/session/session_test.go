package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCookieFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cookie.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadValidCookies(t *testing.T) {
	path := writeCookieFile(t, `[
		{"name": "session_id", "value": "abc123", "domain": ".example.com", "sameSite": "Lax"},
		{"name": "csrf", "value": "tok", "secure": true, "httpOnly": true}
	]`)

	cookies, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cookies, 2)
	assert.Equal(t, "session_id", cookies[0].Name)
	assert.Equal(t, "Lax", cookies[0].SameSite)
	assert.True(t, cookies[1].Secure)
}

func TestLoadDropsInvalidSameSite(t *testing.T) {
	path := writeCookieFile(t, `[
		{"name": "a", "value": "1", "sameSite": "lax"},
		{"name": "b", "value": "2", "sameSite": "no_restriction"},
		{"name": "c", "value": "3", "sameSite": "Strict"}
	]`)

	cookies, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cookies[0].SameSite)
	assert.Empty(t, cookies[1].SameSite)
	assert.Equal(t, "Strict", cookies[2].SameSite)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)

	var sessErr *Error
	require.True(t, errors.As(err, &sessErr))
	assert.Contains(t, sessErr.Path, "absent.json")
}

func TestLoadEmptyList(t *testing.T) {
	path := writeCookieFile(t, `[]`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no cookies")
}

func TestLoadMalformedJSON(t *testing.T) {
	path := writeCookieFile(t, `{"name": "not-a-list"}`)
	_, err := Load(path)
	require.Error(t, err)

	var sessErr *Error
	assert.True(t, errors.As(err, &sessErr))
}

func TestLoadNamelessRecord(t *testing.T) {
	path := writeCookieFile(t, `[{"value": "orphan"}]`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without a name")
}

func TestCookieParamsDefaults(t *testing.T) {
	params := CookieParams([]Cookie{
		{Name: "a", Value: "1"},
		{Name: "b", Value: "2", Domain: ".other.com", Path: "/shop", SameSite: "None"},
	}, ".example.com")

	require.Len(t, params, 2)
	assert.Equal(t, ".example.com", params[0].Domain)
	assert.Equal(t, "/", params[0].Path)
	assert.Equal(t, network.CookieSameSite(""), params[0].SameSite)

	assert.Equal(t, ".other.com", params[1].Domain)
	assert.Equal(t, "/shop", params[1].Path)
	assert.Equal(t, network.CookieSameSiteNone, params[1].SameSite)
}
