// Package session loads the authenticated cookie set produced by the login
// step and converts it into the form the browser layer consumes. Cookies must
// be loaded before any fetch; staleness is only detected downstream by fetch
// failures.
package session

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/chromedp/cdproto/network"
)

// Cookie is one authenticated cookie record. Upstream sources are not
// schema-controlled, so every field except Name and Value is optional.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain,omitempty"`
	Path     string  `json:"path,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	Expires  float64 `json:"expires,omitempty"`
}

// Error indicates a missing or unusable cookie source. It is fatal to the
// run: retrying with the same bad session cannot help.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("session: %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

var validSameSite = map[string]bool{"Strict": true, "Lax": true, "None": true}

// Load reads a cookie file and normalizes each record. SameSite values
// outside {Strict, Lax, None} are dropped rather than rejected; a file that
// is missing, empty, or not a list of cookie records is an error.
func Load(path string) ([]Cookie, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}

	var cookies []Cookie
	if err := json.Unmarshal(raw, &cookies); err != nil {
		return nil, &Error{Path: path, Err: fmt.Errorf("not a cookie list: %w", err)}
	}
	if len(cookies) == 0 {
		return nil, &Error{Path: path, Err: fmt.Errorf("no cookies in file")}
	}

	normalized := cookies[:0]
	for _, c := range cookies {
		if c.Name == "" {
			return nil, &Error{Path: path, Err: fmt.Errorf("cookie record without a name")}
		}
		if !validSameSite[c.SameSite] {
			c.SameSite = ""
		}
		normalized = append(normalized, c)
	}
	return normalized, nil
}

// CookieParams converts loaded cookies to DevTools protocol parameters,
// defaulting domain and path for records that omit them.
func CookieParams(cookies []Cookie, defaultDomain string) []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if p.Domain == "" {
			p.Domain = defaultDomain
		}
		if p.Path == "" {
			p.Path = "/"
		}
		switch c.SameSite {
		case "Strict":
			p.SameSite = network.CookieSameSiteStrict
		case "Lax":
			p.SameSite = network.CookieSameSiteLax
		case "None":
			p.SameSite = network.CookieSameSiteNone
		}
		params = append(params, p)
	}
	return params
}
