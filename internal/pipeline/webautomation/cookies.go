package webautomation

import (
	"context"
	"encoding/json"

	"github.com/chromedp/cdproto/network"

	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/sessioncache"
)

// cdpCookie is the subset of a browser cookie the session cache needs
// to persist and replay a logged-in session across runs.
type cdpCookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain"`
	Path     string `json:"path"`
	Secure   bool   `json:"secure"`
	HTTPOnly bool   `json:"httpOnly"`
}

// Do sets this cookie on the page (implements chromedp's single-action
// shape used by restoreState).
func (c *cdpCookie) Do(ctx context.Context) error {
	return network.SetCookie(c.Name, c.Value).
		WithDomain(c.Domain).
		WithPath(c.Path).
		WithSecure(c.Secure).
		WithHTTPOnly(c.HTTPOnly).
		Do(ctx)
}

func listCookies(ctx context.Context) ([]*cdpCookie, error) {
	cookies, err := network.GetCookies().Do(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*cdpCookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, &cdpCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		})
	}
	return out, nil
}

type cookieJar struct {
	Cookies []*cdpCookie `json:"cookies"`
}

func encodeCookies(cookies []*cdpCookie) (sessioncache.State, error) {
	return json.Marshal(cookieJar{Cookies: cookies})
}

func decodeCookies(state sessioncache.State) ([]*cdpCookie, error) {
	var jar cookieJar
	if err := json.Unmarshal(state, &jar); err != nil {
		return nil, err
	}
	return jar.Cookies, nil
}
