package helpers

import (
	"errors"
	"net/url"
	"path"
	"strings"
)

// trackingParams are dropped from article links; wire services append them
// when the same story is syndicated across feeds.
var trackingParams = []string{"utm_", "gclid", "dclid", "fbclid", "msclkid", "igshid", "ocid", "cmpid"}

// CanonicalURL normalises an article link so syndicated copies compare equal.
// Only absolute http(s) links are accepted.
func CanonicalURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", errors.New("not an http url")
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", errors.New("url missing host")
	}
	if port := u.Port(); port != "" && !(u.Scheme == "http" && port == "80") && !(u.Scheme == "https" && port == "443") {
		host += ":" + port
	}
	u.Host = strings.TrimPrefix(host, "www.")
	u.User = nil
	u.Fragment = ""

	p := path.Clean("/" + u.Path)
	if p != "/" && strings.HasSuffix(u.Path, "/") {
		p += "/"
	}
	u.Path, u.RawPath = p, ""

	q := u.Query()
	for key := range q {
		if isTracking(strings.ToLower(key)) {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode() // Encode sorts by key
	return u.String(), nil
}

func isTracking(key string) bool {
	for _, p := range trackingParams {
		if key == p || (strings.HasSuffix(p, "_") && strings.HasPrefix(key, p)) {
			return true
		}
	}
	return false
}
