package slot

import (
	"net/http"
	"strconv"
	"strings"
)

// DefaultUserCookie is the cookie carrying the visitor's customer type.
const DefaultUserCookie = "User"

const customerTypeKey = "CustomerType"

// Environment is the page context a slot is evaluated in. Unknown viewport
// dimensions are zero.
type Environment struct {
	ViewportWidth  int    `json:"viewport_width"`
	ViewportHeight int    `json:"viewport_height"`
	URLFragment    string `json:"url_fragment"`
	UserType       string `json:"user_type"`
}

// ParseUserType extracts the CustomerType code from a User cookie value of
// the form CustomerType=<code>, optionally among other &-separated pairs.
func ParseUserType(cookieValue string) string {
	for _, pair := range strings.Split(cookieValue, "&") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if ok && k == customerTypeKey {
			return v
		}
	}
	return ""
}

// EnvironmentFromRequest derives the evaluation environment from an incoming
// request. Browsers never send the URL fragment or the layout viewport, so
// the fragment comes from the fragment query parameter or X-Url-Fragment and
// the viewport from vw/vh or the viewport client hints.
func EnvironmentFromRequest(r *http.Request, cookieName string) Environment {
	if cookieName == "" {
		cookieName = DefaultUserCookie
	}
	q := r.URL.Query()

	env := Environment{
		ViewportWidth:  firstInt(q.Get("vw"), r.Header.Get("Sec-CH-Viewport-Width"), r.Header.Get("Viewport-Width")),
		ViewportHeight: firstInt(q.Get("vh"), r.Header.Get("Sec-CH-Viewport-Height")),
		URLFragment:    q.Get("fragment"),
	}
	if env.URLFragment == "" {
		env.URLFragment = r.Header.Get("X-Url-Fragment")
	}
	if c, err := r.Cookie(cookieName); err == nil {
		env.UserType = ParseUserType(c.Value)
	}
	return env
}

// firstInt returns the first value that parses as a non-negative integer.
func firstInt(values ...string) int {
	for _, v := range values {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n >= 0 {
			return n
		}
	}
	return 0
}
