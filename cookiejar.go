package socketio

import (
	"net/http"
	"net/url"
	"sync"
)

// staticCookieJar returns the fixed cookie set from SessionOptions.Cookies
// for a host until the server sets cookies for that host. From then on it
// returns the cookies of the server's most recent SetCookies call for
// that host, and the seed set is no longer returned for it.
type staticCookieJar struct {
	mu      sync.Mutex
	seed    []*http.Cookie
	byHost  map[string][]*http.Cookie
}

func newStaticCookieJar(cookies []*http.Cookie) (http.CookieJar, error) {
	return &staticCookieJar{seed: cookies, byHost: make(map[string][]*http.Cookie)}, nil
}

func (j *staticCookieJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.byHost[u.Host] = cookies
}

func (j *staticCookieJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	if stored, ok := j.byHost[u.Host]; ok {
		return stored
	}
	return j.seed
}
