package request

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/invisibleroads/socketio-client-go/pkg/log"
)

var (
	request_log         = log.NewLog("socketio-client:request")
	cookieNameSanitizer = strings.NewReplacer("\n", "-", "\r", "-")
)

// SanitizeCookieName strips CR/LF from a cookie name before it reaches
// net/http, which would otherwise reject the whole request.
func SanitizeCookieName(n string) string {
	return cookieNameSanitizer.Replace(n)
}

// SanitizeCookieValue produces a suitable cookie-value from v.
// https://tools.ietf.org/html/rfc6265#section-4.1.1
func SanitizeCookieValue(v string, quoted bool) string {
	v = sanitizeOrWarn("Cookie.Value", validCookieValueByte, v)
	if len(v) == 0 {
		return v
	}
	if strings.ContainsAny(v, " ,") || quoted {
		return `"` + v + `"`
	}
	return v
}

func sanitizeOrWarn(fieldName string, valid func(byte) bool, v string) string {
	ok := true
	for i := 0; i < len(v); i++ {
		if valid(v[i]) {
			continue
		}
		request_log.Printlnf("request: invalid byte %q in %s; dropping invalid bytes", v[i], fieldName)
		ok = false
		break
	}
	if ok {
		return v
	}
	buf := make([]byte, 0, len(v))
	for i := 0; i < len(v); i++ {
		if b := v[i]; valid(b) {
			buf = append(buf, b)
		}
	}
	return string(buf)
}

func validCookieValueByte(b byte) bool {
	return 0x20 <= b && b < 0x7f && b != '"' && b != ';' && b != '\\'
}

// RandomString returns a short base36 token derived from the current time
// plus a random suffix.
func RandomString() string {
	timestampStr := strconv.FormatInt(time.Now().UnixMilli(), 36)[3:]
	randomBase36 := strconv.FormatUint(rand.Uint64(), 36)[2:5]
	return timestampStr + randomBase36
}
