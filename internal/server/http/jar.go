package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ginJar adapts a gin context to service.CookieJar. Set-Cookie headers are queued on
// the response writer immediately, so they must be set before the body is written.
type ginJar struct{ c *gin.Context }

func (j ginJar) Get(name string) (string, bool) {
	v, err := j.c.Cookie(name)
	if err != nil {
		return "", false
	}
	return v, true
}

func (j ginJar) Set(ck *http.Cookie) { http.SetCookie(j.c.Writer, ck) }
