package cors

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	allowedHeaders = strings.Join([]string{"Authorization", "Content-Type", "X-Requested-With", "X-Request-ID"}, ", ")
	allowedMethods = strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}, ", ")
	// Download names and request IDs must be readable by browser clients.
	exposedHeaders = strings.Join([]string{"Content-Disposition", "X-Request-ID"}, ", ")
)

// Options configures the middleware.
type Options struct {
	AllowedOrigins   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

type policy struct {
	anyOrigin   bool
	origins     map[string]struct{}
	credentials bool
	maxAge      string
}

func newPolicy(opts Options) policy {
	p := policy{
		anyOrigin:   len(opts.AllowedOrigins) == 0,
		origins:     make(map[string]struct{}, len(opts.AllowedOrigins)),
		credentials: opts.AllowCredentials,
	}
	for _, origin := range opts.AllowedOrigins {
		p.origins[normalizeOrigin(origin)] = struct{}{}
	}
	if opts.MaxAge > 0 {
		p.maxAge = strconv.Itoa(int(opts.MaxAge / time.Second))
	}
	return p
}

func (p policy) allows(origin string) bool {
	if p.anyOrigin {
		return true
	}
	_, ok := p.origins[normalizeOrigin(origin)]
	return ok
}

// New returns a CORS middleware. Preflight requests are answered directly
// with 204 and never reach the route handlers.
func New(opts Options) gin.HandlerFunc {
	p := newPolicy(opts)

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Add("Vary", "Origin")

		origin := c.GetHeader("Origin")
		switch {
		case origin != "" && p.allows(origin):
			h.Set("Access-Control-Allow-Origin", origin)
			if p.credentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
		case origin == "" && p.anyOrigin:
			h.Set("Access-Control-Allow-Origin", "*")
		}
		h.Set("Access-Control-Expose-Headers", exposedHeaders)

		if c.Request.Method != http.MethodOptions {
			c.Next()
			return
		}

		h.Set("Access-Control-Allow-Headers", allowedHeaders)
		h.Set("Access-Control-Allow-Methods", allowedMethods)
		if p.maxAge != "" {
			h.Set("Access-Control-Max-Age", p.maxAge)
		}
		c.AbortWithStatus(http.StatusNoContent)
	}
}

func normalizeOrigin(origin string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(origin), "/"))
}
