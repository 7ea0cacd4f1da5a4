package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	startedAtKey = "meta_started_at"
	cacheHitKey  = "meta_cache_hit"
)

// ResponseTiming remembers when the request entered the chain so handlers can
// report processing time in the envelope meta.
func ResponseTiming() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(startedAtKey, time.Now())
		c.Next()
	}
}

// MarkCacheHit records whether the payload was served from cache.
func MarkCacheHit(c *gin.Context, hit bool) {
	c.Set(cacheHitKey, hit)
}

// Meta builds the envelope meta for the current request. It returns nil when
// nothing was recorded.
func Meta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	meta := map[string]interface{}{}
	if v, ok := c.Get(startedAtKey); ok {
		if started, ok := v.(time.Time); ok {
			meta["processing_time_ms"] = time.Since(started).Milliseconds()
		}
	}
	if hit, ok := c.Get(cacheHitKey); ok {
		meta["cache_hit"] = hit
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}
