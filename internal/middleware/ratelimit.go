package middleware

import (
	"time"

	"github.com/didip/tollbooth/v6"
	"github.com/didip/tollbooth/v6/limiter"
	"github.com/gin-gonic/gin"

	apperrors "tarotjournal/internal/errors"
	"tarotjournal/internal/logger"
)

// RateLimit limits each client IP to perSecond requests per second with an
// equal burst. A non-positive rate disables the limit.
func RateLimit(perSecond float64) gin.HandlerFunc {
	if perSecond <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	lmt := tollbooth.NewLimiter(perSecond, &limiter.ExpirableOptions{DefaultExpirationTTL: time.Hour})
	lmt.SetIPLookups([]string{"RemoteAddr"})
	if burst := int(perSecond); burst > 1 {
		lmt.SetBurst(burst)
	}

	return func(c *gin.Context) {
		if httpErr := tollbooth.LimitByRequest(lmt, c.Writer, c.Request); httpErr != nil {
			logger.Get().Warnw("rate limit exceeded", "client_ip", c.ClientIP(), "path", c.Request.URL.Path)
			_ = c.Error(apperrors.ErrTooManyRequests)
			c.Abort()
			return
		}
		c.Next()
	}
}
