package auctionhandler

import (
	"net/http"
	"strings"

	"auctiongate/internal/authz"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const actorKey = "auction_actor"

type TokenVerifier interface {
	Verify(token string) (authz.Actor, error)
}

// Authenticate resolves the caller from an "Authorization: Bearer" header.
// Requests without a valid token stop here with 401.
func Authenticate(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Envelope{
				Status:  "error",
				Code:    "unauthenticated",
				Message: "missing bearer token",
			})
			return
		}
		actor, err := v.Verify(strings.TrimSpace(raw))
		if err != nil {
			zap.L().Debug("auth_rejected", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, Envelope{
				Status:  "error",
				Code:    "unauthenticated",
				Message: err.Error(),
			})
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

func actorFrom(c *gin.Context) authz.Actor {
	if v, ok := c.Get(actorKey); ok {
		if a, ok := v.(authz.Actor); ok {
			return a
		}
	}
	return authz.Actor{}
}
