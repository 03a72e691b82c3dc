package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
)

// NewRelicActorMiddleware annotates the request's New Relic transaction
// with the authenticated actor and reports handler errors on it. It must
// run after nrgin.Middleware and AuthMiddleware.
func NewRelicActorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		txn := nrgin.Transaction(c)
		if txn == nil {
			c.Next()
			return
		}

		actorID, role := Actor(c)
		txn.AddAttribute("actor.id", actorID)
		txn.AddAttribute("actor.role", string(role))

		c.Next()

		for _, err := range c.Errors {
			txn.NoticeError(err.Err)
		}
	}
}
