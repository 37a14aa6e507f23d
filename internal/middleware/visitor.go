package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/jeromeabel/lapreuveduconcept/internal/models"
	"github.com/jeromeabel/lapreuveduconcept/internal/visitor"
)

const visitorIDKey = "visitor_id"

// VisitorMiddleware resolves the visitor cookie, issuing a new one when it
// is missing or invalid, and stores the visitor id on the context.
func VisitorMiddleware(p *visitor.Provider, secureCookie bool, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(visitor.CookieName)

		id, err := p.GetOrAssign(token)
		if err != nil {
			log.WithError(err).Error("failed to assign visitor id")
			c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error"})
			return
		}

		if id.Issued {
			http.SetCookie(c.Writer, visitor.Cookie(id, secureCookie))
		}

		c.Set(visitorIDKey, id.VisitorID)
		c.Next()
	}
}

// VisitorID returns the id set by VisitorMiddleware, or "" if it did not run.
func VisitorID(c *gin.Context) string {
	return c.GetString(visitorIDKey)
}
