package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/shopmindai/chatcore/internal/authn"
)

const (
	ctxUserID  = "userID"
	ctxIsAdmin = "isAdmin"
	ctxLog     = "log"
)

// injectLogger stashes a request-scoped logger entry so handlers and
// mapError can tag log lines with the originating component, matching the
// teacher's per-handler logrus.Entry fields.
func injectLogger(log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ctxLog, log.WithField("path", c.FullPath()))
		c.Next()
	}
}

func logFromContext(c *gin.Context) *logrus.Entry {
	if v, ok := c.Get(ctxLog); ok {
		return v.(*logrus.Entry)
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

// authRequired verifies the Authorization: Bearer <access-token> header on
// every non-public route, per spec.md §6.
func authRequired(signer *authn.Signer) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			respondErr(c, http.StatusUnauthorized, "missing bearer token")
			c.Abort()
			return
		}
		claims, err := signer.Verify(strings.TrimPrefix(header, prefix), authn.TokenAccess)
		if err != nil {
			respondErr(c, http.StatusUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}
		userID, err := claims.UserID()
		if err != nil {
			respondErr(c, http.StatusUnauthorized, "invalid token subject")
			c.Abort()
			return
		}
		c.Set(ctxUserID, userID)
		c.Set(ctxIsAdmin, claims.IsAdmin)
		c.Next()
	}
}

func currentUserID(c *gin.Context) int64 {
	return c.GetInt64(ctxUserID)
}

func currentIsAdmin(c *gin.Context) bool {
	v, _ := c.Get(ctxIsAdmin)
	b, _ := v.(bool)
	return b
}
