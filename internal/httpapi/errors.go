package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shopmindai/chatcore/internal/authn"
	"github.com/shopmindai/chatcore/internal/dispatch"
	"github.com/shopmindai/chatcore/internal/store"
)

// ErrGone is the revoked-invite sentinel that mapError turns into 410. The
// invite handlers answer a revoked token with 410 themselves (JoinInvite
// translates dispatch's store.ErrConflict), so no handler in this package
// currently passes ErrGone to mapError.
var ErrGone = errors.New("httpapi: gone")

// mapError translates the store/authz/dispatch error taxonomy into the
// status/body policy of spec.md §7, collapsing what the teacher's handlers
// did with a scattered c.JSON(http.StatusInternalServerError, ...) call per
// site into one function every handler routes through.
func mapError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, dispatch.ErrForbidden):
		respondErr(c, http.StatusForbidden, "forbidden")
	case errors.Is(err, store.ErrNotFound):
		respondErr(c, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrConflict):
		respondErr(c, http.StatusConflict, "conflict")
	case errors.Is(err, store.ErrForeignKey):
		respondErr(c, http.StatusBadRequest, "referenced entity does not exist")
	case errors.Is(err, ErrGone):
		respondErr(c, http.StatusGone, "invite revoked")
	case errors.Is(err, authn.ErrExpired), errors.Is(err, authn.ErrInvalidToken), errors.Is(err, authn.ErrWrongTokenType):
		respondErr(c, http.StatusUnauthorized, "invalid or expired token")
	default:
		logFromContext(c).WithError(err).Error("unhandled error")
		respondErr(c, http.StatusInternalServerError, "internal error")
	}
}

func respondErr(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func badRequest(c *gin.Context, message string) {
	respondErr(c, http.StatusBadRequest, message)
}
