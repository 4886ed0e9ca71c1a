package httpapi

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/shopmindai/chatcore/internal/authn"
	"github.com/shopmindai/chatcore/internal/dispatch"
	"github.com/shopmindai/chatcore/internal/model"
	"github.com/shopmindai/chatcore/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func TestClampLimit_UsesDefaultWhenEmpty(t *testing.T) {
	assert.Equal(t, 50, clampLimit("", 50, 1, 100))
}

func TestClampLimit_UsesDefaultWhenNotANumber(t *testing.T) {
	assert.Equal(t, 50, clampLimit("abc", 50, 1, 100))
}

func TestClampLimit_ClampsBelowMin(t *testing.T) {
	assert.Equal(t, 1, clampLimit("0", 50, 1, 100))
}

func TestClampLimit_ClampsAboveMax(t *testing.T) {
	assert.Equal(t, 100, clampLimit("500", 50, 1, 100))
}

func TestClampLimit_PassesThroughInRange(t *testing.T) {
	assert.Equal(t, 25, clampLimit("25", 50, 1, 100))
}

func TestParseIDList_ParsesCommaSeparated(t *testing.T) {
	got, err := parseIDList("1,2,3")
	assert.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, got)
}

func TestParseIDList_RejectsNonNumeric(t *testing.T) {
	_, err := parseIDList("1,x,3")
	assert.Error(t, err)
}

func TestParseIDList_RejectsEmptyString(t *testing.T) {
	_, err := parseIDList("")
	assert.Error(t, err)
}

func TestVisibilityFrom_PassesThroughRawString(t *testing.T) {
	assert.Equal(t, model.VisibilityEveryone, visibilityFrom("everyone"))
}

func TestPickEnriched_FindsMatchingID(t *testing.T) {
	rows := []*model.EnrichedMessage{
		{Message: model.Message{ID: 1}},
		{Message: model.Message{ID: 2}},
	}
	got := pickEnriched(rows, 2)
	if assert.NotNil(t, got) {
		assert.Equal(t, int64(2), got.ID)
	}
}

func TestPickEnriched_NilWhenAbsent(t *testing.T) {
	rows := []*model.EnrichedMessage{{Message: model.Message{ID: 1}}}
	assert.Nil(t, pickEnriched(rows, 99))
}

func TestPtrInt64_PointsToValue(t *testing.T) {
	p := ptrInt64(42)
	if assert.NotNil(t, p) {
		assert.Equal(t, int64(42), *p)
	}
}

func TestMapError_Forbidden(t *testing.T) {
	c, w := newTestContext()
	mapError(c, dispatch.ErrForbidden)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMapError_NotFound(t *testing.T) {
	c, w := newTestContext()
	mapError(c, store.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMapError_Conflict(t *testing.T) {
	c, w := newTestContext()
	mapError(c, store.ErrConflict)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestMapError_ForeignKey(t *testing.T) {
	c, w := newTestContext()
	mapError(c, store.ErrForeignKey)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMapError_Gone(t *testing.T) {
	c, w := newTestContext()
	mapError(c, ErrGone)
	assert.Equal(t, http.StatusGone, w.Code)
}

func TestMapError_ExpiredToken(t *testing.T) {
	c, w := newTestContext()
	mapError(c, authn.ErrExpired)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMapError_UnknownFallsBackToInternal(t *testing.T) {
	c, w := newTestContext()
	mapError(c, errors.New("some unmapped failure"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestBadRequest_WritesBadRequestStatus(t *testing.T) {
	c, w := newTestContext()
	badRequest(c, "bad input")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
