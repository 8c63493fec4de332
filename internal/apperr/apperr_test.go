package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:   http.StatusBadRequest,
		KindUnauthorized: http.StatusUnauthorized,
		KindForbidden:    http.StatusForbidden,
		KindNotFound:     http.StatusNotFound,
		KindConflict:     http.StatusConflict,
		KindInternal:     http.StatusInternalServerError,
	}
	for k, want := range cases {
		assert.Equal(t, want, k.HTTPStatus(), k.String())
	}
}

func TestFrom(t *testing.T) {
	assert.Nil(t, From(nil))

	v := Validation("report.title_too_short")
	wrapped := fmt.Errorf("create report: %w", v)
	got := From(wrapped)
	assert.Same(t, v, got)
	assert.Equal(t, KindValidation, KindOf(wrapped))

	cause := errors.New("disk on fire")
	internal := From(cause)
	assert.Equal(t, KindInternal, internal.Kind)
	assert.Equal(t, "common.internal_error", internal.MessageID)
	assert.ErrorIs(t, internal, cause)
}

func TestErrorString(t *testing.T) {
	e := Conflict("content.page_exists").WithData(map[string]any{"Name": "rules"})
	assert.Equal(t, "conflict: content.page_exists", e.Error())
	assert.Equal(t, "rules", e.Data["Name"])

	i := Internal(errors.New("boom"))
	assert.Equal(t, "internal: common.internal_error: boom", i.Error())
}
