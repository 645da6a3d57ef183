package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobError(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("refresh: %w", NewJobError(ErrFetch, "get feed", cause))

	assert.True(t, errors.Is(err, ErrFetch))
	assert.False(t, errors.Is(err, ErrParse))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, ErrFetch, KindOf(err))
	assert.Equal(t, "fetch", KindName(err))
	assert.Contains(t, err.Error(), "fetch failure: get feed: connection refused")

	assert.Nil(t, KindOf(cause))
	assert.Equal(t, "unknown", KindName(cause))
	assert.Equal(t, "cache", KindName(NewJobError(ErrCache, "put", nil)))
}
