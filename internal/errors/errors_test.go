package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap_NilPassthrough(t *testing.T) {
	assert.NoError(t, Wrap(nil, "ctx"))
	assert.NoError(t, Wrapf(nil, "ctx %d", 1))
}

func TestWrap_PreservesSentinel(t *testing.T) {
	err := Wrap(ErrNotFound, "task #4")
	assert.True(t, Is(err, ErrNotFound))
	assert.Equal(t, "task #4: not found", err.Error())

	err = Wrapf(fmt.Errorf("inner: %w", ErrInvalidArgument), "log time on #%d", 9)
	assert.True(t, Is(err, ErrInvalidArgument))
	assert.Contains(t, err.Error(), "log time on #9")
}
