package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errSentinel = stderrors.New("sentinel")

func TestConfigProblems(t *testing.T) {
	assert.NoError(t, ConfigProblems(nil))

	err := ConfigProblems([]error{errSentinel, stderrors.New("other")})
	assert.Equal(t, CodeConfigInvalid, GetCode(err))
	assert.ErrorIs(t, err, errSentinel)
	assert.Contains(t, err.Error(), "2 problem(s)")
}

func TestWrapKeepsCode(t *testing.T) {
	err := Wrap(ConfigInvalid("bad seed"), "loading config")
	assert.Equal(t, CodeConfigInvalid, GetCode(err))
	assert.Equal(t, "loading config: bad seed", err.Error())

	assert.Equal(t, CodeInternalError, GetCode(Wrap(errSentinel, "boom")))
	assert.Nil(t, Wrap(nil, "nothing"))
	assert.Equal(t, "UNKNOWN", GetCode(errSentinel))
}
