package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type codedError struct{}

func (codedError) Error() string { return "coded" }
func (codedError) Code() string  { return CodeSchema }

func TestGetCode(t *testing.T) {
	assert.Equal(t, "", GetCode(nil))
	assert.Equal(t, CodeInternalError, GetCode(stderrors.New("plain")))
	assert.Equal(t, CodeConfigInvalid, GetCode(ConfigInvalid("bad")))
	assert.Equal(t, CodeSchema, GetCode(codedError{}))
	assert.Equal(t, CodeSchema, GetCode(fmt.Errorf("outer: %w", codedError{})))
}

func TestWrapKeepsCode(t *testing.T) {
	wrapped := Wrap(codedError{}, "analysis failed")
	assert.Equal(t, CodeSchema, GetCode(wrapped))
	assert.Equal(t, "analysis failed: coded", wrapped.Error())

	var target codedError
	assert.True(t, stderrors.As(wrapped, &target))

	assert.Nil(t, Wrap(nil, "nothing"))
	assert.Equal(t, CodeInternalError, GetCode(Wrap(stderrors.New("io"), "read")))
}

func TestWithCode(t *testing.T) {
	err := WithCode(CodeInvalidInput, stderrors.New("bad metric"))
	assert.Equal(t, CodeInvalidInput, GetCode(err))

	recoded := WithCode(CodeForbidden, InvalidInput("x"))
	assert.Equal(t, CodeForbidden, GetCode(recoded))
	assert.Equal(t, "x", recoded.Error())
}

func TestWrapf(t *testing.T) {
	err := WithCode(CodeDatabaseError, Wrapf(stderrors.New("conn reset"), "failed to scan row %d", 3))
	assert.Equal(t, CodeDatabaseError, GetCode(err))
	assert.Equal(t, "failed to scan row 3: conn reset", err.Error())
	assert.Nil(t, Wrapf(nil, "row %d", 1))
}
