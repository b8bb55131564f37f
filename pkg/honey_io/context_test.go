package honey_io

import (
	"context"
	"errors"
	"testing"

	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_err"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewContext(t *testing.T) {
	rc := NewContext(context.Background(), "create-redirect")
	require.NotNil(t, rc.Ctx)
	assert.Equal(t, "create-redirect", rc.Command)
	assert.Len(t, rc.TraceID, 8)
	assert.NotNil(t, rc.Attributes)
	var err error
	rc.End(&err)
}

func TestHandlePanic(t *testing.T) {
	rc := NewTestContext(context.Background(), zaptest.NewLogger(t))
	run := func() (err error) {
		defer rc.HandlePanic(&err)
		panic("boom")
	}
	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestClassifyError(t *testing.T) {
	assert.Equal(t, "", classifyError(nil))
	assert.Equal(t, "user", classifyError(honey_err.NewExpectedError(errors.New("x"))))
	assert.Equal(t, "permission_denied", classifyError(honey_err.NewPermissionError("create redirect")))
	assert.Equal(t, "system", classifyError(errors.New("x")))
}
