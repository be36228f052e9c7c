package observability

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoverPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	func() {
		defer RecoverPanic(logger, "send confirmation")
		panic("mailer exploded")
	}()

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "PANIC recovered", entry["msg"])
	assert.Equal(t, "mailer exploded", entry["panic"])
	assert.Equal(t, "send confirmation", entry["context"])
	assert.NotEmpty(t, entry["stack"])
}

func TestRecoverPanic_NoPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	func() {
		defer RecoverPanic(logger, "quiet")
	}()

	assert.Empty(t, buf.String())
}

func TestRecoverPanicWithCallback(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	var got interface{}
	func() {
		defer RecoverPanicWithCallback(logger, "worker", func(r interface{}) { got = r })
		panic(42)
	}()
	assert.Equal(t, 42, got)

	called := false
	func() {
		defer RecoverPanicWithCallback(logger, "worker", func(interface{}) { called = true })
	}()
	assert.False(t, called)
}
