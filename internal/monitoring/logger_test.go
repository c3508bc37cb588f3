package monitoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestSetLogger redirects and mutes the package logger.
func TestSetLogger(t *testing.T) {
	defer SetLogger(nil)

	var got string
	SetLogger(func(format string, v ...interface{}) {
		got = fmt.Sprintf(format, v...)
	})
	Logf("estimated %d states", 5)
	assert.Equal(t, "estimated 5 states", got)

	SetLogger(nil)
	Logf("dropped %d", 1) // must not panic
}
