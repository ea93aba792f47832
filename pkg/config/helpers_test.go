package config_test

import (
	"os"
	"testing"
)

// unsetForTest removes keys for the duration of the test. t.Setenv must have
// been called for each key first so the original values are restored.
func unsetForTest(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		_ = os.Unsetenv(k)
	}
}
