package testutil

import (
	"crypto/sha256"
	"fmt"
	"testing"

	"github.com/arthur-debert/ozy/pkg/errors"
	"github.com/stretchr/testify/assert"
)

// AssertErrorCode checks that err carries code somewhere in its chain
func AssertErrorCode(t *testing.T, err error, code errors.ErrorCode, msgAndArgs ...interface{}) bool {
	t.Helper()

	if !assert.Error(t, err, msgAndArgs...) {
		return false
	}
	return assert.True(t, errors.IsErrorCode(err, code),
		fmt.Sprintf("expected error code %s in %q (outermost %s)", code, err, errors.GetErrorCode(err)))
}

// Checksum is the hex SHA-256 of content
func Checksum(content []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(content))
}
