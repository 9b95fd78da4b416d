package tracking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTruthy(t *testing.T) {
	falsy := []string{"", "false", "FALSE", " False ", "0", "null", "NULL", "undefined", "nan", "NaN", "   "}
	for _, v := range falsy {
		assert.False(t, IsTruthy(v), "expected %q to be falsy", v)
	}

	truthy := []string{"true", "1", "yes", "on", "anything", " TRUE "}
	for _, v := range truthy {
		assert.True(t, IsTruthy(v), "expected %q to be truthy", v)
	}
}
