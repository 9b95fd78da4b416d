// Package security provides secure random generation utilities
package security

import (
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
)

// SessionIDPrefix marks server-generated session identifiers.
const SessionIDPrefix = "se"

// GenerateSessionID generates a prefixed session identifier, e.g.
// "se_01J8ZC9E6NVT5Q2P4R6S8T0V2X".
func GenerateSessionID() string {
	return fmt.Sprintf("%s_%s", SessionIDPrefix, strings.ToLower(ulid.Make().String()))
}
