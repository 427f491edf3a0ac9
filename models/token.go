package models

import (
	"strings"

	"github.com/google/uuid"
)

// NewToken generates the public opaque identifier for an entity, e.g.
// "lead_9f1c2d...". Tokens are assigned once at creation and never change.
func NewToken(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}
