// Package model holds the shared domain types of the resolution pipeline.
package model

import (
	"fmt"
	"regexp"
	"strings"
)

// Level is the administrative level of a location, coarse to fine.
type Level string

const (
	LevelState    Level = "STATE"
	LevelDistrict Level = "DISTRICT"
	LevelBlock    Level = "BLOCK"
)

// ParseLevel accepts the level name case-insensitively.
func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToUpper(strings.TrimSpace(s))) {
	case LevelState:
		return LevelState, nil
	case LevelDistrict:
		return LevelDistrict, nil
	case LevelBlock:
		return LevelBlock, nil
	}
	return "", fmt.Errorf("unknown administrative level %q", s)
}

// IdentifierPair is the resolved output of the location resolver. Both
// identifiers are stable UUIDs required by the upstream GIS portal.
type IdentifierPair struct {
	LocationUUID string `json:"locuuid"`
	StateUUID    string `json:"stateuuid"`
}

var uuidRe = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// IsUUID reports whether s is a 36-character dashed UUID string, the only
// bit-exact format contract the portal imposes.
func IsUUID(s string) bool {
	return len(s) == 36 && uuidRe.MatchString(s)
}
