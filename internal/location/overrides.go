package location

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/nkhandelwal/ingres-resolver/internal/model"
)

// EnvOverrides is the environment variable holding extra override entries as
// a JSON array of {name, type, locuuid, stateuuid}.
const EnvOverrides = "INGRES_LOCATION_OVERRIDES"

// OverrideEntry is one manually curated (name, level) -> identifiers mapping
// used to bypass resolution for well-known places.
type OverrideEntry struct {
	Name      string      `json:"name"`
	Type      model.Level `json:"type"`
	LocUUID   string      `json:"locuuid"`
	StateUUID string      `json:"stateuuid"`
}

// Overrides is the merged override table. Environment-supplied entries are
// consulted before the built-in ones.
type Overrides struct {
	entries []OverrideEntry
}

// LoadOverrides merges entries from the environment with the built-in table.
// Malformed JSON and entries with invalid identifiers are dropped silently;
// overrides are a convenience, not a correctness requirement.
func LoadOverrides() *Overrides {
	return NewOverrides(parseEnvOverrides(os.Getenv(EnvOverrides)))
}

func NewOverrides(extra []OverrideEntry) *Overrides {
	merged := make([]OverrideEntry, 0, len(extra)+len(builtinOverrides))
	merged = append(merged, extra...)
	merged = append(merged, builtinOverrides...)
	return &Overrides{entries: merged}
}

// Lookup requires exact normalized-name and level equality.
func (o *Overrides) Lookup(name string, level model.Level) (model.IdentifierPair, bool) {
	n := Normalize(name)
	for _, e := range o.entries {
		if e.Type == level && Normalize(e.Name) == n {
			return model.IdentifierPair{LocationUUID: e.LocUUID, StateUUID: e.StateUUID}, true
		}
	}
	return model.IdentifierPair{}, false
}

func parseEnvOverrides(raw string) []OverrideEntry {
	if raw == "" {
		return nil
	}
	var parsed []OverrideEntry
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil
	}
	out := parsed[:0]
	for _, e := range parsed {
		if e.Name == "" || e.Type == "" {
			continue
		}
		if uuid.Validate(e.LocUUID) != nil || uuid.Validate(e.StateUUID) != nil {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Normalize trims, lowercases and collapses internal whitespace so lookups
// are insensitive to casing and spacing.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
