// Package invalidation consumes cache-invalidation events and evicts the
// affected scrape entries from both cache tiers.
package invalidation

import (
	"fmt"
	"strings"
	"time"
)

// Event asks for one cached page to be dropped or marked stale. Producers
// are the ingestion jobs that know when the portal republished data.
type Event struct {
	Version int       `json:"version"`
	Op      string    `json:"op"`
	URL     string    `json:"url"`
	TS      time.Time `json:"ts"`
	Source  string    `json:"source,omitempty"`
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	switch e.Op {
	case "refresh", "delete":
	default:
		return fmt.Errorf("op must be refresh|delete")
	}
	if strings.TrimSpace(e.URL) == "" {
		return fmt.Errorf("url is required")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	return nil
}
