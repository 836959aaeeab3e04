package store

import (
	"time"

	"github.com/nkhandelwal/ingres-resolver/internal/model"
)

// Location is one administrative unit. A STATE has no parent, a DISTRICT's
// parent is a STATE and a BLOCK's parent is a DISTRICT. Rows are only ever
// created or re-named by the resolver, never deleted.
type Location struct {
	ID        uint        `gorm:"primaryKey"`
	Name      string      `gorm:"index:idx_location_name_type;not null"`
	Type      model.Level `gorm:"index:idx_location_name_type;not null;size:16"`
	UUID      string      `gorm:"uniqueIndex;not null;size:36"`
	ParentID  *uint
	Parent    *Location `gorm:"foreignKey:ParentID"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ScrapeCache is the durable record of the last successful fetch of a URL.
// Freshness is decided by the reader: a row is fresh while
// now - LastFetched < TTLSeconds.
type ScrapeCache struct {
	ID          uint   `gorm:"primaryKey"`
	URL         string `gorm:"uniqueIndex;not null"`
	ContentHTML string
	ContentMD   string
	LastFetched time.Time `gorm:"index;not null"`
	TTLSeconds  int       `gorm:"not null;default:21600"`
}
