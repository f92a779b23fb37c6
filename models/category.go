package models

import (
	"strings"
	"time"
)

// Category is a deduplicated directory entry populated the first time a post
// references a previously-unseen category name. Entries are never updated and
// never deleted automatically; orphaned categories persist.
type Category struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:64;not null" json:"name"`
	Slug      string    `gorm:"size:64;uniqueIndex;not null" json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}

// CategorySlug derives the case-insensitive identity of a category name.
func CategorySlug(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
