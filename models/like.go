package models

import "time"

// Like marks that a user likes a post. The composite unique index makes a user
// appear at most once per post; the toggle relies on it.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"uniqueIndex:idx_post_user;not null" json:"post_id"`
	UserID    uint      `gorm:"uniqueIndex:idx_post_user;not null" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
