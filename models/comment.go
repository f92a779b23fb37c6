package models

import "time"

// MaxCommentLength bounds comment text.
const MaxCommentLength = 500

// Comment represents a reply attached to a post. Its lifecycle is bound to the post.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"index;not null" json:"post_id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Text      string    `gorm:"size:500;not null" json:"text"`
	CreatedAt time.Time `json:"created_at"`
	User      User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
}
