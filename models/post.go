package models

import "time"

// DefaultCategory is assigned when a post is created without an explicit category.
const DefaultCategory = "General"

// MaxTitleLength bounds post titles.
const MaxTitleLength = 150

// Post represents a blog post created by a user.
type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Title     string    `gorm:"size:150;not null" json:"title"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Category  string    `gorm:"size:64;default:'General'" json:"category"`
	Tags      []string  `gorm:"serializer:json;type:text" json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	User      User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	Comments  []Comment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"comments,omitempty"`
	Likes     []Like    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`

	// Computed per response, never persisted.
	LikesCount    int64  `gorm:"-" json:"likes_count"`
	CommentsCount int64  `gorm:"-" json:"comments_count"`
	LikeUserIDs   []uint `gorm:"-" json:"likes,omitempty"`
}
