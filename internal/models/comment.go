package models

import (
	"time"
)

// MaxCommentLength is the longest comment body accepted.
const MaxCommentLength = 500

// Comment is a short text reply to a post.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Content   string    `gorm:"size:500;not null" json:"content"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	User      User      `gorm:"foreignKey:UserID" json:"user"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OwnerID returns the id of the comment author.
func (c *Comment) OwnerID() uint { return c.UserID }

// ResourceName is the noun used in authorization messages.
func (c *Comment) ResourceName() string { return "comments" }
