package models

import (
	"time"
)

// MaxCaptionLength is the longest caption a post may carry.
const MaxCaptionLength = 2200

// Post is an image post owned by exactly one user.
type Post struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	UserID   uint      `gorm:"not null;index" json:"user_id"`
	User     User      `gorm:"foreignKey:UserID" json:"user"`
	Caption  *string   `gorm:"size:2200" json:"caption"`
	Image    string    `gorm:"type:text;not null" json:"image"`
	Likes    []Like    `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	Comments []Comment `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"comments,omitempty"`
	// LikesCount is not persisted; computed at query time
	LikesCount int `gorm:"->;-:migration" json:"likes_count"`
	// CommentsCount is not persisted; computed at query time
	CommentsCount int `gorm:"->;-:migration" json:"comments_count"`
	// Liked indicates whether the current requesting user liked this post (computed)
	Liked     bool      `gorm:"->;-:migration" json:"liked"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OwnerID returns the id of the user who created the post.
func (p *Post) OwnerID() uint { return p.UserID }

// ResourceName is the noun used in authorization messages.
func (p *Post) ResourceName() string { return "posts" }
