package models

import (
	"fmt"
	"time"
)

// Activity log categories. Stored in the log_name column.
const (
	LogAuth    = "auth"
	LogPost    = "post"
	LogLike    = "like"
	LogComment = "comment"
)

// IsValidCategory reports whether name is one of the known log categories.
func IsValidCategory(name string) bool {
	switch name {
	case LogAuth, LogPost, LogLike, LogComment:
		return true
	}
	return false
}

// Subject types as persisted in activity_logs.subject_type.
const (
	SubjectPost    = "post"
	SubjectComment = "comment"
	SubjectLike    = "like"
	SubjectUser    = "user"
)

// Subject identifies the entity an activity refers to.
// The zero value is the empty subject.
type Subject struct {
	Type string
	ID   uint
}

// NoSubject is used when the entity no longer exists, e.g. after a delete.
var NoSubject = Subject{}

func PostSubject(id uint) Subject    { return Subject{Type: SubjectPost, ID: id} }
func CommentSubject(id uint) Subject { return Subject{Type: SubjectComment, ID: id} }
func LikeSubject(id uint) Subject    { return Subject{Type: SubjectLike, ID: id} }
func UserSubject(id uint) Subject    { return Subject{Type: SubjectUser, ID: id} }

// IsNone reports whether s is the empty subject.
func (s Subject) IsNone() bool { return s.Type == "" }

func (s Subject) String() string {
	if s.IsNone() {
		return "none"
	}
	return fmt.Sprintf("%s:%d", s.Type, s.ID)
}

// Properties is the free-form JSON payload attached to a log row.
type Properties map[string]interface{}

// ActivityLog is an immutable audit record of a user action.
type ActivityLog struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      *uint      `gorm:"index" json:"user_id"`
	User        *User      `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL" json:"user,omitempty"`
	LogName     string     `gorm:"size:32;not null;index" json:"log_name"`
	Description string     `gorm:"size:255;not null" json:"description"`
	SubjectType *string    `gorm:"size:32;index:idx_activity_logs_subject" json:"subject_type"`
	SubjectID   *uint      `gorm:"index:idx_activity_logs_subject" json:"subject_id"`
	Properties  Properties `gorm:"serializer:json;type:text" json:"properties"`
	IPAddress   string     `gorm:"size:45" json:"ip_address"`
	UserAgent   string     `gorm:"type:text" json:"user_agent"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
}

// TableName keeps the table name stable regardless of naming strategy.
func (ActivityLog) TableName() string {
	return "activity_logs"
}

// SetSubject stores s into the subject columns. NoSubject clears both.
func (l *ActivityLog) SetSubject(s Subject) {
	if s.IsNone() {
		l.SubjectType = nil
		l.SubjectID = nil
		return
	}
	t, id := s.Type, s.ID
	l.SubjectType = &t
	l.SubjectID = &id
}

// Subject rebuilds the subject from the persisted columns.
func (l *ActivityLog) Subject() Subject {
	if l.SubjectType == nil || l.SubjectID == nil {
		return NoSubject
	}
	return Subject{Type: *l.SubjectType, ID: *l.SubjectID}
}
