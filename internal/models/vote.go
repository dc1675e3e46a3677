package models

import "time"

// Vote records one user's directional (+1/-1) opinion on one post.
// The composite primary key is the one-vote-per-user-per-post rule:
// a repeat vote updates the row in place, it never creates a second one.
// Absence of a row means the user has not voted.
type Vote struct {
	UserID int `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	PostID int `gorm:"primaryKey;autoIncrement:false" json:"post_id"`
	Value  int `gorm:"not null" json:"value"` // always -1 or +1

	User User `gorm:"foreignKey:UserID" json:"-"`
	Post Post `gorm:"foreignKey:PostID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
