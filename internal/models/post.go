package models

import "time"

type Post struct {
	ID       int    `gorm:"primaryKey" json:"id"`
	Title    string `gorm:"not null" json:"title"`
	Body     string `gorm:"not null" json:"body"`
	AuthorID int    `json:"author_id"`
	Author   User   `gorm:"foreignKey:AuthorID" json:"author"`

	// Points is the denormalized sum of all vote values for this post.
	// It is only ever mutated by the votes service, inside the same
	// transaction as the vote row it accounts for.
	Points  int  `gorm:"not null;default:0" json:"points"`
	Preview bool `gorm:"default:false" json:"preview"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreatePostRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}
