package models

import "time"

// NewsPost is an announcement on the public site. Only published posts appear
// in the public feed.
type NewsPost struct {
	ID          string    `json:"id,omitempty"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Excerpt     string    `json:"excerpt"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	Author      string    `json:"author"`
	PublishedAt time.Time `json:"publishedAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	IsPublished bool      `json:"isPublished"`
}
