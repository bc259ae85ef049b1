// Package content provides access to the site's posts, attachments, and
// post metadata.
package content

import "time"

// Post statuses. Anything other than StatusPublish counts as draft/private
// for maintenance metrics.
const (
	StatusPublish = "publish"
	StatusDraft   = "draft"
	StatusPrivate = "private"
)

// Post represents one row of site content
type Post struct {
	ID              int64      `json:"id"`
	PostType        string     `json:"post_type"`
	Status          string     `json:"status"`
	Title           string     `json:"title"`
	Slug            string     `json:"slug"`
	Content         string     `json:"content"`
	FeaturedImageID *int64     `json:"featured_image_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Info is the maintenance-relevant projection of a post used by the scan
// collector.
type Info struct {
	ID                 int64
	Status             string
	Content            string
	FeaturedImageValid bool
}
