// Package models defines the domain types for Perch.
package models

import "time"

// DateLayout is the canonical timestamp format for post dates, always UTC.
// It is fixed-width and zero-padded, so lexical ordering of rendered strings
// equals chronological ordering of the underlying instants.
const DateLayout = "2006-01-02 15:04:05"

// Post is a single Markdown-formatted social update.
type Post struct {
	ID        string   `json:"id"`
	Date      string   `json:"date"`
	Tags      []string `json:"tags"`
	Content   string   `json:"content"`
	UpdatedAt string   `json:"updatedAt,omitempty"`
}

// CreatedTime parses the post's creation date. The zero time is returned for
// records whose date does not match DateLayout.
func (p *Post) CreatedTime() time.Time {
	t, err := time.ParseInLocation(DateLayout, p.Date, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ImageMeta describes a stored image blob.
type ImageMeta struct {
	Key         string `json:"key"`
	PostID      string `json:"postId"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	Checksum    string `json:"checksum"`
	UploadedAt  string `json:"uploadedAt"`
}

// UploadedTime parses the upload instant, zero time on a malformed record.
func (m *ImageMeta) UploadedTime() time.Time {
	t, err := time.ParseInLocation(DateLayout, m.UploadedAt, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}
