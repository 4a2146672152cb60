package models

import "time"

// ImageUpload is returned after a successful upload.
type ImageUpload struct {
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	URL         string    `json:"url"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// SignedImageURL is a time limited retrieval URL for a stored image.
type SignedImageURL struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
