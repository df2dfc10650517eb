package model

// ResourceMetadata is the descriptive payload returned by the metadata
// service for one resource. The cache treats it as opaque.
type ResourceMetadata struct {
	ResourceID string      `json:"resourceId"`
	Title      string      `json:"title"`
	Uploader   string      `json:"uploader,omitempty"`
	Duration   float64     `json:"duration,omitempty"` // seconds
	Thumbnail  string      `json:"thumbnail,omitempty"`
	Renditions []Rendition `json:"renditions,omitempty"`
}

// Rendition describes one downloadable quality/format option
type Rendition struct {
	FormatID string `json:"formatId"`
	Label    string `json:"label"`
	Ext      string `json:"ext,omitempty"`
	Height   int    `json:"height,omitempty"`
	FPS      int    `json:"fps,omitempty"`
	Filesize int64  `json:"filesize,omitempty"`
}
