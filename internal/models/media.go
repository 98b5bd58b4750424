package models

// MediaKind distinguishes attachment types. Only images are produced today.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// ProjectMedia is one attachment of a project, in display order.
type ProjectMedia struct {
	ID          string    `json:"id"`
	Kind        MediaKind `json:"kind"`
	Alt         string    `json:"alt,omitempty"`
	StoragePath string    `json:"storagePath"`
	DownloadURL string    `json:"downloadUrl"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType"`
	CreatedAt   string    `json:"createdAt"`
}

// UploadFile is one file handed to UploadProjectMedia.
type UploadFile struct {
	Name        string
	Size        int64
	ContentType string
	Data        []byte
}

// UploadProgress reports per-file upload progress, keyed by file name.
// Percent runs 0..100.
type UploadProgress func(fileName string, percent int)
