package site

// Fingerprint describes one locally scanned file.
// Path is absolute, forward-slash separated and NFC-normalized, e.g. "/assets/app.js".
type Fingerprint struct {
	Path        string
	ContentHash string
	Size        int64
	ContentType string
}

// Resource is the remote record of one published file.
type Resource struct {
	Path        string `json:"-"`
	BlobID      string `json:"blob_id"`
	BlobHash    string `json:"blob_hash"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Clone returns a copy of the resource
func (r *Resource) Clone() *Resource {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
