package models

// UploadedDocument describes a file staged on local disk for one request.
type UploadedDocument struct {
	Path         string `json:"path"`
	OriginalName string `json:"original_name"`
	MimeType     string `json:"mime_type"`
	Size         int64  `json:"size"`
	FieldName    string `json:"field_name"`
	// Ext is the lower-cased extension of OriginalName, including the dot.
	Ext string `json:"ext"`
}
