package drive

// File is the normalized subset of a Drive v3 file resource this client
// cares about. Size is only populated when the metadata request asked for it.
type File struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Size        int64  `json:"size,string"`
	MimeType    string `json:"mimeType,omitempty"`
	Trashed     bool   `json:"trashed,omitempty"`
	WebViewLink string `json:"webViewLink,omitempty"`
	Owners      []struct {
		EmailAddress string `json:"emailAddress"`
	} `json:"owners,omitempty"`
}

// fileListResponse mirrors the Drive v3 files.list JSON shape.
type fileListResponse struct {
	Files         []File `json:"files"`
	NextPageToken string `json:"nextPageToken"`
}

// UploadSession holds the resumable upload URI returned by an
// uploadType=resumable initiation request. The URI embeds its own
// authorization; chunk requests against it carry no bearer token.
type UploadSession struct {
	URL string
}

// permissionRequest is the files.permissions.create request body.
type permissionRequest struct {
	Type         string `json:"type"`
	Role         string `json:"role"`
	EmailAddress string `json:"emailAddress"`
}

// createFileRequest is the metadata body for resumable upload initiation
// when creating a new file.
type createFileRequest struct {
	Name     string   `json:"name"`
	Parents  []string `json:"parents,omitempty"`
	MimeType string   `json:"mimeType,omitempty"`
}
