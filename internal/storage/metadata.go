package storage

import "time"

// ContentMetadata is the durable record the manager keeps per uploaded
// content id (spec.md §4.5 step 5 "register metadata in the ... content
// registry").
type ContentMetadata struct {
	CID             string
	SHA256          string
	Tier            Tier
	Backends        []string // backend name per successful write, in upload order
	Addresses       map[string]string
	MagnetURI       string
	ArweaveTxID     string
	FilecoinCID     string
	Encrypted       bool
	EncryptionKeyID string
	Size            int64
	AccessCount     int64
	CreatedAt       time.Time
}

// UploadResult is what Manager.Upload returns to callers (spec.md §4.5
// step 6).
type UploadResult struct {
	CID             string
	Addresses       map[string]string
	Tier            Tier
	Backends        []string
	MagnetURI       string
	ArweaveTxID     string
	Encrypted       bool
	EncryptionKeyID string
}

// DownloadResult is what Manager.Download returns (spec.md §4.5
// "Download" step 5).
type DownloadResult struct {
	Content       []byte
	Metadata      ContentMetadata
	BackendUsed   string
	LatencyMillis int64
	FromCache     bool
}

// UploadOptions customizes a single upload call.
type UploadOptions struct {
	Encrypt         *bool // nil = tier default; false = explicit opt-out (private tier only)
	EncryptKeyID    string
	BackendOverride []string
}

// DownloadOptions customizes a single download call.
type DownloadOptions struct {
	BackendOverride []string
	DecryptKeyID    string
	Region          string
}
