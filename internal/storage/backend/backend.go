// Package backend defines the content backend contract shared by every
// concrete storage adapter (spec.md §4.5): local, ipfs, webtorrent,
// arweave, filecoin. Grounded on internal/chainfacade.Registry's
// narrow-interface-plus-concrete-impls shape.
package backend

import "context"

// Metadata describes the content being uploaded; Backends are free to
// ignore fields they don't use.
type Metadata struct {
	Filename    string
	ContentType string
}

// Backend is the uniform contract every storage adapter implements
// (spec.md §4.5 "Backends share one interface").
type Backend interface {
	Name() string
	Upload(ctx context.Context, content []byte, meta Metadata) (addr string, url string, err error)
	Download(ctx context.Context, addr string) ([]byte, error)
	Exists(ctx context.Context, addr string) (bool, error)
	HealthCheck(ctx context.Context) bool
}
