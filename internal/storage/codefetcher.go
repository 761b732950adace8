package storage

import (
	"context"

	"github.com/r3e-collective/dws-controlplane/internal/platform/apierr"
)

// FetchCode adapts Manager to moderation.CodeFetcher (spec.md §4.3 step c:
// "Code artifact retrieval from C6; bounded size; timeout from config").
func (m *Manager) FetchCode(ctx context.Context, cid string, maxBytes int64) ([]byte, error) {
	result, err := m.Download(ctx, cid, DownloadOptions{})
	if err != nil {
		return nil, err
	}
	if int64(len(result.Content)) > maxBytes {
		return nil, apierr.New(apierr.Exhausted, "code artifact exceeds configured size bound")
	}
	return result.Content, nil
}
