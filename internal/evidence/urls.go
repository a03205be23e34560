package evidence

import (
	"context"

	"sporelab/internal/blob"
)

// SignedURLs resolves storage paths to time-limited URLs, consulting the
// cache first and signing each distinct path at most once. The result is
// positionally aligned with the input; a path that fails to sign yields an
// empty string so one bad path cannot blank a whole gallery.
func (s *Store) SignedURLs(ctx context.Context, paths []string) []string {
	out := make([]string, len(paths))
	resolved := make(map[string]string, len(paths))
	for i, path := range paths {
		if path == "" {
			continue
		}
		if url, ok := resolved[path]; ok {
			out[i] = url
			continue
		}
		url := s.signOne(ctx, path)
		resolved[path] = url
		out[i] = url
	}
	return out
}

func (s *Store) signOne(ctx context.Context, path string) string {
	if s.cache != nil {
		if url, ok := s.cache.Get(path); ok {
			return url
		}
	}
	url, err := s.blobs.PresignURL(ctx, path, blob.SignedURLOptions{Expiry: s.urlTTL})
	if err != nil {
		s.log.Warn("presign failed", "path", path, "error", err)
		return ""
	}
	if s.cache != nil {
		s.cache.Set(path, url, s.urlTTL)
	}
	return url
}
