package i18n

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	appLog "jamati/internal/log"
)

// cacheEntry holds HTTP cache metadata for a single dictionary URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HTTPSource fetches "<base>/<lang>.json" honoring ETag/Last-Modified and
// keeps the last good body on disk, so an unreachable server still yields
// the previous dictionary.
type HTTPSource struct {
	client   *http.Client
	baseURL  string
	cacheDir string
}

// NewHTTPSource creates a source for baseURL. cacheDir may be empty to
// disable the disk cache.
func NewHTTPSource(baseURL, cacheDir string) *HTTPSource {
	return &HTTPSource{
		client:   &http.Client{Timeout: 15 * time.Second},
		baseURL:  strings.TrimRight(baseURL, "/"),
		cacheDir: cacheDir,
	}
}

func (h *HTTPSource) Load(ctx context.Context, lang Language) ([]byte, error) {
	u := h.baseURL + "/" + string(lang) + ".json"

	var (
		cachePath  string
		meta       cacheEntry
		cachedBody []byte
	)
	if h.cacheDir != "" {
		cachePath = h.cachePathForURL(u)
		if err := os.MkdirAll(cachePath, 0o700); err != nil {
			return nil, err
		}
		meta, _ = loadCacheMeta(cachePath)
		cachedBody, _ = os.ReadFile(filepath.Join(cachePath, "body.json"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if len(cachedBody) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		if len(cachedBody) > 0 {
			appLog.Error("locale fetch network error, using cached body", err, "url", redactURL(u))
			return cachedBody, nil
		}
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if cachePath != "" {
			newMeta := cacheEntry{
				URL:          u,
				ETag:         resp.Header.Get("ETag"),
				LastModified: resp.Header.Get("Last-Modified"),
			}
			if err := saveCache(cachePath, newMeta, body); err != nil {
				appLog.Error("locale cache save failed", err, "url", redactURL(u))
			}
		}
		appLog.Info("locale fetch success", "lang", lang, "url", redactURL(u))
		return body, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return nil, errors.New("received 304 Not Modified but no cached body available")
		}
		appLog.Debug("locale not modified; using cache", "lang", lang)
		return cachedBody, nil

	default:
		if len(cachedBody) > 0 {
			appLog.Error("locale fetch non-OK, using cached body", errors.New(resp.Status), "url", redactURL(u))
			return cachedBody, nil
		}
		return nil, fmt.Errorf("locale fetch %s: %s", lang, resp.Status)
	}
}

func (h *HTTPSource) cachePathForURL(u string) string {
	sum := sha256.Sum256([]byte(u))
	return filepath.Join(h.cacheDir, hex.EncodeToString(sum[:8]))
}

func loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Write body first so meta never points at missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body.json"), body, 0o600); err != nil {
		return err
	}
	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// redactURL keeps scheme and host only; locale URLs may carry tokens.
func redactURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return "...(redacted)"
	}
	return parsed.Scheme + "://" + parsed.Host + "/...(redacted)"
}
