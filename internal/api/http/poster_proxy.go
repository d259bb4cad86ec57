package apihttp

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Poster images are served through the service so browser clients never talk
// to the catalog's CDN directly. The upstream host is fixed.
const posterBaseURL = "https://image.tmdb.org/t/p/"

const maxProxiedPosterBytes = int64(10 * 1024 * 1024)

var posterSizes = map[string]struct{}{
	"w92":      {},
	"w154":     {},
	"w185":     {},
	"w342":     {},
	"w500":     {},
	"w780":     {},
	"original": {},
}

func newPosterClient() *http.Client {
	return &http.Client{
		Timeout: 12 * time.Second,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return errors.New("stopped after 5 redirects")
			}
			return nil
		},
	}
}

func (s *Server) handlePoster(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSpace(r.URL.Query().Get("path"))
	if path == "" || !strings.HasPrefix(path, "/") || strings.Contains(path, "..") {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid poster path")
		return
	}
	size := strings.TrimSpace(r.URL.Query().Get("size"))
	if size == "" {
		size = "w342"
	}
	if _, ok := posterSizes[size]; !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "unsupported poster size")
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, s.posterBase+size+path, nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid poster path")
		return
	}
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")

	resp, err := s.posters.Do(req)
	if err != nil {
		writeError(w, http.StatusBadGateway, "upstream_error", "failed to fetch poster")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		writeError(w, http.StatusBadGateway, "upstream_error", fmt.Sprintf("upstream returned HTTP %d", resp.StatusCode))
		return
	}
	if resp.ContentLength > maxProxiedPosterBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "invalid_request", "poster too large")
		return
	}

	limited := io.LimitReader(resp.Body, maxProxiedPosterBytes)
	head := make([]byte, 512)
	n, readErr := io.ReadFull(limited, head)
	if readErr != nil && !errors.Is(readErr, io.ErrUnexpectedEOF) && !errors.Is(readErr, io.EOF) {
		writeError(w, http.StatusBadGateway, "upstream_error", "failed to read poster")
		return
	}
	head = head[:n]

	contentType := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if contentType == "" {
		contentType = http.DetectContentType(head)
	}
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		writeError(w, http.StatusBadGateway, "upstream_error", "not an image")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)

	_, _ = w.Write(head)
	_, _ = io.Copy(w, limited)
}
