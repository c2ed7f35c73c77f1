package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// ETagMiddleware adds content-based ETags to GET responses and answers
// conditional requests with 304 Not Modified
type ETagMiddleware struct {
	logger *zap.Logger
	maxAge int
}

// NewETagMiddleware creates a new ETag middleware. maxAge is the Cache-Control max-age in seconds.
func NewETagMiddleware(logger *zap.Logger, maxAge int) *ETagMiddleware {
	return &ETagMiddleware{
		logger: logger,
		maxAge: maxAge,
	}
}

// Middleware returns the ETag middleware handler
func (em *ETagMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}

		// The body is buffered so headers can still be set once it is known
		recorder := &bufferedResponse{header: make(http.Header), status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		for k, v := range recorder.header {
			w.Header()[k] = v
		}

		if recorder.status != http.StatusOK || recorder.body.Len() == 0 {
			w.WriteHeader(recorder.status)
			w.Write(recorder.body.Bytes())
			return
		}

		etag := calculateETag(recorder.body.Bytes())
		w.Header().Set("ETag", fmt.Sprintf(`"%s"`, etag))
		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", em.maxAge))

		if clientETag := r.Header.Get("If-None-Match"); clientETag != "" && etagMatches(clientETag, etag) {
			em.logger.Debug("ETag matched, serving 304",
				zap.String("path", r.URL.Path),
				zap.String("etag", etag),
				zap.String("request_id", middleware.GetReqID(r.Context())))
			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write(recorder.body.Bytes())
	})
}

// calculateETag hashes the response body
func calculateETag(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])[:16]
}

// etagMatches checks a possibly quoted, possibly weak If-None-Match value against etag
func etagMatches(clientETag, serverETag string) bool {
	for _, candidate := range strings.Split(clientETag, ",") {
		candidate = strings.TrimSpace(candidate)
		candidate = strings.TrimPrefix(candidate, "W/")
		candidate = strings.Trim(candidate, `"`)
		if candidate == "*" || candidate == serverETag {
			return true
		}
	}
	return false
}

type bufferedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (b *bufferedResponse) Header() http.Header {
	return b.header
}

func (b *bufferedResponse) WriteHeader(statusCode int) {
	b.status = statusCode
}

func (b *bufferedResponse) Write(data []byte) (int, error) {
	return b.body.Write(data)
}
