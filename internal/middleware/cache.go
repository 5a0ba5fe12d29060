package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/todoer/internal/config"
	"github.com/iliyamo/todoer/internal/kv"
)

// cachedResponse is what the cache stores per key.
type cachedResponse struct {
	Status int         `json:"status"`
	Header http.Header `json:"header"`
	Body   []byte      `json:"body"`
}

// bodyRecorder tees the response body into buf until it grows past limit.
type bodyRecorder struct {
	http.ResponseWriter
	status   int
	buf      bytes.Buffer
	limit    int
	overflow bool
}

func (r *bodyRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	if !r.overflow {
		if r.limit > 0 && r.buf.Len()+len(b) > r.limit {
			r.overflow = true
			r.buf.Reset()
		} else {
			r.buf.Write(b)
		}
	}
	return r.ResponseWriter.Write(b)
}

// responseCacheKey hashes the matched route and the raw query.
func responseCacheKey(c echo.Context) string {
	sum := sha256.Sum256([]byte(c.Path() + "?" + c.Request().URL.RawQuery))
	return "resp:" + hex.EncodeToString(sum[:16])
}

// NewResponseCache caches successful GET responses, status and headers
// included, for cfg.TTL.  Bodies larger than cfg.MaxBodyBytes are not
// cached and a request with "Cache-Control: no-cache" skips the lookup.
// A nil store or a disabled config passes every request through.
func NewResponseCache(cfg config.CacheConfig, store kv.Store) echo.MiddlewareFunc {
	if !cfg.Enabled || store == nil {
		return passThrough
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Method != http.MethodGet {
				return next(c)
			}
			key := responseCacheKey(c)

			if req.Header.Get("Cache-Control") != "no-cache" {
				if raw, err := store.Get(req.Context(), key); err == nil {
					var hit cachedResponse
					if json.Unmarshal(raw, &hit) == nil {
						h := c.Response().Header()
						for k, vals := range hit.Header {
							h[k] = vals
						}
						h.Del(echo.HeaderContentLength)
						h.Set("X-Cache", "HIT")
						c.Response().WriteHeader(hit.Status)
						_, err := c.Response().Write(hit.Body)
						return err
					}
				}
			}

			rec := &bodyRecorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
			c.Response().Writer = rec
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if rec.status != http.StatusOK || rec.overflow {
				return nil
			}

			hdr := c.Response().Header().Clone()
			hdr.Del("X-Cache")
			raw, err := json.Marshal(cachedResponse{Status: rec.status, Header: hdr, Body: rec.buf.Bytes()})
			if err != nil {
				return nil
			}
			// the request context may already be done once the body is written
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := store.Set(ctx, key, raw, cfg.TTL); err != nil {
				c.Logger().Warnf("cache: store %s: %v", key, err)
			}
			return nil
		}
	}
}
