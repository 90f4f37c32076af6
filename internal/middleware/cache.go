package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/hex"
    "encoding/json"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/parksavvy/internal/config"
    "github.com/iliyamo/parksavvy/internal/logger"
)

// teeWriter copies up to limit body bytes aside while writing through.
type teeWriter struct {
    http.ResponseWriter
    status int
    body   bytes.Buffer
    n      int64
    limit  int64
}

func (w *teeWriter) WriteHeader(code int) {
    w.status = code
    w.ResponseWriter.WriteHeader(code)
}

func (w *teeWriter) Write(b []byte) (int, error) {
    w.n += int64(len(b))
    if w.limit <= 0 || w.n <= w.limit {
        w.body.Write(b)
    }
    return w.ResponseWriter.Write(b)
}

func (w *teeWriter) overflowed() bool { return w.limit > 0 && w.n > w.limit }

// snapshot is what one cache entry holds.
type snapshot struct {
    Status      int    `json:"status"`
    ContentType string `json:"content_type"`
    Body        []byte `json:"body"`
}

// cacheKeyFrom hashes the request identity.  "route" keys on the route
// template plus its param values and ignores the query; the default keys on
// the concrete path plus query.
func cacheKeyFrom(cfg config.CacheConfig, c echo.Context) string {
    id := c.Request().URL.Path + "?" + c.Request().URL.RawQuery
    if strings.EqualFold(cfg.KeyStrategy, "route") {
        var b strings.Builder
        b.WriteString(c.Path())
        for i, name := range c.ParamNames() {
            b.WriteString("|" + name + "=" + c.ParamValues()[i])
        }
        id = b.String()
    }
    sum := sha1.Sum([]byte(id))
    return cfg.Prefix + ":" + hex.EncodeToString(sum[:])
}

// cacheable reports whether the request may be served from cache.
// Authenticated requests and explicit no-cache requests always miss.
func cacheable(cfg config.CacheConfig, r *http.Request) bool {
    if !cfg.Methods[strings.ToUpper(r.Method)] {
        return false
    }
    if r.Header.Get("Authorization") != "" {
        return false
    }
    return !strings.Contains(strings.ToLower(r.Header.Get("Cache-Control")), "no-cache")
}

// NewRedisCache keeps 200 responses of the parking hints route in Redis
// for cfg.TTL.  Upstream failures (502) are never cached.  It is a
// pass-through when disabled or rdb is nil.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client, log *logrus.Logger) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    if log == nil {
        log = logger.Discard()
    }
    ttl := cfg.TTL
    if ttl <= 0 {
        ttl = 15 * time.Second
    }

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if !cacheable(cfg, c.Request()) {
                return next(c)
            }
            ctx := c.Request().Context()
            key := cacheKeyFrom(cfg, c)

            if raw, err := rdb.Get(ctx, key).Bytes(); err == nil {
                var s snapshot
                if json.Unmarshal(raw, &s) == nil && s.Status > 0 {
                    c.Response().Header().Set("X-Cache", "HIT")
                    return c.Blob(s.Status, s.ContentType, s.Body)
                }
            } else if err != redis.Nil {
                log.WithError(err).Debug("cache read failed")
            }

            tw := &teeWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: int64(cfg.MaxBodyBytes)}
            c.Response().Writer = tw
            c.Response().Header().Set("X-Cache", "MISS")
            if err := next(c); err != nil {
                return err
            }
            if tw.status != http.StatusOK || tw.overflowed() {
                return nil
            }

            payload, err := json.Marshal(snapshot{
                Status:      tw.status,
                ContentType: c.Response().Header().Get(echo.HeaderContentType),
                Body:        tw.body.Bytes(),
            })
            if err != nil {
                return nil
            }
            if err := rdb.Set(context.WithoutCancel(ctx), key, payload, ttl).Err(); err != nil {
                log.WithError(err).Debug("cache write failed")
            }
            return nil
        }
    }
}
