package middleware

import (
    "context"
    "fmt"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/parksavvy/internal/config"
    "github.com/iliyamo/parksavvy/internal/logger"
)

// spendScript keeps one bucket per key as a hash {tokens, ts}.  Tokens refill
// continuously at refill/interval and are capped at capacity.  It returns
// {allowed, whole tokens left, ms until the next token}.
var spendScript = redis.NewScript(`
local capacity = tonumber(ARGV[2])
local rate = tonumber(ARGV[3]) / tonumber(ARGV[4])
local now = tonumber(ARGV[1])

local tokens = tonumber(redis.call('HGET', KEYS[1], 'tokens'))
local ts = tonumber(redis.call('HGET', KEYS[1], 'ts'))
if tokens == nil or ts == nil then
  tokens, ts = capacity, now
end
tokens = math.min(capacity, tokens + math.max(0, now - ts) * rate)

local allowed, wait = 0, 0
if tokens >= 1 then
  allowed, tokens = 1, tokens - 1
else
  wait = math.ceil((1 - tokens) / rate)
end

redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'ts', now)
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return {allowed, math.floor(tokens), wait}
`)

type spendResult struct {
    allowed   bool
    remaining int64
    wait      time.Duration
}

func spend(ctx context.Context, rdb redis.Scripter, cfg config.RateLimitConfig, key string, now time.Time) (spendResult, error) {
    res, err := spendScript.Run(ctx, rdb, []string{key},
        now.UnixMilli(), cfg.Capacity, cfg.RefillTokens,
        cfg.RefillInterval.Milliseconds(), cfg.TTL.Milliseconds(),
    ).Int64Slice()
    if err != nil {
        return spendResult{}, err
    }
    if len(res) != 3 {
        return spendResult{}, fmt.Errorf("ratelimit: unexpected reply %v", res)
    }
    return spendResult{
        allowed:   res[0] == 1,
        remaining: res[1],
        wait:      time.Duration(res[2]) * time.Millisecond,
    }, nil
}

// retryAfterSeconds rounds up so clients never retry too early.
func retryAfterSeconds(d time.Duration) int {
    secs := int((d + time.Second - 1) / time.Second)
    if secs < 1 {
        secs = 1
    }
    return secs
}

// NewTokenBucket throttles point spending per user (see rateKey).  Redis
// errors let the request through.  It is a pass-through when disabled or
// rdb is nil.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log *logrus.Logger) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    if log == nil {
        log = logger.Discard()
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := rateKey(cfg, c)
            res, err := spend(c.Request().Context(), rdb, cfg, key, time.Now())
            if err != nil {
                log.WithError(err).WithField("key", key).Warn("rate limit check failed; allowing request")
                return next(c)
            }

            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
            h.Set("X-RateLimit-Remaining", strconv.FormatInt(res.remaining, 10))
            if res.allowed {
                return next(c)
            }

            secs := retryAfterSeconds(res.wait)
            h.Set("Retry-After", strconv.Itoa(secs))
            log.WithFields(logrus.Fields{"key": key, "user_id": userID(c)}).Info("rate limited")
            return c.JSON(http.StatusTooManyRequests, echo.Map{
                "error":       "too many requests",
                "message":     "please slow down and try again later",
                "retry_after": secs,
            })
        }
    }
}

// rateKey buckets by "user", "ip" or, by default, "user_route".  Anonymous
// callers fall back to their IP so they do not share one bucket.
func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
    uid := userID(c)
    if uid == "anon" {
        ip := c.RealIP()
        if ip == "" {
            ip = "unknown"
        }
        uid = "ip-" + ip
    }
    switch strings.ToLower(cfg.KeyStrategy) {
    case "ip":
        return cfg.Prefix + ":ip:" + c.RealIP()
    case "user":
        return cfg.Prefix + ":user:" + uid
    default:
        return cfg.Prefix + ":user:" + uid + ":" + c.Request().Method + " " + c.Path()
    }
}
