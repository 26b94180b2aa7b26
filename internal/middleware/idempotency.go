package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/travel-ticket-booking/internal/config"
)

// HeaderIdempotencyKey is the request header clients use to make a
// state-changing call safe to retry.
const HeaderIdempotencyKey = "Idempotency-Key"

const processingMarker = "PROCESSING"

// Idempotency guards POST/PUT/PATCH requests that carry an Idempotency-Key.
// The first request claims the key with SETNX.  A retry while it runs gets
// 409; a retry after a 2xx gets the stored response replayed.  Failed
// requests release the key so the client can try again.
func Idempotency(cfg config.IdempotencyConfig, rdb *redis.Client, log logrus.FieldLogger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	log = log.WithField("component", "idempotency")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			switch req.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch:
			default:
				return next(c)
			}
			raw := strings.TrimSpace(req.Header.Get(HeaderIdempotencyKey))
			if raw == "" {
				return next(c)
			}
			key := idempotencyKey(cfg, c, raw)
			ctx := req.Context()

			val, err := rdb.Get(ctx, key).Bytes()
			switch {
			case err == nil:
				c.Response().Header().Set("X-Idempotency-Hit", "true")
				if string(val) == processingMarker {
					return c.JSON(http.StatusConflict, echo.Map{"error": "request_in_progress", "message": "a request with this Idempotency-Key is still being processed"})
				}
				if status, hdr, body, ok := decodePayload(val); ok {
					replay(c.Response(), status, hdr, body)
					return nil
				}
				return c.JSON(http.StatusConflict, echo.Map{"error": "request_already_processed", "message": "a request with this Idempotency-Key already completed"})
			case err != redis.Nil:
				log.WithError(err).Warn("idempotency lookup failed")
				return next(c)
			}

			acquired, err := rdb.SetNX(ctx, key, processingMarker, cfg.ProcessingTTL).Result()
			if err != nil {
				log.WithError(err).Warn("idempotency claim failed")
				return next(c)
			}
			if !acquired {
				c.Response().Header().Set("X-Idempotency-Hit", "true")
				return c.JSON(http.StatusConflict, echo.Map{"error": "request_in_progress", "message": "a request with this Idempotency-Key is still being processed"})
			}

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK}
			c.Response().Writer = cw
			herr := next(c)

			// The outcome is recorded even if the client went away.
			bg := context.WithoutCancel(ctx)
			if herr != nil || cw.status < 200 || cw.status >= 300 {
				if err := rdb.Del(bg, key).Err(); err != nil {
					log.WithError(err).Warn("idempotency release failed")
				}
				return herr
			}
			payload, err := encodePayload(cw.status, snapshotHeader(c.Response().Header()), cw.buf.Bytes())
			if err == nil {
				err = rdb.Set(bg, key, payload, cfg.CompletedTTL).Err()
			}
			if err != nil {
				log.WithError(err).Warn("idempotency store failed")
			}
			return nil
		}
	}
}

func idempotencyKey(cfg config.IdempotencyConfig, c echo.Context, raw string) string {
	return strings.Join([]string{cfg.Prefix, userID(c), c.Request().Method, c.Path(), raw}, ":")
}
