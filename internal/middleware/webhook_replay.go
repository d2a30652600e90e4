package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	webhookReplayPrefix = "webhook:replay:v1:"
	inProgressMarker    = "__in_progress__"
	replayStoreTimeout  = 2 * time.Second
)

type storedResponse struct {
	Status  int               `json:"status"`
	Body    string            `json:"body"`
	Headers map[string]string `json:"headers"`
}

// WebhookReplay answers a byte-identical webhook delivery seen within ttl
// with the stored response instead of running the handler again. Only 2xx
// responses are stored, so failed deliveries are retried in full. Redis
// failures fall through to the handler.
func WebhookReplay(cache *redis.Client, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cache == nil || c.Method() != fiber.MethodPost {
			return c.Next()
		}

		sum := sha256.Sum256(c.Body())
		cacheKey := webhookReplayPrefix + hex.EncodeToString(sum[:])

		ctx, cancel := context.WithTimeout(context.Background(), replayStoreTimeout)
		defer cancel()

		cached, err := cache.Get(ctx, cacheKey).Result()
		switch {
		case err == nil:
			if cached == inProgressMarker {
				return fiber.NewError(fiber.StatusConflict, "duplicate webhook currently processing")
			}
			var stored storedResponse
			if err := json.Unmarshal([]byte(cached), &stored); err != nil {
				logger.Warn("failed to decode stored webhook response", slog.String("key", cacheKey), slog.Any("error", err))
				return c.Next()
			}
			for header, value := range stored.Headers {
				if strings.EqualFold(header, fiber.HeaderContentLength) {
					continue
				}
				c.Set(header, value)
			}
			logger.Info("webhook replay answered from cache", slog.String("key", cacheKey))
			return c.Status(stored.Status).SendString(stored.Body)
		case !errors.Is(err, redis.Nil):
			logger.Warn("webhook replay lookup failed", slog.String("key", cacheKey), slog.Any("error", err))
			return c.Next()
		}

		reserved, err := cache.SetNX(ctx, cacheKey, inProgressMarker, ttl).Result()
		if err != nil {
			logger.Warn("webhook replay reservation failed", slog.String("key", cacheKey), slog.Any("error", err))
			return c.Next()
		}
		if !reserved {
			return fiber.NewError(fiber.StatusConflict, "duplicate webhook currently processing")
		}

		release := func() {
			cleanupCtx, cancel := context.WithTimeout(context.Background(), replayStoreTimeout)
			defer cancel()
			cache.Del(cleanupCtx, cacheKey)
		}

		if err := c.Next(); err != nil {
			release()
			return err
		}

		status := c.Response().StatusCode()
		if status < 200 || status >= 300 {
			release()
			return nil
		}

		stored := storedResponse{
			Status:  status,
			Body:    string(c.Response().Body()),
			Headers: map[string]string{},
		}
		c.Response().Header.VisitAll(func(k, v []byte) {
			stored.Headers[string(k)] = string(v)
		})

		payload, err := json.Marshal(stored)
		if err != nil {
			logger.Error("failed to encode webhook response", slog.String("key", cacheKey), slog.Any("error", err))
			release()
			return nil
		}

		persistCtx, persistCancel := context.WithTimeout(context.Background(), replayStoreTimeout)
		defer persistCancel()
		if err := cache.Set(persistCtx, cacheKey, payload, ttl).Err(); err != nil {
			logger.Warn("failed to persist webhook response", slog.String("key", cacheKey), slog.Any("error", err))
			release()
		}
		return nil
	}
}
