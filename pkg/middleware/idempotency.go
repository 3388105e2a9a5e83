package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"cinema-ticketing/pkg/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	IdempotencyKeyHeader = "X-Idempotency-Key"
	IdempotencyKeyPrefix = "idempotency:"

	DefaultIdempotencyTTL = 5 * time.Minute
	defaultProcessingTTL  = 60 * time.Second
)

type IdempotencyStatus string

const (
	StatusProcessing IdempotencyStatus = "processing"
	StatusCompleted  IdempotencyStatus = "completed"
)

// IdempotencyRecord is the cached state of one keyed request.
type IdempotencyRecord struct {
	Key          string            `json:"key"`
	Status       IdempotencyStatus `json:"status"`
	RequestHash  string            `json:"request_hash"`
	ResponseCode int               `json:"response_code"`
	ResponseBody string            `json:"response_body"`
	CreatedAt    time.Time         `json:"created_at"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
}

// RedisClient is the subset of go-redis the middleware needs.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type IdempotencyConfig struct {
	Redis RedisClient
	// TTL for completed records
	TTL time.Duration
	// TTL for records still being processed
	ProcessingTTL time.Duration
	Logger        *zap.Logger
}

// Idempotency replays the stored response for a repeated X-Idempotency-Key.
// Requests without the header pass straight through, and Redis failures
// fail open. Server errors are not stored, so the same key can be retried.
func Idempotency(config IdempotencyConfig) func(http.Handler) http.Handler {
	if config.TTL <= 0 {
		config.TTL = DefaultIdempotencyTTL
	}
	if config.ProcessingTTL <= 0 {
		config.ProcessingTTL = defaultProcessingTTL
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyKeyHeader)
			if key == "" || config.Redis == nil {
				next.ServeHTTP(w, r)
				return
			}

			var body []byte
			if r.Body != nil {
				body, _ = io.ReadAll(r.Body)
				r.Body = io.NopCloser(bytes.NewReader(body))
			}

			ctx := r.Context()
			requestHash := hashRequest(r, body)
			redisKey := IdempotencyKeyPrefix + key

			existing, err := getIdempotencyRecord(ctx, config.Redis, redisKey)
			if err != nil && !errors.Is(err, redis.Nil) {
				config.Logger.Warn("Idempotency lookup failed, continuing", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if existing != nil {
				replayIdempotent(w, existing, requestHash)
				return
			}

			record := &IdempotencyRecord{
				Key:         key,
				Status:      StatusProcessing,
				RequestHash: requestHash,
				CreatedAt:   time.Now(),
			}
			claimed, err := trySetIdempotencyRecord(ctx, config.Redis, redisKey, record, config.ProcessingTTL)
			if err != nil {
				config.Logger.Warn("Idempotency claim failed, continuing", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if !claimed {
				// another request won the race
				if existing, _ := getIdempotencyRecord(ctx, config.Redis, redisKey); existing != nil {
					replayIdempotent(w, existing, requestHash)
					return
				}
			}

			rw := &idempotencyResponseWriter{
				ResponseWriter: w,
				body:           bytes.NewBuffer(nil),
				status:         http.StatusOK,
			}
			next.ServeHTTP(rw, r)

			if rw.status >= http.StatusInternalServerError {
				if err := config.Redis.Del(context.WithoutCancel(ctx), redisKey).Err(); err != nil {
					config.Logger.Warn("Failed to release idempotency key", zap.Error(err), zap.String("key", key))
				}
				return
			}

			now := time.Now()
			record.Status = StatusCompleted
			record.ResponseCode = rw.status
			record.ResponseBody = rw.body.String()
			record.CompletedAt = &now

			if err := saveIdempotencyRecord(context.WithoutCancel(ctx), config.Redis, redisKey, record, config.TTL); err != nil {
				config.Logger.Warn("Failed to store idempotency record", zap.Error(err), zap.String("key", key))
			}
		})
	}
}

func replayIdempotent(w http.ResponseWriter, record *IdempotencyRecord, requestHash string) {
	switch {
	case record.RequestHash != requestHash:
		utils.ResponseError(w, http.StatusUnprocessableEntity, "Idempotency key already used with a different request", nil)
	case record.Status == StatusProcessing:
		utils.ResponseConflict(w, "A request with this idempotency key is already being processed", nil)
	default:
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(record.ResponseCode)
		_, _ = w.Write([]byte(record.ResponseBody))
	}
}

type idempotencyResponseWriter struct {
	http.ResponseWriter
	body   *bytes.Buffer
	status int
}

func (w *idempotencyResponseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *idempotencyResponseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func hashRequest(r *http.Request, body []byte) string {
	h := sha256.New()
	h.Write([]byte(r.Method))
	h.Write([]byte(r.URL.Path))
	if userID, ok := utils.GetUserIDFromContext(r.Context()); ok {
		h.Write([]byte(userID.String()))
	}
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func getIdempotencyRecord(ctx context.Context, client RedisClient, key string) (*IdempotencyRecord, error) {
	raw, err := client.Get(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	var record IdempotencyRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func trySetIdempotencyRecord(ctx context.Context, client RedisClient, key string, record *IdempotencyRecord, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return false, err
	}
	return client.SetNX(ctx, key, string(data), ttl).Result()
}

func saveIdempotencyRecord(ctx context.Context, client RedisClient, key string, record *IdempotencyRecord, ttl time.Duration) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, string(data), ttl).Err()
}
