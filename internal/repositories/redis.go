package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"gar-rock/resume-crunch/internal/models"
)

// maxTxRetries bounds optimistic retries when a watched key changes under us.
const maxTxRetries = 32

type redisResumeRepository struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisResumeRepository stores one JSON document per resume and keeps an
// index set of filenames. Updates use WATCH/MULTI on the record key.
func NewRedisResumeRepository(rdb *redis.Client, prefix string) ResumeRepository {
	if prefix == "" {
		prefix = "resumecrunch"
	}
	return &redisResumeRepository{rdb: rdb, prefix: prefix}
}

func (r *redisResumeRepository) key(filename string) string {
	return r.prefix + ":resume:" + filename
}

func (r *redisResumeRepository) indexKey() string {
	return r.prefix + ":resumes"
}

func (r *redisResumeRepository) Create(ctx context.Context, record *models.ResumeRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode resume: %w", err)
	}

	key := r.key(record.Filename)
	return r.withRetry(ctx, key, func(tx *redis.Tx) error {
		existing, err := r.load(ctx, tx, key)
		if err != nil && !errors.Is(err, ErrResumeNotFound) {
			return err
		}
		if existing != nil && existing.ProcessingStatus == models.StatusProcessing {
			return fmt.Errorf("%s: %w", record.Filename, ErrResumeProcessing)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			pipe.SAdd(ctx, r.indexKey(), record.Filename)
			return nil
		})
		return err
	})
}

func (r *redisResumeRepository) FindByFilename(ctx context.Context, filename string) (*models.ResumeRecord, error) {
	return r.load(ctx, r.rdb, r.key(filename))
}

func (r *redisResumeRepository) FindAll(ctx context.Context) ([]models.ResumeRecord, error) {
	names, err := r.rdb.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list resumes: %w", err)
	}
	if len(names) == 0 {
		return []models.ResumeRecord{}, nil
	}

	keys := make([]string, len(names))
	for i, name := range names {
		keys[i] = r.key(name)
	}

	values, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load resumes: %w", err)
	}

	out := make([]models.ResumeRecord, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue // removed between SMEMBERS and MGET
		}
		var rec models.ResumeRecord
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode resume %s: %w", names[i], err)
		}
		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out, nil
}

func (r *redisResumeRepository) FindByStatus(ctx context.Context, status models.ProcessingStatus, limit int) ([]models.ResumeRecord, error) {
	all, err := r.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	var out []models.ResumeRecord
	for _, rec := range all {
		if rec.ProcessingStatus == status {
			out = append(out, rec)
		}
	}
	sortByUploadTime(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *redisResumeRepository) Update(ctx context.Context, filename string, mutate func(*models.ResumeRecord) error) (*models.ResumeRecord, error) {
	key := r.key(filename)

	var updated *models.ResumeRecord
	err := r.withRetry(ctx, key, func(tx *redis.Tx) error {
		rec, err := r.load(ctx, tx, key)
		if err != nil {
			return err
		}

		if err := mutate(rec); err != nil {
			return err
		}

		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode resume: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		if err == nil {
			updated = rec
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (r *redisResumeRepository) Delete(ctx context.Context, filename string) error {
	key := r.key(filename)
	return r.withRetry(ctx, key, func(tx *redis.Tx) error {
		rec, err := r.load(ctx, tx, key)
		if err != nil {
			return err
		}
		if rec.ProcessingStatus == models.StatusProcessing {
			return fmt.Errorf("%s: %w", filename, ErrResumeProcessing)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.SRem(ctx, r.indexKey(), filename)
			return nil
		})
		return err
	})
}

func (r *redisResumeRepository) load(ctx context.Context, c redis.Cmdable, key string) (*models.ResumeRecord, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%s: %w", key, ErrResumeNotFound)
		}
		return nil, fmt.Errorf("failed to load resume: %w", err)
	}

	var rec models.ResumeRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode resume: %w", err)
	}
	return &rec, nil
}

func (r *redisResumeRepository) withRetry(ctx context.Context, key string, fn func(tx *redis.Tx) error) error {
	for i := 0; i < maxTxRetries; i++ {
		err := r.rdb.Watch(ctx, fn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("%s: too much contention after %d attempts", key, maxTxRetries)
}
