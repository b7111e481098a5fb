package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-notify/internal/models"
)

// CheckpointStore persists deadline checkpoints. A zero time means no checkpoint has been stored yet.
type CheckpointStore interface {
	Get(ctx context.Context, assignmentID models.AssignmentID, kind models.DeadlineKind) (time.Time, error)
	// CompareAndSwap moves the checkpoint from old to next and reports whether this caller won.
	// A zero old value only matches an absent checkpoint; a zero next value removes it.
	CompareAndSwap(ctx context.Context, assignmentID models.AssignmentID, kind models.DeadlineKind, old, next time.Time) (bool, error)
}

// NormalizeCheckpoint strips monotonic readings and sub-microsecond precision so that stored
// checkpoints compare equal after a round trip through any store.
func NormalizeCheckpoint(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return t.UTC().Truncate(time.Microsecond)
}

type gormCheckpointStore struct {
	db *gorm.DB
}

// NewGormCheckpointStore constructs a checkpoint store backed by the relational database.
func NewGormCheckpointStore(db *gorm.DB) CheckpointStore {
	return &gormCheckpointStore{db: db}
}

func (s *gormCheckpointStore) Get(ctx context.Context, assignmentID models.AssignmentID, kind models.DeadlineKind) (time.Time, error) {
	var checkpoint models.DeadlineCheckpoint
	err := s.db.WithContext(ctx).
		Where("assignment_id = ? AND kind = ?", assignmentID, kind).
		First(&checkpoint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, translateError(err, "checkpoint", assignmentID)
	}
	return NormalizeCheckpoint(checkpoint.CheckpointAt), nil
}

func (s *gormCheckpointStore) CompareAndSwap(ctx context.Context, assignmentID models.AssignmentID, kind models.DeadlineKind, old, next time.Time) (bool, error) {
	old = NormalizeCheckpoint(old)
	next = NormalizeCheckpoint(next)
	now := time.Now().UTC()

	if old.IsZero() {
		result := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.DeadlineCheckpoint{
				AssignmentID: assignmentID,
				Kind:         kind,
				CheckpointAt: next,
				UpdatedAt:    now,
			})
		if result.Error != nil {
			return false, translateError(result.Error, "checkpoint", assignmentID)
		}
		return result.RowsAffected == 1, nil
	}

	if next.IsZero() {
		result := s.db.WithContext(ctx).
			Where("assignment_id = ? AND kind = ? AND checkpoint_at = ?", assignmentID, kind, old).
			Delete(&models.DeadlineCheckpoint{})
		if result.Error != nil {
			return false, translateError(result.Error, "checkpoint", assignmentID)
		}
		return result.RowsAffected == 1, nil
	}

	result := s.db.WithContext(ctx).
		Model(&models.DeadlineCheckpoint{}).
		Where("assignment_id = ? AND kind = ? AND checkpoint_at = ?", assignmentID, kind, old).
		Updates(map[string]interface{}{
			"checkpoint_at": next,
			"updated_at":    now,
		})
	if result.Error != nil {
		return false, translateError(result.Error, "checkpoint", assignmentID)
	}
	return result.RowsAffected == 1, nil
}

const checkpointHashKey = "gema:notify:checkpoints"

// KEYS[1] hash, ARGV[1] field, ARGV[2] expected value ("" when absent), ARGV[3] new value ("" to remove).
var compareAndSwapScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], ARGV[1])
if current == false then
  current = ''
end
if current ~= ARGV[2] then
  return 0
end
if ARGV[3] == '' then
  redis.call('HDEL', KEYS[1], ARGV[1])
else
  redis.call('HSET', KEYS[1], ARGV[1], ARGV[3])
end
return 1
`)

type redisCheckpointStore struct {
	client *redis.Client
	key    string
}

// NewRedisCheckpointStore constructs a checkpoint store kept in a Redis hash, shared by every replica.
func NewRedisCheckpointStore(client *redis.Client) CheckpointStore {
	return &redisCheckpointStore{client: client, key: checkpointHashKey}
}

func checkpointField(assignmentID models.AssignmentID, kind models.DeadlineKind) string {
	return fmt.Sprintf("%d:%s", assignmentID, kind)
}

func formatCheckpoint(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return NormalizeCheckpoint(t).Format(time.RFC3339Nano)
}

func (s *redisCheckpointStore) Get(ctx context.Context, assignmentID models.AssignmentID, kind models.DeadlineKind) (time.Time, error) {
	value, err := s.client.HGet(ctx, s.key, checkpointField(assignmentID, kind)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: checkpoint %d: %w", ErrStoreUnavailable, assignmentID, err)
	}
	if value == "" {
		return time.Time{}, nil
	}

	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid checkpoint value %q: %w", value, err)
	}
	return NormalizeCheckpoint(parsed), nil
}

func (s *redisCheckpointStore) CompareAndSwap(ctx context.Context, assignmentID models.AssignmentID, kind models.DeadlineKind, old, next time.Time) (bool, error) {
	swapped, err := compareAndSwapScript.Run(ctx, s.client,
		[]string{s.key},
		checkpointField(assignmentID, kind),
		formatCheckpoint(old),
		formatCheckpoint(next),
	).Int()
	if err != nil {
		return false, fmt.Errorf("%w: checkpoint %d: %w", ErrStoreUnavailable, assignmentID, err)
	}
	return swapped == 1, nil
}
