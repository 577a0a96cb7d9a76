package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const timerKey = "barkbase:automation:resume_timers"

// RedisStore keeps resume timers in a sorted set scored by resume instant.
// Members encode tenant and execution so a claimed entry carries everything
// the resume message needs.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Schedule(ctx context.Context, entry Entry) error {
	err := s.client.ZAdd(ctx, timerKey, redis.Z{
		Score:  float64(entry.ResumeAt.UnixMilli()),
		Member: member(entry.TenantID, entry.ExecutionID),
	}).Err()
	if err != nil {
		return fmt.Errorf("scheduling resume timer for execution %s: %w", entry.ExecutionID, err)
	}

	return nil
}

// ClaimDue claims with ZRem so concurrent pollers never return the same entry
// twice: only the caller whose removal succeeded keeps it. The claimed score
// rides along as ResumeAt so a failed dispatch reschedules at the original
// instant.
func (s *RedisStore) ClaimDue(ctx context.Context, now time.Time, limit int) ([]Entry, error) {
	members, err := s.client.ZRangeByScoreWithScores(ctx, timerKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", now.UnixMilli()),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("selecting due resume timers: %w", err)
	}

	entries := make([]Entry, 0, len(members))

	for _, z := range members {
		m, ok := z.Member.(string)
		if !ok {
			continue
		}

		removed, err := s.client.ZRem(ctx, timerKey, m).Result()
		if err != nil {
			return nil, fmt.Errorf("claiming resume timer %s: %w", m, err)
		}

		if removed == 0 {
			continue
		}

		tenantID, executionID, ok := parseMember(m)
		if !ok {
			continue
		}

		entries = append(entries, Entry{
			ExecutionID: executionID,
			TenantID:    tenantID,
			ResumeAt:    time.UnixMilli(int64(z.Score)).UTC(),
		})
	}

	return entries, nil
}

func (s *RedisStore) Remove(ctx context.Context, executionID string) error {
	members, err := s.client.ZRange(ctx, timerKey, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("listing resume timers: %w", err)
	}

	for _, m := range members {
		if _, id, ok := parseMember(m); ok && id == executionID {
			if err := s.client.ZRem(ctx, timerKey, m).Err(); err != nil {
				return fmt.Errorf("removing resume timer for execution %s: %w", executionID, err)
			}
		}
	}

	return nil
}

func member(tenantID, executionID string) string {
	return tenantID + "|" + executionID
}

func parseMember(m string) (tenantID, executionID string, ok bool) {
	idx := strings.IndexByte(m, '|')
	if idx < 0 {
		return "", "", false
	}

	return m[:idx], m[idx+1:], true
}
