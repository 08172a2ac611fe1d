package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"drowsiness-service/internal/analysis"
	"drowsiness-service/internal/models"
)

// newTestCache connects to REDIS_ADDR (localhost:6379 by default)
// and skips the test when Redis is unreachable.
func newTestCache(t *testing.T, historySize int) *RedisCache {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	c, err := NewRedisCache(ctx, addr, os.Getenv("REDIS_PASSWORD"), 0, historySize)
	if err != nil {
		t.Skipf("Redis is not available at %s: %v", addr, err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestKeys(t *testing.T) {
	id := "5f0c1d2e"

	if got := latestKey(id); got != "result:latest:5f0c1d2e" {
		t.Errorf("Unexpected latest key %s", got)
	}
	if got := historyKey(id); got != "results:5f0c1d2e" {
		t.Errorf("Unexpected history key %s", got)
	}
	if got := sessionKey(id); got != "session:5f0c1d2e" {
		t.Errorf("Unexpected session key %s", got)
	}
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if _, err := NewRedisCache(ctx, "127.0.0.1:1", "", 0, 10); err == nil {
		t.Error("Expected connection error for an unreachable Redis")
	}
}

func TestCacheResult_HistoryTrimmedNewestFirst(t *testing.T) {
	c := newTestCache(t, 3)
	ctx := context.Background()
	id := uuid.NewString()
	t.Cleanup(func() { c.DeleteSession(context.Background(), id) })

	for ts := int64(1); ts <= 5; ts++ {
		if err := c.CacheResult(ctx, models.FrameResult{SessionID: id, TimestampMs: ts}); err != nil {
			t.Fatalf("CacheResult: %v", err)
		}
	}

	results, err := c.GetLatestResults(ctx, id, 10)
	if err != nil {
		t.Fatalf("GetLatestResults: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Expected history trimmed to 3, got %d", len(results))
	}
	for i, want := range []int64{5, 4, 3} {
		if results[i].TimestampMs != want {
			t.Errorf("result %d: expected timestamp %d, got %d", i, want, results[i].TimestampMs)
		}
	}

	latest, found, err := c.GetLatestResult(ctx, id)
	if err != nil || !found || latest.TimestampMs != 5 {
		t.Errorf("Expected latest timestamp 5, got %+v (found=%v, err=%v)", latest, found, err)
	}
}

func TestCacheResult_Counters(t *testing.T) {
	c := newTestCache(t, 10)
	ctx := context.Background()
	id := uuid.NewString()
	t.Cleanup(func() { c.DeleteSession(context.Background(), id) })

	framesBefore, _ := c.GetCounter(ctx, FramesTotalKey)
	nodsBefore, _ := c.GetCounter(ctx, NodsTotalKey)

	c.CacheResult(ctx, models.FrameResult{SessionID: id, TimestampMs: 1})
	c.CacheResult(ctx, models.FrameResult{SessionID: id, TimestampMs: 2, IsNodEvent: true, TotalNods: 1})
	c.CacheResult(ctx, models.FrameResult{SessionID: id, TimestampMs: 3, TotalNods: 1})

	framesAfter, _ := c.GetCounter(ctx, FramesTotalKey)
	nodsAfter, _ := c.GetCounter(ctx, NodsTotalKey)

	// Counters are shared with other clients of the same Redis, check a lower bound
	if framesAfter-framesBefore < 3 {
		t.Errorf("Expected frames counter to grow by 3, grew by %d", framesAfter-framesBefore)
	}
	if nodsAfter-nodsBefore < 1 {
		t.Errorf("Expected nods counter to grow by 1, grew by %d", nodsAfter-nodsBefore)
	}
}

func TestCacheResult_NodsCountOnlyEvents(t *testing.T) {
	c := newTestCache(t, 10)
	ctx := context.Background()
	id := uuid.NewString()
	t.Cleanup(func() { c.DeleteSession(context.Background(), id) })

	nodsBefore, _ := c.GetCounter(ctx, NodsTotalKey)
	for ts := int64(1); ts <= 5; ts++ {
		c.CacheResult(ctx, models.FrameResult{SessionID: id, TimestampMs: ts, TotalNods: 2})
	}
	nodsAfter, _ := c.GetCounter(ctx, NodsTotalKey)

	if nodsAfter != nodsBefore {
		t.Errorf("Frames without a nod event must not change the nods counter: %d -> %d", nodsBefore, nodsAfter)
	}
}

func TestSaveSession_RoundTrip(t *testing.T) {
	c := newTestCache(t, 10)
	ctx := context.Background()
	id := uuid.NewString()
	t.Cleanup(func() { c.DeleteSession(context.Background(), id) })

	info := models.SessionInfo{
		ID:        id,
		Source:    "cab-camera",
		Frames:    7,
		TotalNods: 2,
		State:     analysis.Snapshot{NodState: analysis.NodDown, NodCount: 2},
		Config:    analysis.DefaultConfig(),
	}
	if err := c.SaveSession(ctx, info, time.Minute); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	got, found, err := c.GetSession(ctx, id)
	if err != nil || !found {
		t.Fatalf("GetSession: found=%v err=%v", found, err)
	}
	if got.State != info.State || got.Frames != 7 || got.Config != info.Config {
		t.Errorf("Expected %+v, got %+v", info, got)
	}

	c.DeleteSession(ctx, id)
	if _, found, _ := c.GetSession(ctx, id); found {
		t.Error("Session should be gone after DeleteSession")
	}
}
