package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalis-health/vitalis/backend/internal/analysis"
)

// fakeCmdable implements the two redis commands RedisKV uses. The embedded
// interface panics if anything else is called.
type fakeCmdable struct {
	redis.Cmdable
	data    map[string]string
	ttls    map[string]time.Duration
	failErr error
}

func newFakeCmdable() *fakeCmdable {
	return &fakeCmdable{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeCmdable) Get(_ context.Context, key string) *redis.StringCmd {
	if f.failErr != nil {
		return redis.NewStringResult("", f.failErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeCmdable) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.failErr != nil {
		return redis.NewStatusResult("", f.failErr)
	}
	f.data[key] = value.(string)
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func aiAnalysis() *analysis.MedicalAIAnalysis {
	return &analysis.MedicalAIAnalysis{
		Source:       analysis.SourceAIGenerated,
		Model:        "gemini:gemini-1.5-flash",
		OverallScore: 83,
		RiskLevel:    analysis.RiskLow,
		Summary:      "Glucose is elevated.",
		KeyFindings:  []string{"Glucose 250 mg/dL is critical"},
		GeneratedAt:  time.Date(2024, 3, 12, 9, 30, 0, 0, time.UTC),
	}
}

func TestRedisKV_Miss(t *testing.T) {
	kv := NewRedisKV(newFakeCmdable())
	_, err := kv.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisCache_RoundTrip(t *testing.T) {
	fake := newFakeCmdable()
	c := NewRedisCache(NewRedisKV(fake), time.Hour, nil)
	ctx := context.Background()

	_, ok := c.Get(ctx, "abc")
	assert.False(t, ok)

	c.Set(ctx, "abc", aiAnalysis())
	require.Contains(t, fake.data, KeyPrefix+"abc")
	assert.Equal(t, time.Hour, fake.ttls[KeyPrefix+"abc"])

	got, ok := c.Get(ctx, "abc")
	require.True(t, ok)
	assert.Equal(t, aiAnalysis(), got)
}

func TestRedisCache_SkipsRuleBased(t *testing.T) {
	fake := newFakeCmdable()
	c := NewRedisCache(NewRedisKV(fake), 0, nil)

	c.Set(context.Background(), "abc", analysis.FallbackAnalysis())
	assert.Empty(t, fake.data)
}

func TestRedisCache_ErrorsAreMisses(t *testing.T) {
	fake := newFakeCmdable()
	c := NewRedisCache(NewRedisKV(fake), 0, nil)
	ctx := context.Background()

	fake.data[KeyPrefix+"corrupt"] = "{not json"
	_, ok := c.Get(ctx, "corrupt")
	assert.False(t, ok)

	fake.failErr = errors.New("connection refused")
	_, ok = c.Get(ctx, "abc")
	assert.False(t, ok)

	// Write failures are logged, not returned.
	c.Set(ctx, "abc", aiAnalysis())
	assert.NotContains(t, fake.data, KeyPrefix+"abc")
}

func TestNewRedisCache_DefaultTTL(t *testing.T) {
	c := NewRedisCache(NewRedisKV(newFakeCmdable()), -time.Second, nil)
	assert.Equal(t, DefaultTTL, c.ttl)
}
