package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfitem/ai-news-radar/internal/domain/model"
)

type memState map[string]string

func (m memState) GetState(key string) (string, bool, error) {
	v, ok := m[key]
	return v, ok, nil
}

func (m memState) SetState(key, value string) error {
	m[key] = value
	return nil
}

func TestPreferenceCacheRoundTripAndFreshness(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	c := NewPreferenceCache(memState{}, 24*time.Hour)
	c.now = func() time.Time { return now }

	empty, err := c.Load()
	require.NoError(t, err)
	assert.Nil(t, empty)

	require.NoError(t, c.Save(model.UserPreference{Likes: "eBPF", Dislikes: "招聘", SampleHash: "h1"}))
	pref, err := c.Load()
	require.NoError(t, err)
	require.NotNil(t, pref)
	assert.Equal(t, "eBPF", pref.Likes)

	assert.True(t, c.Fresh(pref, "h1"))
	assert.False(t, c.Fresh(pref, "h2"))

	now = now.Add(25 * time.Hour)
	assert.False(t, c.Fresh(pref, "h1"))
}

func TestPreferenceCacheCorruptValue(t *testing.T) {
	c := NewPreferenceCache(memState{PreferenceStateKey: "{"}, time.Hour)

	_, err := c.Load()
	assert.Error(t, err)
}

func TestSampleHashChangesWithSample(t *testing.T) {
	at := time.Unix(1700000000, 0)
	likes := []model.FeedbackRecord{{LinkHash: "a", Tag: model.FeedbackLike, CreatedAt: at}}
	more := append(likes, model.FeedbackRecord{LinkHash: "b", Tag: model.FeedbackLike, CreatedAt: at})

	assert.Equal(t, SampleHash(likes, nil), SampleHash(likes, nil))
	assert.NotEqual(t, SampleHash(likes, nil), SampleHash(more, nil))
	assert.NotEqual(t, SampleHash(likes, nil), SampleHash(nil, likes))
}
