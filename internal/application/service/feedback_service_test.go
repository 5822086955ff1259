package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfitem/ai-news-radar/internal/domain/model"
	"github.com/wolfitem/ai-news-radar/internal/domain/service"
	"github.com/wolfitem/ai-news-radar/internal/infrastructure/database"
)

type fakePoller struct {
	events  []model.FeedbackEvent
	next    int
	err     error
	offsets []int
}

func (p *fakePoller) PollFeedback(_ context.Context, offset int) ([]model.FeedbackEvent, int, error) {
	p.offsets = append(p.offsets, offset)
	if p.err != nil {
		return nil, offset, p.err
	}
	return p.events, p.next, nil
}

type feedbackStores struct {
	sent     *database.SQLiteSentRepository
	feedback *database.SQLiteFeedbackRepository
	state    *database.SQLiteStateRepository
}

func newFeedbackStores(t *testing.T) feedbackStores {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "radar.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return feedbackStores{
		sent:     database.NewSQLiteSentRepository(db),
		feedback: database.NewSQLiteFeedbackRepository(db),
		state:    database.NewSQLiteStateRepository(db),
	}
}

func TestFeedbackSyncStoresKnownArticles(t *testing.T) {
	stores := newFeedbackStores(t)
	link := "https://x.com/a"
	require.NoError(t, stores.sent.Insert(model.DeliveryRecord{
		LinkHash: service.LinkHash(link),
		Link:     link,
		Title:    "eBPF 观测实践",
		Source:   "A",
		Score:    8,
		SentAt:   time.Now(),
	}))

	poller := &fakePoller{
		events: []model.FeedbackEvent{
			{LinkID: service.FeedbackID(link), Tag: model.FeedbackLike, UserID: 1, At: time.Now()},
			{LinkID: "0000000000000000", Tag: model.FeedbackDislike, UserID: 1, At: time.Now()},
		},
		next: 42,
	}
	svc := NewFeedbackService(poller, stores.sent, stores.feedback, stores.state)

	saved, err := svc.Sync(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, saved)
	likes, err := stores.feedback.RecentByTag(model.FeedbackLike, 10)
	require.NoError(t, err)
	require.Len(t, likes, 1)
	assert.Equal(t, "eBPF 观测实践", likes[0].Title)
	assert.Equal(t, service.LinkHash(link), likes[0].LinkHash)

	offset, ok, err := stores.state.GetState(UpdateOffsetKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "42", offset)

	_, err = svc.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 42}, poller.offsets)
}

func TestFeedbackSyncKeepsOffsetOnPollError(t *testing.T) {
	stores := newFeedbackStores(t)
	require.NoError(t, stores.state.SetState(UpdateOffsetKey, "7"))
	poller := &fakePoller{err: errors.New("network down")}
	svc := NewFeedbackService(poller, stores.sent, stores.feedback, stores.state)

	_, err := svc.Sync(context.Background())

	assert.Error(t, err)
	assert.Equal(t, []int{7}, poller.offsets)
	offset, _, err := stores.state.GetState(UpdateOffsetKey)
	require.NoError(t, err)
	assert.Equal(t, "7", offset)
}

type flakySink struct {
	FeedbackSink
	failOn int
	calls  int
}

func (f *flakySink) Save(record model.FeedbackRecord) error {
	f.calls++
	if f.calls == f.failOn {
		return errors.New("disk full")
	}
	return f.FeedbackSink.Save(record)
}

func TestFeedbackSyncPartialFailureDoesNotDuplicate(t *testing.T) {
	stores := newFeedbackStores(t)
	links := []string{"https://x.com/1", "https://x.com/2"}
	for _, link := range links {
		require.NoError(t, stores.sent.Insert(model.DeliveryRecord{
			LinkHash: service.LinkHash(link), Link: link, Title: link, SentAt: time.Now(),
		}))
	}

	poller := &fakePoller{
		events: []model.FeedbackEvent{
			{UpdateID: 10, LinkID: service.FeedbackID(links[0]), Tag: model.FeedbackLike, At: time.Now()},
			{UpdateID: 11, LinkID: service.FeedbackID(links[1]), Tag: model.FeedbackLike, At: time.Now()},
		},
		next: 12,
	}
	sink := &flakySink{FeedbackSink: stores.feedback, failOn: 2}
	svc := NewFeedbackService(poller, stores.sent, sink, stores.state)

	saved, err := svc.Sync(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, saved)
	offset, _, err := stores.state.GetState(UpdateOffsetKey)
	require.NoError(t, err)
	assert.Equal(t, "11", offset)

	// 平台从偏移量11开始只返回未处理的那条
	poller.events = poller.events[1:]
	saved, err = svc.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, saved)
	assert.Equal(t, []int{0, 11}, poller.offsets)

	likes, err := stores.feedback.RecentByTag(model.FeedbackLike, 10)
	require.NoError(t, err)
	assert.Len(t, likes, 2)
}
