package service

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfitem/ai-news-radar/internal/domain/model"
)

func scored(scores ...int) []*model.Article {
	articles := make([]*model.Article, len(scores))
	for i, s := range scores {
		articles[i] = &model.Article{Title: fmt.Sprintf("a%d", i), Link: fmt.Sprintf("https://x.com/%d", i)}
		articles[i].Evaluate(s, "r")
	}
	return articles
}

func titles(articles []*model.Article) []string {
	out := make([]string, len(articles))
	for i, a := range articles {
		out[i] = a.Title
	}
	return out
}

func TestSelectCandidatesFallsBackToLowThreshold(t *testing.T) {
	articles := scored(5, 3, 4, 2)

	assert.Empty(t, scoredAtLeast(articles, 7))
	selected := SelectCandidates(articles, 7, 4, 3)

	assert.Equal(t, []string{"a0", "a2"}, titles(selected))
}

func TestSelectCandidatesTopK(t *testing.T) {
	articles := scored(7, 8, 9, 10, 7, 8, 9, 10, 7, 8)

	selected := SelectCandidates(articles, 7, 4, 3)

	require.Len(t, selected, 3)
	assert.Equal(t, []string{"a3", "a7", "a2"}, titles(selected))
}

func TestSelectCandidatesIgnoresLowWhenHighExists(t *testing.T) {
	selected := SelectCandidates(scored(6, 7, 5), 7, 4, 3)

	assert.Equal(t, []string{"a1"}, titles(selected))
}

func TestSelectCandidatesNothingQualifies(t *testing.T) {
	assert.Empty(t, SelectCandidates(scored(1, 2, 3), 7, 4, 3))
	assert.Empty(t, SelectCandidates(nil, 7, 4, 3))
}

func TestMidBand(t *testing.T) {
	band := MidBand(scored(4, 7, 6, 3, 5), 4, 7)

	assert.Equal(t, []string{"a2", "a4", "a0"}, titles(band))
}

func TestFilterBlacklisted(t *testing.T) {
	b, err := NewBlacklist([]string{"sale", `^\[AD\]`, ""})
	require.NoError(t, err)
	articles := []*model.Article{{Title: "K8s news"}, {Title: "Sale event"}, {Title: "[ad] buy now"}}

	kept, removed := FilterBlacklisted(articles, b)

	assert.Equal(t, []string{"K8s news"}, titles(kept))
	assert.Equal(t, 2, removed)

	kept, removed = FilterBlacklisted(articles, nil)
	assert.Len(t, kept, 3)
	assert.Zero(t, removed)
}

func TestNewBlacklistRejectsInvalidPattern(t *testing.T) {
	_, err := NewBlacklist([]string{"("})
	assert.Error(t, err)
}

func TestCapArticles(t *testing.T) {
	articles := scored(1, 2, 3)

	assert.Len(t, CapArticles(articles, 2), 2)
	assert.Len(t, CapArticles(articles, 0), 3)
	assert.Len(t, CapArticles(articles, 10), 3)
}
