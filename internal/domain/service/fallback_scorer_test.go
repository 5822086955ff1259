package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wolfitem/ai-news-radar/internal/domain/model"
)

func TestRuleScorer(t *testing.T) {
	r := &RuleScorer{
		PreferredSources:  []string{"Toss_Tech"},
		PreferredKeywords: []string{"Kubernetes"},
	}

	cases := []struct {
		article model.Article
		score   int
	}{
		{model.Article{Source: "Toss_Tech", Title: "결제 시스템 개선"}, 8},
		{model.Article{Source: "toss_tech", Title: "anything"}, 8},
		{model.Article{Source: "GeekNews", Title: "kubernetes 1.31 released"}, 6},
		{model.Article{Source: "GeekNews", Title: "New phone launched"}, 5},
	}

	for _, c := range cases {
		a := c.article
		score, reason := r.Score(&a)
		assert.Equal(t, c.score, score, a.Title)
		assert.Contains(t, reason, FallbackMarker)
	}
}

func TestRuleScorerScoreAllMarksFallback(t *testing.T) {
	articles := []*model.Article{{Source: "A", Title: "x"}, {Source: "B", Title: "y"}}

	(&RuleScorer{}).ScoreAll(articles)

	for _, a := range articles {
		assert.Equal(t, 5, a.Score())
		assert.True(t, IsFallback(a))
	}
	assert.False(t, IsFallback(&model.Article{}))
}
