package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScoresMapsEntriesInOrder(t *testing.T) {
	resp := "[8: 新的开源大模型发布]\n[3: 单纯的活动宣传]\n"

	entries := ParseScores(resp, 2)

	require.Len(t, entries, 2)
	assert.Equal(t, ScoreEntry{Score: 8, Reason: "新的开源大模型发布"}, entries[0])
	assert.Equal(t, ScoreEntry{Score: 3, Reason: "单纯的活动宣传"}, entries[1])
}

func TestParseScoresShortResponseGetsDefaults(t *testing.T) {
	entries := ParseScores("好的，以下是评分：\n[7: Kubernetes 1.31 发布]", 3)

	require.Len(t, entries, 3)
	assert.Equal(t, 7, entries[0].Score)
	for _, e := range entries[1:] {
		assert.Equal(t, MissingScore, e.Score)
		assert.Equal(t, MissingReason, e.Reason)
	}
}

func TestParseScoresClampsAndIgnoresExtra(t *testing.T) {
	entries := ParseScores("[15: 太高]\n[0: 太低]\n[5: 多余]", 2)

	assert.Equal(t, 10, entries[0].Score)
	assert.Equal(t, 1, entries[1].Score)
}

func TestParseScoresMalformedLineKeepsItsSlot(t *testing.T) {
	resp := "[9: article zero]\n[high: article one, malformed score]\n[2: article two]"

	entries := ParseScores(resp, 3)

	require.Len(t, entries, 3)
	assert.Equal(t, ScoreEntry{Score: 9, Reason: "article zero"}, entries[0])
	assert.Equal(t, ScoreEntry{Score: MissingScore, Reason: MissingReason}, entries[1])
	assert.Equal(t, ScoreEntry{Score: 2, Reason: "article two"}, entries[2])
}

func TestParseScoresGarbage(t *testing.T) {
	entries := ParseScores("抱歉，我无法完成这个请求。", 2)

	for _, e := range entries {
		assert.Equal(t, MissingScore, e.Score)
	}
	assert.Empty(t, ParseScores("[5: x]", 0))
}

func TestParsePreference(t *testing.T) {
	likes, dislikes, err := ParsePreference("分析结果如下\nLIKES: 云原生, eBPF\n**DISLIKES**: 招聘\n")
	require.NoError(t, err)
	assert.Equal(t, "云原生, eBPF", likes)
	assert.Equal(t, "招聘", dislikes)

	_, _, err = ParsePreference("LIKES: 只有一半")
	assert.ErrorIs(t, err, ErrPreferenceFormat)
}
