package service

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// ScoreEntry 评分响应中的一项
type ScoreEntry struct {
	Score  int
	Reason string
}

const (
	// MissingScore 响应条目不足时的默认分数
	MissingScore = 1
	// MissingReason 响应条目不足时的默认理由
	MissingReason = "missing evaluation"
)

// 评分响应语法：每篇文章一行 [<整数>: <文本>]，按出现顺序对应文章下标
var scorePattern = regexp.MustCompile(`^\[(\d+)\s*:\s*([^\]\n]*)\]`)

// ParseScores 把模型响应解析为 expected 个评分
//
// 每个以 "[" 开头的行占一个位置，第 i 个位置对应第 i 篇文章；格式不符的行
// 仍占位，对应文章得到 MissingScore 和 MissingReason，后面的评分不会错位。
// 多余的行被忽略，行数不足时剩余文章同样取默认值。分数被限制在 1..10。
func ParseScores(response string, expected int) []ScoreEntry {
	entries := make([]ScoreEntry, expected)
	for i := range entries {
		entries[i] = ScoreEntry{Score: MissingScore, Reason: MissingReason}
	}

	slot := 0
	for _, line := range strings.Split(response, "\n") {
		if slot >= expected {
			break
		}
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "[") {
			continue
		}
		if e, ok := parseScoreLine(line); ok {
			entries[slot] = e
		}
		slot++
	}
	return entries
}

func parseScoreLine(line string) (ScoreEntry, bool) {
	m := scorePattern.FindStringSubmatch(line)
	if m == nil {
		return ScoreEntry{}, false
	}
	score, err := strconv.Atoi(m[1])
	if err != nil {
		return ScoreEntry{}, false
	}
	reason := strings.TrimSpace(m[2])
	if reason == "" {
		reason = MissingReason
	}
	return ScoreEntry{Score: clampScore(score), Reason: reason}, true
}

func clampScore(score int) int {
	if score < 1 {
		return 1
	}
	if score > 10 {
		return 10
	}
	return score
}

var (
	likesPattern    = regexp.MustCompile(`(?i)^\s*(?:\*\*)?LIKES(?:\*\*)?\s*[:：]\s*(.*)$`)
	dislikesPattern = regexp.MustCompile(`(?i)^\s*(?:\*\*)?DISLIKES(?:\*\*)?\s*[:：]\s*(.*)$`)
)

// ErrPreferenceFormat 偏好响应缺少必需字段
var ErrPreferenceFormat = errors.New("preference response missing LIKES or DISLIKES")

// ParsePreference 解析两字段格式的偏好摘要
//
//	LIKES: <喜欢的主题>
//	DISLIKES: <不喜欢的主题>
func ParsePreference(response string) (likes, dislikes string, err error) {
	for _, line := range strings.Split(response, "\n") {
		if m := likesPattern.FindStringSubmatch(line); m != nil && likes == "" {
			likes = strings.TrimSpace(m[1])
			continue
		}
		if m := dislikesPattern.FindStringSubmatch(line); m != nil && dislikes == "" {
			dislikes = strings.TrimSpace(m[1])
		}
	}
	if likes == "" || dislikes == "" {
		return "", "", ErrPreferenceFormat
	}
	return likes, dislikes, nil
}
