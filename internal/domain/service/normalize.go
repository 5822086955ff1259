package service

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// LinkNormalizer 把文章链接规范化为去重键
//
// 默认只保留 scheme+host+path，查询参数和锚点一律去掉，避免追踪参数
// 把同一篇文章变成"新"文章。KeepQueryHosts 中的站点用查询参数标识文章
// （例如 news.hada.io/topic?id=123），这些站点保留排序后的非追踪参数。
type LinkNormalizer struct {
	KeepQueryHosts []string
}

// 追踪参数，对任何站点都去掉
var trackingParams = map[string]bool{
	"fbclid":  true,
	"gclid":   true,
	"ref":     true,
	"ref_src": true,
	"source":  true,
}

// Normalize 规范化链接，无法解析时返回去掉空白的原串
func (n LinkNormalizer) Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		scheme = "https"
	}
	host := strings.ToLower(u.Host)

	path := u.EscapedPath()
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	if path == "/" {
		path = ""
	}

	normalized := scheme + "://" + host + path
	if n.keepQuery(host) {
		if q := cleanQuery(u.Query()); q != "" {
			normalized += "?" + q
		}
	}
	return normalized
}

func (n LinkNormalizer) keepQuery(host string) bool {
	host = strings.TrimPrefix(host, "www.")
	for _, h := range n.KeepQueryHosts {
		if strings.TrimPrefix(strings.ToLower(h), "www.") == host {
			return true
		}
	}
	return false
}

func cleanQuery(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "utm_") || trackingParams[lk] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	kept := url.Values{}
	for _, k := range keys {
		kept[k] = values[k]
	}
	return kept.Encode()
}

// NormalizeLink 使用默认规则规范化链接
func NormalizeLink(raw string) string {
	return LinkNormalizer{}.Normalize(raw)
}

// LinkHash 规范化链接的sha256十六进制串
func LinkHash(normalizedLink string) string {
	sum := sha256.Sum256([]byte(normalizedLink))
	return hex.EncodeToString(sum[:])
}

// FeedbackID 截断的哈希，用作Telegram回调数据中的文章标识
func FeedbackID(normalizedLink string) string {
	return LinkHash(normalizedLink)[:16]
}
