package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfitem/ai-news-radar/internal/domain/model"
)

func TestValidateURL(t *testing.T) {
	v := NewValidator()

	for _, ok := range []string{
		"https://news.hada.io/rss/news",
		"https://toss.tech/rss.xml",
		"http://feeds.example.com/feed?format=atom",
	} {
		assert.NoError(t, v.ValidateURL(ok), ok)
	}

	for _, bad := range []string{
		"",
		"ftp://example.com/feed",
		"https://localhost/feed",
		"http://127.0.0.1:8080/rss",
		"http://192.168.1.10/rss",
		"http://intranet/rss",
		"not a url",
	} {
		assert.Error(t, v.ValidateURL(bad), bad)
	}

	assert.NoError(t, (&Validator{AllowPrivate: true}).ValidateURL("http://127.0.0.1:8080/rss"))
}

func TestValidateSources(t *testing.T) {
	valid, errs := NewValidator().ValidateSources([]model.RssSource{
		{Name: "ok", URL: "https://toss.tech/rss.xml"},
		{Name: "bad", URL: "file:///etc/passwd"},
	})

	require.Len(t, valid, 1)
	assert.Equal(t, "ok", valid[0].Name)
	assert.Len(t, errs, 1)
}

func TestValidateFilePath(t *testing.T) {
	dir := t.TempDir()
	opml := filepath.Join(dir, "feeds.opml")
	require.NoError(t, os.WriteFile(opml, []byte("<opml/>"), 0o644))

	v := NewValidator()
	assert.NoError(t, v.ValidateFilePath(opml))
	assert.Error(t, v.ValidateFilePath(""))
	assert.Error(t, v.ValidateFilePath(filepath.Join(dir, "feeds.txt")))
	assert.Error(t, v.ValidateFilePath(filepath.Join(dir, "missing.opml")))
	assert.Error(t, v.ValidateFilePath("../feeds.opml"))
}

func TestResolveAPIKeys(t *testing.T) {
	v := NewValidator()

	keys, err := v.ResolveAPIKeys(model.ProviderConfig{Name: "gemini", APIKeys: []string{"k1", " ", "k2"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"k1", "k2"}, keys)

	t.Setenv("GEMINI_API_KEYS", "e1, e2")
	keys, err = v.ResolveAPIKeys(model.ProviderConfig{Name: "gemini", APIKeys: []string{"k1"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"e1", "e2"}, keys)

	_, err = v.ResolveAPIKeys(model.ProviderConfig{Name: "openai", APIKeys: []string{"sk-****"}})
	assert.Error(t, err)

	_, err = v.ResolveAPIKeys(model.ProviderConfig{Name: "openai"})
	assert.Error(t, err)
}
