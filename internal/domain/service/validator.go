package service

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/wolfitem/ai-news-radar/internal/domain/model"
)

// Validator 提供输入验证功能
type Validator struct {
	// AllowPrivate 允许访问内网地址，仅用于本地调试
	AllowPrivate bool
}

// NewValidator 创建新的验证器实例
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateFilePath 验证OPML文件路径
func (v *Validator) ValidateFilePath(filePath string) error {
	if strings.TrimSpace(filePath) == "" {
		return errors.New("文件路径不能为空")
	}

	cleanPath := filepath.Clean(filePath)

	// 检查路径是否包含目录遍历尝试
	for _, part := range strings.Split(filepath.ToSlash(cleanPath), "/") {
		if part == ".." || part == "~" {
			return fmt.Errorf("路径包含非法字符: %s", cleanPath)
		}
	}

	if !strings.HasSuffix(strings.ToLower(cleanPath), ".opml") {
		return fmt.Errorf("只允许.OPML文件格式: %s", cleanPath)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return fmt.Errorf("文件访问失败: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("路径指向目录而非文件: %s", cleanPath)
	}

	// 验证文件大小合理性（最大10MB限制）
	if info.Size() > 10*1024*1024 {
		return fmt.Errorf("文件过大(>10MB): %s", cleanPath)
	}

	return nil
}

// ValidateURL 验证RSS源URL合法性
func (v *Validator) ValidateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errors.New("URL不能为空")
	}

	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("无效的URL格式: %s", raw)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("只允许HTTP/HTTPS协议: %s", raw)
	}

	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("URL缺少主机名: %s", raw)
	}

	if v.AllowPrivate {
		return nil
	}

	// 禁止访问内部网络
	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("禁止访问内部网络地址: %s", host)
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
			return fmt.Errorf("禁止访问内部网络地址: %s", host)
		}
		return nil
	}
	if !strings.Contains(host, ".") {
		return fmt.Errorf("无效域名: %s", host)
	}

	return nil
}

// ValidateSources 过滤掉URL无效的源，返回有效源和错误列表
func (v *Validator) ValidateSources(sources []model.RssSource) ([]model.RssSource, []error) {
	var (
		valid []model.RssSource
		errs  []error
	)
	for _, src := range sources {
		if err := v.ValidateURL(src.URL); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", src.Name, err))
			continue
		}
		valid = append(valid, src)
	}
	return valid, errs
}

// ResolveAPIKeys 获取提供方的API密钥
//
// 环境变量 <NAME>_API_KEYS（逗号分隔）优先于配置文件；占位符密钥被拒绝。
func (v *Validator) ResolveAPIKeys(provider model.ProviderConfig) ([]string, error) {
	keys := provider.APIKeys
	envName := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(provider.Name)) + "_API_KEYS"
	if env := os.Getenv(envName); env != "" {
		keys = strings.Split(env, ",")
	}

	var resolved []string
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if strings.Contains(k, "****") {
			return nil, fmt.Errorf("检测到占位符API密钥，请通过环境变量 %s 设置真实密钥", envName)
		}
		resolved = append(resolved, k)
	}
	if len(resolved) == 0 {
		return nil, fmt.Errorf("提供方 %s 未配置API密钥，请设置环境变量: export %s=key1,key2", provider.Name, envName)
	}
	return resolved, nil
}
