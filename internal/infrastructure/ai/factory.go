package ai

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/wolfitem/ai-news-radar/internal/domain/model"
	"github.com/wolfitem/ai-news-radar/internal/domain/service"
	"github.com/wolfitem/ai-news-radar/internal/infrastructure/logger"
)

const (
	TypeGemini = "gemini"
	TypeOpenAI = "openai"
)

// KeyResolver 解析提供方的API密钥
type KeyResolver interface {
	ResolveAPIKeys(provider model.ProviderConfig) ([]string, error)
}

// Providers 按故障转移顺序排列的提供方
type Providers struct {
	Clients []service.AIClient
	closers []io.Closer
}

// Close 释放所有提供方持有的连接
func (p *Providers) Close() {
	for _, c := range p.closers {
		if err := c.Close(); err != nil {
			logger.Warn("关闭模型客户端失败", "error", err)
		}
	}
}

// BuildProviders 按配置顺序创建提供方，每个密钥占一个故障转移位置
func BuildProviders(ctx context.Context, cfg model.LLMConfig, keys KeyResolver) (*Providers, error) {
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("未配置任何大模型提供方 (llm.providers)")
	}

	timeout := time.Duration(cfg.CallTimeout) * time.Second
	out := &Providers{}
	for _, p := range cfg.Providers {
		apiKeys, err := keys.ResolveAPIKeys(p)
		if err != nil {
			out.Close()
			return nil, err
		}

		for i, key := range apiKeys {
			name := fmt.Sprintf("%s#%d", p.Name, i+1)
			switch strings.ToLower(p.Type) {
			case TypeGemini, "":
				client, err := NewGeminiClient(ctx, name, key, p.Model, p.MaxTokens)
				if err != nil {
					out.Close()
					return nil, err
				}
				out.Clients = append(out.Clients, client)
				out.closers = append(out.closers, client)
			case TypeOpenAI:
				out.Clients = append(out.Clients, NewOpenAIClient(name, p.APIUrl, key, p.Model, p.MaxTokens, timeout))
			default:
				out.Close()
				return nil, fmt.Errorf("不支持的提供方类型 %q (provider %s)", p.Type, p.Name)
			}
		}
	}

	logger.Info("大模型提供方已就绪", "slots", len(out.Clients))
	return out, nil
}
