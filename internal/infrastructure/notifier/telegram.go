package notifier

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/wolfitem/ai-news-radar/internal/domain/model"
	"github.com/wolfitem/ai-news-radar/internal/domain/service"
	"github.com/wolfitem/ai-news-radar/internal/infrastructure/logger"
	"github.com/wolfitem/ai-news-radar/internal/middleware"
)

const (
	// Telegram 单条消息上限4096，留出余量
	maxMessageRunes = 4000
	maxRetryAfter   = 30 * time.Second
	defaultTimeout  = 10
	separator       = "━━━━━━━━━━━━━━━━━━"
)

// Bot Telegram机器人接口，便于测试替换
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

// BotFactory 创建机器人实例
type BotFactory func(token, apiEndpoint string, client *http.Client) (Bot, error)

var defaultBotFactory BotFactory = func(token, apiEndpoint string, client *http.Client) (Bot, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, apiEndpoint, client)
	if err != nil {
		return nil, err
	}
	return bot, nil
}

// TelegramNotifier 通过Telegram Bot API推送报告
type TelegramNotifier struct {
	cfg        model.TelegramConfig
	normalizer service.LinkNormalizer
	metrics    *middleware.MetricsCollector
	factory    BotFactory
	sleep      service.SleepFunc

	mu  sync.Mutex
	bot Bot
	log *logger.ContextLogger
}

// NewTelegramNotifier 创建Telegram推送器，机器人在第一次发送时才连接
func NewTelegramNotifier(cfg model.TelegramConfig, normalizer service.LinkNormalizer, metrics *middleware.MetricsCollector) (*TelegramNotifier, error) {
	return NewTelegramNotifierWithFactory(cfg, normalizer, metrics, defaultBotFactory)
}

// NewTelegramNotifierWithFactory 使用自定义工厂创建推送器
func NewTelegramNotifierWithFactory(cfg model.TelegramConfig, normalizer service.LinkNormalizer, metrics *middleware.MetricsCollector, factory BotFactory) (*TelegramNotifier, error) {
	if strings.TrimSpace(cfg.BotToken) == "" {
		return nil, errors.New("未配置Telegram机器人令牌 (telegram.bot_token / TELEGRAM_BOT_TOKEN)")
	}
	if strings.TrimSpace(cfg.ChatID) == "" {
		return nil, errors.New("未配置Telegram聊天ID (telegram.chat_id / TELEGRAM_CHAT_ID)")
	}
	if cfg.APIEndpoint == "" {
		cfg.APIEndpoint = tgbotapi.APIEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &TelegramNotifier{
		cfg:        cfg,
		normalizer: normalizer,
		metrics:    metrics,
		factory:    factory,
		sleep:      service.ContextSleep,
		log:        logger.WithContext("telegram"),
	}, nil
}

func (n *TelegramNotifier) getBot() (Bot, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.bot != nil {
		return n.bot, nil
	}
	client := &http.Client{Timeout: time.Duration(n.cfg.Timeout) * time.Second}
	bot, err := n.factory(n.cfg.BotToken, n.cfg.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("创建Telegram机器人失败: %w", err)
	}
	n.bot = bot
	return bot, nil
}

// Send 推送一条文章报告
func (n *TelegramNotifier) Send(ctx context.Context, message, sourceURL string) bool {
	footer := ""
	if sourceURL != "" {
		footer = fmt.Sprintf("\n\n🔗 <a href=\"%s\">原文链接</a>", html.EscapeString(sourceURL))
	}
	header := "📊 <b>定期IT技术分析报告</b>\n" + separator + "\n\n"

	msg := n.newMessage(header + truncate(message, maxMessageRunes-len([]rune(header+footer))) + footer)
	if n.cfg.FeedbackButtons && sourceURL != "" {
		id := service.FeedbackID(n.normalizer.Normalize(sourceURL))
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👍", string(model.FeedbackLike)+":"+id),
			tgbotapi.NewInlineKeyboardButtonData("👎", string(model.FeedbackDislike)+":"+id),
		))
	}
	return n.deliver(ctx, msg)
}

// SendSummary 推送综合汇总
func (n *TelegramNotifier) SendSummary(ctx context.Context, message string) bool {
	header := "📅 <b>今日IT技术综合</b>\n" + separator + "\n\n"
	footer := "\n\n✅ 今天也辛苦了。"

	msg := n.newMessage(header + truncate(message, maxMessageRunes-len([]rune(header+footer))) + footer)
	return n.deliver(ctx, msg)
}

func (n *TelegramNotifier) newMessage(text string) tgbotapi.MessageConfig {
	var msg tgbotapi.MessageConfig
	if id, err := strconv.ParseInt(strings.TrimSpace(n.cfg.ChatID), 10, 64); err == nil {
		msg = tgbotapi.NewMessage(id, text)
	} else {
		msg = tgbotapi.NewMessageToChannel(strings.TrimSpace(n.cfg.ChatID), text)
	}
	msg.ParseMode = tgbotapi.ModeHTML
	return msg
}

// deliver 发送消息，限流时按服务端要求等待后重试一次，HTML解析失败时改发纯文本
func (n *TelegramNotifier) deliver(ctx context.Context, msg tgbotapi.MessageConfig) bool {
	ok := n.deliverOnce(ctx, msg)
	n.metrics.RecordDelivery(ok)
	return ok
}

func (n *TelegramNotifier) deliverOnce(ctx context.Context, msg tgbotapi.MessageConfig) bool {
	if ctx.Err() != nil {
		return false
	}
	bot, err := n.getBot()
	if err != nil {
		n.log.Error("Telegram发送失败", "error", err)
		return false
	}

	retried := false
	for {
		_, err = bot.Send(msg)
		if err == nil {
			return true
		}

		var apiErr *tgbotapi.Error
		if !errors.As(err, &apiErr) {
			n.log.Error("Telegram发送失败", "error", err)
			return false
		}

		wait := time.Duration(apiErr.RetryAfter) * time.Second
		switch {
		case !retried && apiErr.Code == http.StatusTooManyRequests && wait > 0 && wait <= maxRetryAfter:
			n.log.Warn("Telegram限流，等待后重试", "retry_after", wait.String())
			if err := n.sleep(ctx, wait); err != nil {
				return false
			}
		case !retried && apiErr.Code == http.StatusBadRequest && strings.Contains(apiErr.Message, "parse entities"):
			n.log.Warn("HTML解析失败，改为纯文本发送", "error", apiErr.Message)
			msg.Text = plainText(msg.Text)
			msg.ParseMode = ""
		default:
			n.log.Error("Telegram发送失败", "code", apiErr.Code, "error", apiErr.Message)
			return false
		}
		retried = true
	}
}

// PollFeedback 拉取反馈按钮的回调
func (n *TelegramNotifier) PollFeedback(ctx context.Context, offset int) ([]model.FeedbackEvent, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, offset, err
	}
	bot, err := n.getBot()
	if err != nil {
		return nil, offset, err
	}

	updates, err := bot.GetUpdates(tgbotapi.UpdateConfig{
		Offset:         offset,
		Limit:          100,
		AllowedUpdates: []string{"callback_query"},
	})
	if err != nil {
		return nil, offset, fmt.Errorf("获取Telegram更新失败: %w", err)
	}

	next := offset
	var events []model.FeedbackEvent
	for _, u := range updates {
		if u.UpdateID >= next {
			next = u.UpdateID + 1
		}
		cq := u.CallbackQuery
		if cq == nil {
			continue
		}

		event, ok := parseCallback(cq.Data)
		if !ok {
			n.log.Debug("忽略无法识别的回调", "data", cq.Data)
			continue
		}
		event.UpdateID = u.UpdateID
		if cq.From != nil {
			event.UserID = cq.From.ID
		}
		event.At = time.Now()
		events = append(events, event)

		if _, err := bot.Request(tgbotapi.NewCallback(cq.ID, "👌 已记录")); err != nil {
			n.log.Warn("回复回调失败", "error", err)
		}
	}
	return events, next, nil
}

func parseCallback(data string) (model.FeedbackEvent, bool) {
	tag, id, found := strings.Cut(data, ":")
	if !found || id == "" {
		return model.FeedbackEvent{}, false
	}
	switch model.FeedbackTag(tag) {
	case model.FeedbackLike, model.FeedbackDislike:
		return model.FeedbackEvent{LinkID: id, Tag: model.FeedbackTag(tag)}, true
	}
	return model.FeedbackEvent{}, false
}

func truncate(s string, max int) string {
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}

func plainText(s string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return doc.Text()
}
