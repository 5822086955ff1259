package model

import "time"

// RunMode 运行模式，只影响候选文章的选择策略
type RunMode string

const (
	// ModeRegular 高分文章逐篇深度分析并单独推送
	ModeRegular RunMode = "regular"
	// ModeSummary 中间分数段文章汇总为一条综合报告
	ModeSummary RunMode = "summary"
)

// RunParams 包含一次批处理运行的所有参数
type RunParams struct {
	Mode     RunMode        // 运行模式
	Rss      RssConfig      // RSS获取配置
	LLM      LLMConfig      // 大模型配置
	Pipeline PipelineConfig // 选择与推送策略
	Database DatabaseConfig // 数据库配置
	Telegram TelegramConfig // Telegram配置
}

// RssConfig 包含RSS获取相关的配置
type RssConfig struct {
	OpmlFile        string      `mapstructure:"opml_file"`        // 可选的OPML文件路径
	Sources         []RssSource `mapstructure:"sources"`          // 配置文件中的RSS源
	PrioritySources []string    `mapstructure:"priority_sources"` // 优先获取的源名称
	Timeout         int         `mapstructure:"timeout"`          // 单个源的超时时间（秒）
	Concurrency     int         `mapstructure:"concurrency"`      // 并发数量，0表示全部并发
	PerFeedLimit    int         `mapstructure:"per_feed_limit"`   // 每个源最多取几条
	MaxTotal        int         `mapstructure:"max_total"`        // 获取文章总数上限
	KeepQueryHosts  []string    `mapstructure:"keep_query_hosts"` // 查询参数决定文章身份的站点
}

// LLMConfig 包含大模型调用的配置
type LLMConfig struct {
	Providers          []ProviderConfig `mapstructure:"providers"`            // 按顺序尝试的提供方
	BackoffSeconds     int              `mapstructure:"backoff_seconds"`      // 限流后的退避基数
	MaxCalls           int              `mapstructure:"max_calls"`            // 单次运行的调用次数上限
	Temperature        float64          `mapstructure:"temperature"`          // 采样温度
	CallTimeout        int              `mapstructure:"call_timeout"`         // 单次调用超时（秒）
	PreferenceTTLHours int              `mapstructure:"preference_ttl_hours"` // 偏好摘要缓存时长
}

// ProviderConfig 描述一个大模型提供方，多个密钥各占一个故障转移位置
type ProviderConfig struct {
	Name      string   `mapstructure:"name"`       // 提供方名称
	Type      string   `mapstructure:"type"`       // gemini 或 openai
	APIKeys   []string `mapstructure:"api_keys"`   // API密钥列表
	Model     string   `mapstructure:"model"`      // 模型名称
	APIUrl    string   `mapstructure:"api_url"`    // OpenAI兼容接口地址
	MaxTokens int      `mapstructure:"max_tokens"` // 最大令牌数
}

// PipelineConfig 包含选择与推送策略
type PipelineConfig struct {
	MaxArticles         int      `mapstructure:"max_articles"`          // 每次送去评分的文章上限
	HighThreshold       int      `mapstructure:"high_threshold"`        // 高分阈值
	LowThreshold        int      `mapstructure:"low_threshold"`         // 回退阈值
	TopK                int      `mapstructure:"top_k"`                 // 深度分析的篇数
	SendDelaySeconds    int      `mapstructure:"send_delay_seconds"`    // 两次成功推送之间的间隔
	LLMIntervalSeconds  int      `mapstructure:"llm_interval_seconds"`  // 两次分析调用之间的间隔
	DescriptionMaxRunes int      `mapstructure:"description_max_runes"` // 送入模型的描述长度
	Blacklist           []string `mapstructure:"blacklist"`             // 标题黑名单（正则）
	PreferredSources    []string `mapstructure:"preferred_sources"`     // 规则评分中加分的来源
	PreferredKeywords   []string `mapstructure:"preferred_keywords"`    // 规则评分中加分的关键词
	RunReport           bool     `mapstructure:"run_report"`            // 是否发送整轮汇总
}

// DatabaseConfig 包含数据库的配置信息
type DatabaseConfig struct {
	FilePath      string `mapstructure:"file_path"`      // 数据库文件路径
	RetentionDays int    `mapstructure:"retention_days"` // 发送记录保留天数
}

// TelegramConfig 包含Telegram推送配置
type TelegramConfig struct {
	BotToken        string `mapstructure:"bot_token"`        // 机器人令牌
	ChatID          string `mapstructure:"chat_id"`          // 聊天或频道ID
	APIEndpoint     string `mapstructure:"api_endpoint"`     // 可选的API地址
	FeedbackButtons bool   `mapstructure:"feedback_buttons"` // 是否附带反馈按钮
	Timeout         int    `mapstructure:"timeout"`          // 请求超时（秒）
}

// RssSource 表示一个RSS源
type RssSource struct {
	Name string `mapstructure:"name"` // RSS源名称
	URL  string `mapstructure:"url"`  // RSS源URL
}

// Article 表示一篇采集到的文章，评分结果在流水线中原地补充
type Article struct {
	Source      string    // 来源名称
	Title       string    // 标题
	Link        string    // 规范化后的链接，去重键
	URL         string    // 原始链接，用于展示
	Description string    // 纯文本摘要，可能为空
	Published   time.Time // 发布时间，未知时为零值

	Evaluation *Evaluation // 评分结果，未评分时为nil
}

// Evaluation 模型或规则给出的评分
type Evaluation struct {
	Score  int    // 1-10
	Reason string // 一句话理由
}

// Evaluate 同时设置分数和理由
func (a *Article) Evaluate(score int, reason string) {
	a.Evaluation = &Evaluation{Score: score, Reason: reason}
}

// Scored 是否已评分
func (a *Article) Scored() bool {
	return a.Evaluation != nil
}

// Score 返回分数，未评分时为0
func (a *Article) Score() int {
	if a.Evaluation == nil {
		return 0
	}
	return a.Evaluation.Score
}

// Reason 返回评分理由，未评分时为空
func (a *Article) Reason() string {
	if a.Evaluation == nil {
		return ""
	}
	return a.Evaluation.Reason
}

// DisplayURL 优先返回原始链接
func (a *Article) DisplayURL() string {
	if a.URL != "" {
		return a.URL
	}
	return a.Link
}

// DeliveryRecord 表示一条已推送记录
type DeliveryRecord struct {
	LinkHash string    // 规范化链接的哈希
	Link     string    // 规范化链接
	Title    string    // 标题
	Source   string    // 来源
	Score    int       // 推送时的分数
	SentAt   time.Time // 推送时间
}

// FeedbackTag 用户反馈类型
type FeedbackTag string

const (
	FeedbackLike    FeedbackTag = "like"
	FeedbackDislike FeedbackTag = "dislike"
)

// FeedbackRecord 表示一条用户反馈
type FeedbackRecord struct {
	LinkHash  string
	Title     string
	Tag       FeedbackTag
	CreatedAt time.Time
}

// FeedbackEvent 从消息平台收到的一次反馈操作
type FeedbackEvent struct {
	UpdateID int         // 平台侧的更新序号，用于推进拉取偏移量
	LinkID   string      // 截断的链接哈希
	Tag      FeedbackTag // 喜欢或不喜欢
	UserID   int64       // 操作用户
	At       time.Time   // 操作时间
}

// UserPreference 从反馈中学习到的偏好摘要
type UserPreference struct {
	Likes      string    `json:"likes"`
	Dislikes   string    `json:"dislikes"`
	SampleHash string    `json:"sample_hash"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DefaultPreference 没有任何反馈数据时使用的偏好
var DefaultPreference = UserPreference{
	Likes:    "DevOps、Kubernetes、云原生基础设施、Linux、开源工具与大模型工程实践",
	Dislikes: "招聘广告、促销活动、纯营销新闻稿",
}

// RunResult 一次运行的统计结果
type RunResult struct {
	Fetched     int
	Fresh       int
	Blacklisted int
	Scored      int
	Candidates  int
	Sent        int
	SendFailed  int
	Fallback    bool
}
