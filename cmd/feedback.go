package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	appservice "github.com/wolfitem/ai-news-radar/internal/application/service"
	"github.com/wolfitem/ai-news-radar/internal/domain/service"
	"github.com/wolfitem/ai-news-radar/internal/infrastructure/database"
	"github.com/wolfitem/ai-news-radar/internal/infrastructure/logger"
	"github.com/wolfitem/ai-news-radar/internal/infrastructure/notifier"
	"github.com/wolfitem/ai-news-radar/internal/middleware"
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "管理用户反馈",
}

// feedbackSyncCmd 拉取Telegram上的 👍/👎 反馈
var feedbackSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "同步Telegram反馈按钮的点击记录",
	Long: `拉取推送消息下 👍/👎 按钮的点击，保存到本地数据库。
下次运行时这些反馈会被用来学习阅读偏好。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		v := viper.GetViper()
		metrics := middleware.NewMetricsCollector()
		normalizer := service.LinkNormalizer{KeepQueryHosts: v.GetStringSlice("rss.keep_query_hosts")}

		tg, err := notifier.NewTelegramNotifier(loadTelegramConfig(v), normalizer, metrics)
		if err != nil {
			return err
		}

		db, err := database.Open(v.GetString("database.file_path"))
		if err != nil {
			return fmt.Errorf("打开数据库失败: %w", err)
		}
		defer db.Close()

		svc := appservice.NewFeedbackService(tg,
			database.NewSQLiteSentRepository(db),
			database.NewSQLiteFeedbackRepository(db),
			database.NewSQLiteStateRepository(db),
		)
		saved, err := svc.Sync(cmd.Context())
		if err != nil {
			logger.Error("同步反馈失败", "error", err)
			return fmt.Errorf("同步反馈失败: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "已保存 %d 条反馈\n", saved)
		return nil
	},
}

func init() {
	feedbackCmd.AddCommand(feedbackSyncCmd)
	rootCmd.AddCommand(feedbackCmd)
}
