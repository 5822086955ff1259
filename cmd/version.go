package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version 变量将在编译时通过 -ldflags 注入
var Version string

// versionCmd 表示 version 命令
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示程序版本信息",
	Long:  `显示当前程序的版本号信息。`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "news-radar 版本: %s\n", versionString())
	},
}

// versionString 未注入版本时显示开发版本
func versionString() string {
	if Version == "" {
		return "开发版本"
	}
	return Version
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
