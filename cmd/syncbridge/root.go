package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	// Version 是当前版本号
	Version = "0.1.0"
)

var (
	// 全局配置
	cfgFile string
	debug   bool
	quiet   bool
)

// rootCmd 是根命令
var rootCmd = &cobra.Command{
	Use:   "syncbridge",
	Short: "以同步风格执行异步命令的测试脚本",
	Long: `syncbridge 在协程上执行 JavaScript 测试脚本，
脚本中的每个命令调用都会阻塞直到结果返回，并带有 hook、重试和命令指标。`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "启用调试日志")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "静默模式")

	// 禁用默认的 completion 命令
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
