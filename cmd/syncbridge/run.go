package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"yqhp/syncbridge/internal/command"
	"yqhp/syncbridge/internal/config"
	"yqhp/syncbridge/internal/hook"
	"yqhp/syncbridge/internal/runner"
	"yqhp/syncbridge/internal/script"
	"yqhp/syncbridge/internal/suite"
	"yqhp/syncbridge/internal/wire"
	"yqhp/syncbridge/pkg/logger"
)

// 安装到脚本中的注册函数，只有 it 注册用例
var interfaceNames = []string{"it", "before", "after"}

var (
	// run 命令的 flags
	runTarget     string
	runGlobal     string
	runTimeout    time.Duration
	runRetries    int
	runJSONOutput string
)

// runCmd 是 run 子命令
var runCmd = &cobra.Command{
	Use:   "run <spec.js>",
	Short: "执行 JavaScript 测试脚本",
	Long: `执行 JavaScript 测试脚本。

脚本通过 it/before/after 注册用例和 hook，按声明顺序执行。
目标服务的 get/post/delete 命令以全局对象暴露（默认 browser），
脚本中的调用会阻塞直到响应返回。`,
	Example: `  # 基本执行
  syncbridge run --target http://127.0.0.1:4444 login.js

  # 覆盖重试次数并输出 JSON 报告
  syncbridge run --target http://127.0.0.1:4444 --retries 2 --out-json report.json login.js`,
	Args: cobra.ExactArgs(1),
	RunE: runScriptCmd,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runTarget, "target", "t", "", "目标服务地址")
	runCmd.Flags().StringVar(&runGlobal, "global", "browser", "脚本中命令对象的名称")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", time.Minute, "单个用例或 hook 的超时时间")
	runCmd.Flags().IntVarP(&runRetries, "retries", "r", 0, "默认重试次数 (覆盖配置)")
	runCmd.Flags().StringVar(&runJSONOutput, "out-json", "", "输出 JSON 报告到文件")
	_ = runCmd.MarkFlagRequired("target")
}

func runScriptCmd(cmd *cobra.Command, args []string) error {
	overrides := map[string]string{}
	if cmd.Flags().Changed("retries") {
		overrides["retries"] = strconv.Itoa(runRetries)
	}

	cfg, err := config.NewLoader().
		WithConfigPath(cfgFile).
		WithOverrides(overrides).
		Load()
	if err != nil {
		return err
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	logger.Init(cfg.Logging.LoggerConfig())
	if debug {
		logger.EnableDebug()
	}
	defer logger.Sync()

	src, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("读取脚本失败: %w", err)
	}

	report, err := runScript(cmd.Context(), cfg, runOptions{
		Name:    args[0],
		Source:  string(src),
		Target:  runTarget,
		Global:  runGlobal,
		Timeout: runTimeout,
		Logger:  logger.L(),
	})
	if err != nil {
		return err
	}

	if !quiet {
		printReport(cmd, report)
	}

	if runJSONOutput != "" {
		if err := writeReport(runJSONOutput, report); err != nil {
			return fmt.Errorf("写入 JSON 报告失败: %w", err)
		}
	}

	if report.Failed > 0 {
		return fmt.Errorf("%d/%d 个用例失败", report.Failed, len(report.Results))
	}
	return nil
}

type runOptions struct {
	Name    string
	Source  string
	Target  string
	Global  string
	Timeout time.Duration
	Logger  *zap.Logger
}

// Report 保存脚本执行结果
type Report struct {
	Script   string                 `json:"script"`
	Duration time.Duration          `json:"duration_ns"`
	Passed   int                    `json:"passed"`
	Failed   int                    `json:"failed"`
	Pending  int                    `json:"pending"`
	Results  []SpecResult           `json:"results"`
	Commands []command.CommandStats `json:"commands,omitempty"`
}

// SpecResult 单个用例或 hook 的结果
type SpecResult struct {
	Kind   string `json:"kind"`
	Title  string `json:"title"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func runScript(ctx context.Context, cfg *config.Config, opts runOptions) (*Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	log := logger.OrDefault(opts.Logger, "run")

	client := wire.NewClient(opts.Target, opts.Timeout)
	inst := command.WrapCommands(client, hook.Logging(log.Named("command")),
		command.WithLogger(log.Named("command")),
		command.WithExecutor(hook.NewExecutor(hook.WithLogger(log.Named("hook")), hook.WithCoroutine(cfg.Sync))),
		command.WithConfig(cfg.Commands),
	)

	fw := suite.NewFramework()
	registry := runner.NewRegistry()
	for _, name := range interfaceNames {
		if err := registry.Register(name, fw.Interface(name)); err != nil {
			return nil, err
		}
		if _, err := runner.RunInFiberContext(registry, []string{"it"}, nil, nil, name,
			runner.WithConfig(cfg),
			runner.WithLogger(log.Named("runner")),
			runner.WithContext(ctx),
		); err != nil {
			return nil, err
		}
	}

	rt := script.New(&script.Config{Logger: log.Named("script")})
	if err := rt.Bind(opts.Global, inst); err != nil {
		return nil, err
	}
	if err := rt.Install(registry, interfaceNames...); err != nil {
		return nil, err
	}

	start := time.Now()
	if _, err := rt.Run(ctx, opts.Source); err != nil {
		return nil, fmt.Errorf("加载脚本 %s 失败: %w", opts.Name, err)
	}

	outcomes := fw.Run(opts.Timeout)
	report := &Report{
		Script:   opts.Name,
		Duration: time.Since(start),
		Results:  make([]SpecResult, 0, len(outcomes)),
	}
	for _, out := range outcomes {
		res := SpecResult{Kind: out.Kind, Title: out.Title}
		switch {
		case out.Pending:
			res.Status = "pending"
			report.Pending++
		case out.Failed:
			res.Status = "failed"
			res.Error = out.Err.Error()
			report.Failed++
		default:
			res.Status = "passed"
			report.Passed++
		}
		report.Results = append(report.Results, res)
	}
	if m := inst.Metrics(); m != nil {
		report.Commands = m.Snapshot()
	}
	return report, nil
}

func printReport(cmd *cobra.Command, report *Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintf(out, "     %s\n\n", report.Script)
	for _, res := range report.Results {
		mark := "✓"
		switch res.Status {
		case "failed":
			mark = "✗"
		case "pending":
			mark = "-"
		}
		fmt.Fprintf(out, "     %s %s %s\n", mark, res.Kind, res.Title)
		if res.Error != "" {
			fmt.Fprintf(out, "         %s\n", res.Error)
		}
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "     通过: %d  失败: %d  待定: %d  耗时: %s\n",
		report.Passed, report.Failed, report.Pending, report.Duration.Round(time.Millisecond))

	if len(report.Commands) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "     命令统计:")
		for _, stats := range report.Commands {
			fmt.Fprintf(out, "       %-20s 次数: %-6d 失败: %-4d P90: %s\n",
				stats.Command, stats.Count, stats.FailureCount, stats.Duration.P90.Round(time.Microsecond))
		}
	}
	fmt.Fprintln(out)
}

func writeReport(path string, report *Report) error {
	data, err := sonic.ConfigStd.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
