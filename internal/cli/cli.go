package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fdkevin0/sina2html"
	"github.com/spf13/cobra"
)

// 命令行参数
var (
	flagConfigFile    string
	flagUID           string
	flagOutputDir     string
	flagCookie        string
	flagCookieFile    string
	flagMaxPages      int
	flagMaxConcurrent int
	flagTimeout       int
	flagNoImages      bool
	flagSaveRawHTML   bool
	flagMarkdown      bool
	flagDebug         bool

	// config init 命令参数
	flagInitPath  string
	flagInitForce bool
)

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "sina2html [UID]",
	Short: "新浪博客备份工具 - 抓取指定博主的全部文章并归档为本地HTML",
	Long: `新浪博客备份工具，按文章列表页逐页发现文章链接，抓取每篇文章的
标题、时间、分类、标签和正文，下载文中图片并改写为本地引用，
最终生成带索引页的本地HTML归档。

支持功能：
- 逐页遍历文章列表并自动识别最后一页
- 内置新浪博客页面结构的启发式提取，亦可通过配置自定义选择器
- 图片下载与本地化，失败时保留原始链接
- 可选导出Markdown副本与原始HTML
- 断点续传：已归档的文章在再次运行时自动跳过`,
	Example: `  # 备份指定博主的全部文章
  sina2html 1234567890
  sina2html --uid=1234567890 --output=./backup

  # 使用Cookie访问需要登录的博客
  sina2html 1234567890 --cookie-file=./cookies.txt

  # 限制抓取页数并同时导出Markdown
  sina2html 1234567890 --max-pages=10 --markdown`,
	RunE: runBackup,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		sina2html.InitLogger(flagDebug)
	},
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// configCmd 配置管理命令
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "配置文件管理",
	Long:  `生成和管理配置文件`,
}

// configInitCmd 生成默认配置文件
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "生成默认配置文件",
	Long:  `在指定路径生成一份带默认值的JSON配置文件，可在其中补充uid、选择器等字段`,
	Example: `  # 在当前目录生成 config.json
  sina2html config init

  # 生成到指定路径
  sina2html config init --path=./backup/config.json`,
	RunE: runConfigInit,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigFile, "config", "", "配置文件路径(JSON)")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "启用调试日志")

	rootCmd.Flags().StringVar(&flagUID, "uid", "", "博主数字ID")
	rootCmd.Flags().StringVar(&flagOutputDir, "output", "", "归档输出目录")
	rootCmd.Flags().StringVar(&flagCookie, "cookie", "", "Cookie请求头(原始格式)")
	rootCmd.Flags().StringVar(&flagCookieFile, "cookie-file", "", "Cookie文件路径(原始请求头或Netscape格式)")
	rootCmd.Flags().IntVar(&flagMaxPages, "max-pages", 0, "列表页数上限")
	rootCmd.Flags().IntVar(&flagMaxConcurrent, "max-concurrent", 0, "文章抓取最大并发数")
	rootCmd.Flags().IntVar(&flagTimeout, "timeout", 0, "HTTP请求超时(秒)")
	rootCmd.Flags().BoolVar(&flagNoImages, "no-images", false, "不下载图片，正文中保留原始图片链接")
	rootCmd.Flags().BoolVar(&flagSaveRawHTML, "save-raw-html", false, "额外保存抓取到的原始HTML")
	rootCmd.Flags().BoolVar(&flagMarkdown, "markdown", false, "额外导出Markdown副本")

	configInitCmd.Flags().StringVar(&flagInitPath, "path", "config.json", "配置文件生成路径")
	configInitCmd.Flags().BoolVar(&flagInitForce, "force", false, "覆盖已存在的配置文件")

	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
}

// Execute 执行命令行程序
func Execute() error {
	return rootCmd.Execute()
}

// runBackup 运行备份流程
func runBackup(cmd *cobra.Command, args []string) error {
	cfg, err := buildRuntimeConfig(cmd, args)
	if err != nil {
		return err
	}
	if cfg.ConfigFile != "" {
		fmt.Printf("使用配置文件: %s\n", cfg.ConfigFile)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	archive, err := sina2html.OpenArchive(cfg.App.OutputDir)
	if err != nil {
		return fmt.Errorf("初始化归档目录失败: %w", err)
	}

	fetcher, err := sina2html.NewHTTPFetcher(cfg.App)
	if err != nil {
		return fmt.Errorf("初始化HTTP客户端失败: %w", err)
	}

	crawler := sina2html.NewCrawler(cfg.App, fetcher, archive)
	summary, err := crawler.Run(ctx)
	if err != nil {
		return fmt.Errorf("备份运行失败: %w", err)
	}

	fmt.Printf("✓ 备份完成: %s\n", summary)
	fmt.Printf("✓ 归档目录: %s\n", archive.Root())
	if summary.PostsFailed > 0 {
		fmt.Printf("! 有 %d 篇文章处理失败，详见日志\n", summary.PostsFailed)
	}
	return nil
}

// runConfigInit 生成默认配置文件
func runConfigInit(cmd *cobra.Command, args []string) error {
	path := flagInitPath
	if path == "" {
		path = "config.json"
	}

	if _, err := os.Stat(path); err == nil && !flagInitForce {
		return fmt.Errorf("配置文件已存在: %s (使用 --force 覆盖)", path)
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建配置目录失败: %w", err)
		}
	}

	data, err := json.MarshalIndent(sina2html.NewDefaultConfig(), "", "  ")
	if err != nil {
		return fmt.Errorf("序列化默认配置失败: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}

	fmt.Printf("✓ 已生成默认配置: %s\n", path)
	return nil
}
