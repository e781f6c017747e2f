package configsource

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fdkevin0/sina2html"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// NewViperForCommand 构建命令的配置源。优先级从高到低：
// 命令行flag > SINA2HTML_* 环境变量 > 配置文件 > 默认值。
func NewViperForCommand(cmd *cobra.Command, configFlagValue string) (*viper.Viper, error) {
	v := viper.New()
	applyViperDefaults(v)

	v.SetEnvPrefix("SINA2HTML")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := bindViperFlags(v, cmd); err != nil {
		return nil, err
	}

	configPath, explicit, err := resolveConfigFilePath(cmd, configFlagValue)
	if err != nil {
		return nil, err
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok && !explicit {
				return v, nil
			}
			return nil, fmt.Errorf("读取配置文件失败 %q: %w", configPath, err)
		}
	}

	return v, nil
}

func applyViperDefaults(v *viper.Viper) {
	defaultConfig := sina2html.NewDefaultConfig()
	v.SetDefault("uid", defaultConfig.UID)
	v.SetDefault("cookie", defaultConfig.Cookie)
	v.SetDefault("cookie_file", defaultConfig.CookieFile)
	v.SetDefault("list_url_template", defaultConfig.ListURLTemplate)
	v.SetDefault("article_url_regex", defaultConfig.ArticleURLRegex)
	v.SetDefault("min_content_chars", defaultConfig.MinContentChars)
	v.SetDefault("output_dir", defaultConfig.OutputDir)
	v.SetDefault("download_images", defaultConfig.DownloadImages)
	v.SetDefault("save_raw_html", defaultConfig.SaveRawHTML)
	v.SetDefault("export_markdown", defaultConfig.ExportMarkdown)
	v.SetDefault("user_agent", defaultConfig.UserAgent)
	v.SetDefault("timeout_sec", defaultConfig.TimeoutSec)
	v.SetDefault("max_retries", defaultConfig.MaxRetries)
	v.SetDefault("retry_delay_sec", defaultConfig.RetryDelaySec)
	v.SetDefault("request_delay_sec", defaultConfig.RequestDelaySec)
	v.SetDefault("max_pages", defaultConfig.MaxPages)
	v.SetDefault("max_concurrent", defaultConfig.MaxConcurrent)
}

func bindViperFlags(v *viper.Viper, cmd *cobra.Command) error {
	visited := make(map[string]struct{})
	var bindErr error
	bindFlag := func(f *pflag.Flag) {
		if f == nil || bindErr != nil {
			return
		}
		if _, ok := visited[f.Name]; ok {
			return
		}
		visited[f.Name] = struct{}{}
		configName := strings.ReplaceAll(f.Name, "-", "_")
		if err := v.BindPFlag(configName, f); err != nil {
			bindErr = fmt.Errorf("绑定 flag %q 到 key %q 失败: %w", f.Name, configName, err)
		}
	}

	cmd.Flags().VisitAll(bindFlag)
	cmd.InheritedFlags().VisitAll(bindFlag)
	if bindErr != nil {
		return bindErr
	}

	// Keep struct tag naming with existing --output, --timeout and --markdown flags.
	v.RegisterAlias("output_dir", "output")
	v.RegisterAlias("timeout_sec", "timeout")
	v.RegisterAlias("export_markdown", "markdown")
	return nil
}

func resolveConfigFilePath(cmd *cobra.Command, configFlagValue string) (string, bool, error) {
	if flagChanged(cmd, "config") {
		path := strings.TrimSpace(configFlagValue)
		if path == "" {
			return "", true, errors.New("--config 不能为空")
		}
		return path, true, nil
	}

	if value := strings.TrimSpace(os.Getenv("SINA2HTML_CONFIG")); value != "" {
		return value, true, nil
	}

	candidates := []string{
		filepath.Join(".", "config.json"),
	}
	if userConfigDir, err := os.UserConfigDir(); err == nil && userConfigDir != "" {
		candidates = append(candidates, filepath.Join(userConfigDir, "sina2html", "config.json"))
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, false, nil
		}
	}

	return "", false, nil
}

func flagChanged(cmd *cobra.Command, name string) bool {
	if cmd == nil {
		return false
	}
	if f := cmd.Flags().Lookup(name); f != nil {
		return f.Changed
	}
	if f := cmd.InheritedFlags().Lookup(name); f != nil {
		return f.Changed
	}
	return false
}
