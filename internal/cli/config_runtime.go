package cli

import (
	"fmt"
	"strings"

	"github.com/fdkevin0/sina2html"
	"github.com/fdkevin0/sina2html/internal/configsource"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type runtimeConfig struct {
	App        *sina2html.Config
	Debug      bool
	ConfigFile string
}

type runtimeConfigValues struct {
	sina2html.Config `mapstructure:",squash"`
	NoImages         bool `mapstructure:"no_images"`
	Debug            bool `mapstructure:"debug"`
}

func buildRuntimeConfig(cmd *cobra.Command, args []string) (*runtimeConfig, error) {
	v, err := configsource.NewViperForCommand(cmd, flagConfigFile)
	if err != nil {
		return nil, err
	}

	values := runtimeConfigValues{
		Config: *sina2html.NewDefaultConfig(),
	}
	// 环境变量中的选择器列表以逗号分隔，例如 SINA2HTML_SELECTORS_TITLE="h2.titName,h1"
	if err := v.Unmarshal(&values, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("反序列化配置失败: %w", err)
	}

	values.UID = strings.TrimSpace(values.UID)
	values.Cookie = strings.TrimSpace(values.Cookie)
	values.CookieFile = strings.TrimSpace(values.CookieFile)
	values.ListURLTemplate = strings.TrimSpace(values.ListURLTemplate)
	values.OutputDir = strings.TrimSpace(values.OutputDir)
	values.UserAgent = strings.TrimSpace(values.UserAgent)

	if values.UID == "" && len(args) > 0 {
		values.UID = strings.TrimSpace(args[0])
	}
	if values.NoImages {
		values.DownloadImages = false
	}

	cfg := &runtimeConfig{
		App:        &values.Config,
		Debug:      values.Debug,
		ConfigFile: v.ConfigFileUsed(),
	}

	if err := cfg.App.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
