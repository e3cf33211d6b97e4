package autotranslate

import (
	"context"

	"github.com/botlabs-gg/yagpdb/v2/common"
	"github.com/botlabs-gg/yagpdb/v2/common/configstore"
	"github.com/lib/pq"
)

var logger = common.GetPluginLogger(&Plugin{})

type Plugin struct{}

func (p *Plugin) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{
		Name:     "Auto translate",
		SysName:  "auto_translate",
		Category: common.PluginCategoryMisc,
	}
}

func RegisterPlugin() {
	common.RegisterPlugin(&Plugin{})

	configstore.RegisterConfig(configstore.SQL, &Config{})
	common.GORM.AutoMigrate(&Config{}, &ChannelConfig{}, &RelayedMessage{}, &Translation{})
}

// Config is the per-guild configuration for the translate features. Flag
// reactions in ignored channels are left alone.
type Config struct {
	configstore.GuildConfigModel
	IgnoredChannels pq.Int64Array `gorm:"type:bigint[]" valid:"channel,true"`
}

func (c *Config) GetName() string {
	return "auto_translate"
}

func (c *Config) TableName() string {
	return "auto_translate_configs"
}

func GetConfig(guildID int64) (*Config, error) {
	var conf Config
	err := configstore.Cached.GetGuildConfig(context.Background(), guildID, &conf)
	if err != nil && err != configstore.ErrNotFound {
		return nil, err
	}

	return &conf, nil
}

func (c *Config) IsIgnoredChannel(channelID int64) bool {
	for _, v := range c.IgnoredChannels {
		if v == channelID {
			return true
		}
	}

	return false
}
