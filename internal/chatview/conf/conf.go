package conf

import (
	"encoding/json"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/sjzar/chatview/pkg/config"
)

const (
	AppName      = "chatview"
	EnvPrefix    = "CHATVIEW"
	EnvConfigDir = "CHATVIEW_DIR"
)

// Load 加载服务配置
// 命令行参数覆盖配置文件，配置文件覆盖默认值
func Load(configPath string, cmdConf map[string]any) (*ServerConfig, *config.Manager, error) {

	if configPath == "" {
		configPath = os.Getenv(EnvConfigDir)
	}

	scm, err := config.New(AppName, configPath, "", EnvPrefix, false)
	if err != nil {
		log.Error().Err(err).Msg("load server config failed")
		return nil, nil, err
	}

	config.SetDefaults(scm.Viper, ServerDefaults)

	for key, value := range cmdConf {
		scm.SetConfig(key, value)
	}

	conf := &ServerConfig{}
	if err := scm.Load(conf); err != nil {
		log.Error().Err(err).Msg("load server config failed")
		return nil, nil, err
	}

	b, _ := json.Marshal(conf)
	log.Info().Msgf("server config: %s", string(b))

	return conf, scm, nil
}
