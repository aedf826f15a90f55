package conf

import "time"

const (
	DefaultHTTPAddr          = "127.0.0.1:5030"
	DefaultConverterTimeout  = 30
	DefaultRecognizerTimeout = 120
)

// ServerConfig 一次运行的全部配置
type ServerConfig struct {
	DataDir           string `mapstructure:"data_dir"`           // 聊天程序的数据目录，只读
	WorkDir           string `mapstructure:"work_dir"`           // 解密产物输出目录
	ImgKey            string `mapstructure:"img_key"`            // V2 容器密钥，16 字节十六进制串
	SelfID            string `mapstructure:"self_id"`            // 自己的账号 ID，推断消息方向用
	HTTPAddr          string `mapstructure:"http_addr"`          //
	ConverterPath     string `mapstructure:"converter_path"`     // 外部转码器，空则自动探测 ffmpeg
	ConverterTimeout  int    `mapstructure:"converter_timeout"`  // 秒
	RecognizerCmd     string `mapstructure:"recognizer_cmd"`     // 语音识别命令
	RecognizerTimeout int    `mapstructure:"recognizer_timeout"` // 秒
	Debug             bool   `mapstructure:"debug"`              //
}

var ServerDefaults = map[string]any{
	"http_addr":          DefaultHTTPAddr,
	"converter_timeout":  DefaultConverterTimeout,
	"recognizer_timeout": DefaultRecognizerTimeout,
}

func (c *ServerConfig) GetDataDir() string {
	return c.DataDir
}

func (c *ServerConfig) GetWorkDir() string {
	return c.WorkDir
}

func (c *ServerConfig) GetImgKey() string {
	return c.ImgKey
}

func (c *ServerConfig) GetSelfID() string {
	return c.SelfID
}

func (c *ServerConfig) GetHTTPAddr() string {
	if c.HTTPAddr == "" {
		c.HTTPAddr = DefaultHTTPAddr
	}
	return c.HTTPAddr
}

func (c *ServerConfig) GetConverterTimeout() time.Duration {
	if c.ConverterTimeout <= 0 {
		c.ConverterTimeout = DefaultConverterTimeout
	}
	return time.Duration(c.ConverterTimeout) * time.Second
}

func (c *ServerConfig) GetRecognizerTimeout() time.Duration {
	if c.RecognizerTimeout <= 0 {
		c.RecognizerTimeout = DefaultRecognizerTimeout
	}
	return time.Duration(c.RecognizerTimeout) * time.Second
}
