package ctx

import (
	"path/filepath"
	"time"

	"github.com/sjzar/chatview/internal/chatview/conf"
	"github.com/sjzar/chatview/pkg/util"
)

// Context 一次运行的共享状态，各服务从这里取配置
type Context struct {
	DataDir string
	WorkDir string
	SelfID  string
	ImgKey  string

	HTTPAddr string

	ConverterPath     string
	ConverterTimeout  time.Duration
	RecognizerCmd     string
	RecognizerTimeout time.Duration

	Debug bool
}

func New(c *conf.ServerConfig) *Context {
	workDir := c.GetWorkDir()
	if workDir == "" {
		workDir = util.DefaultWorkDir(filepath.Base(c.GetDataDir()))
	}

	return &Context{
		DataDir:           c.GetDataDir(),
		WorkDir:           workDir,
		SelfID:            c.GetSelfID(),
		ImgKey:            c.GetImgKey(),
		HTTPAddr:          c.GetHTTPAddr(),
		ConverterPath:     c.ConverterPath,
		ConverterTimeout:  c.GetConverterTimeout(),
		RecognizerCmd:     c.RecognizerCmd,
		RecognizerTimeout: c.GetRecognizerTimeout(),
		Debug:             c.Debug,
	}
}

// ImageDir 解密图片的输出根目录
func (c *Context) ImageDir() string {
	return filepath.Join(c.WorkDir, "image")
}

// VoiceDir 语音文件缓存目录
func (c *Context) VoiceDir() string {
	return filepath.Join(c.WorkDir, "voice")
}
