package chatview

import (
	"fmt"

	"github.com/sjzar/chatview/internal/chatview/conf"
	"github.com/sjzar/chatview/internal/chatview/ctx"
	"github.com/sjzar/chatview/internal/chatview/database"
	"github.com/sjzar/chatview/internal/chatview/http"
	"github.com/sjzar/chatview/internal/chatview/media"
	"github.com/sjzar/chatview/pkg/config"
)

// Manager 管理整个应用的生命周期
type Manager struct {
	ctx *ctx.Context
	sc  *conf.ServerConfig
	scm *config.Manager

	// Services
	db    *database.Service
	media *media.Service
	http  *http.Service
}

func New() *Manager {
	return &Manager{}
}

// CommandServer 加载配置并以 HTTP 服务方式运行，阻塞到服务退出
func (m *Manager) CommandServer(configPath string, cmdConf map[string]any) error {

	var err error
	m.sc, m.scm, err = conf.Load(configPath, cmdConf)
	if err != nil {
		return err
	}

	if len(m.sc.GetDataDir()) == 0 {
		return fmt.Errorf("dataDir is required")
	}

	m.ctx = ctx.New(m.sc)

	m.db = database.NewService(m.ctx)
	m.media = media.NewService(m.ctx, m.db)
	m.http = http.NewService(m.ctx, m.db, m.media)

	if err := m.StartService(); err != nil {
		m.StopService()
		return err
	}

	return m.http.ListenAndServe()
}

func (m *Manager) StartService() error {

	// 按依赖顺序启动服务
	if err := m.db.Start(); err != nil {
		return err
	}

	if err := m.media.Start(); err != nil {
		m.db.Stop()
		return err
	}

	return nil
}

func (m *Manager) StopService() error {
	// 按依赖的反序停止服务
	var errs []error

	if m.http != nil {
		if err := m.http.Stop(); err != nil {
			errs = append(errs, err)
		}
	}

	if m.media != nil {
		if err := m.media.Stop(); err != nil {
			errs = append(errs, err)
		}
	}

	if m.db != nil {
		if err := m.db.Stop(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errs[0]
	}

	return nil
}
