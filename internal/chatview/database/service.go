package database

import (
	"context"
	"time"

	"github.com/sjzar/chatview/internal/chatview/ctx"
	"github.com/sjzar/chatview/internal/model"
	"github.com/sjzar/chatview/internal/storedb"
)

// Service 数据库服务，持有只读库门面
type Service struct {
	ctx *ctx.Context
	db  *storedb.DB
}

func NewService(ctx *ctx.Context) *Service {
	return &Service{ctx: ctx}
}

func (s *Service) Start() error {
	db, err := storedb.New(s.ctx.DataDir, s.ctx.SelfID)
	if err != nil {
		return err
	}
	s.db = db
	return nil
}

func (s *Service) Stop() error {
	if s.db != nil {
		s.db.Close()
	}
	s.db = nil
	return nil
}

func (s *Service) GetDB() *storedb.DB {
	return s.db
}

// GetMessages 游标分页
func (s *Service) GetMessages(ctx context.Context, session string, offset, limit int, start, end time.Time, asc bool) ([]*model.Message, bool, error) {
	return s.db.GetMessages(ctx, session, offset, limit, start, end, asc)
}

// GetLatestMessages 会话最近消息
func (s *Service) GetLatestMessages(ctx context.Context, session string, limit int) ([]*model.Message, error) {
	return s.db.GetLatestMessages(ctx, session, limit)
}

func (s *Service) GetSessions(ctx context.Context, key string, limit, offset int) ([]*model.Session, error) {
	return s.db.GetSessions(ctx, key, limit, offset)
}

func (s *Service) GetContacts(ctx context.Context, key string, limit, offset int) ([]*model.Contact, error) {
	return s.db.GetContacts(ctx, key, limit, offset)
}

func (s *Service) GetContact(ctx context.Context, key string) (*model.Contact, error) {
	return s.db.GetContact(ctx, key)
}

func (s *Service) GetAvatar(ctx context.Context, userName string) (string, error) {
	return s.db.GetAvatar(ctx, userName)
}

func (s *Service) GetMedia(ctx context.Context, _type string, key string) (*model.Media, error) {
	return s.db.GetMedia(ctx, _type, key)
}

func (s *Service) GetVoice(ctx context.Context, identities []string, keys []string, createTime int64) ([][]byte, error) {
	return s.db.GetVoice(ctx, identities, keys, createTime)
}

// ClearCaches 清空库侧缓存
func (s *Service) ClearCaches() {
	if s.db != nil {
		s.db.ClearCaches()
	}
}
