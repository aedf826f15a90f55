package storedb

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sjzar/chatview/internal/model"
	"github.com/sjzar/chatview/internal/storedb/datasource"
	"github.com/sjzar/chatview/internal/storedb/repository"
)

// DB 只读访问聊天数据目录的门面
// 游标分页、联系人补全、媒体与语音检索都从这里进
type DB struct {
	ds      *datasource.DataSource
	repo    *repository.Repository
	cursors *CursorManager
}

func New(path string, selfID string) (*DB, error) {
	ds, err := datasource.New(path, selfID)
	if err != nil {
		return nil, err
	}

	repo, err := repository.New(ds)
	if err != nil {
		ds.Close()
		return nil, err
	}

	return &DB{
		ds:      ds,
		repo:    repo,
		cursors: NewCursorManager(ds),
	}, nil
}

// GetMessages 游标分页查询
func (db *DB) GetMessages(ctx context.Context, session string, offset, limit int, start, end time.Time, asc bool) ([]*model.Message, bool, error) {
	session = db.repo.ResolveTalker(ctx, session)

	messages, hasMore, err := db.cursors.FetchPage(ctx, session, offset, limit, start, end, asc)
	if err != nil {
		return nil, false, err
	}
	db.repo.EnrichMessages(ctx, messages)
	return messages, hasMore, nil
}

// GetLatestMessages 取会话最近的 limit 条，升序返回
func (db *DB) GetLatestMessages(ctx context.Context, session string, limit int) ([]*model.Message, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	end := time.Now()
	start := time.Unix(0, 0)
	messages, err := db.repo.GetMessages(ctx, start, end, session, limit, 0, false)
	if err != nil {
		return nil, err
	}
	// 倒序取最近的，再翻回时间线顺序
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (db *DB) GetSessions(ctx context.Context, key string, limit, offset int) ([]*model.Session, error) {
	return db.repo.GetSessions(ctx, key, limit, offset)
}

func (db *DB) GetContacts(ctx context.Context, key string, limit, offset int) ([]*model.Contact, error) {
	return db.repo.ListContacts(ctx, key, limit, offset)
}

func (db *DB) GetContact(ctx context.Context, key string) (*model.Contact, error) {
	return db.repo.GetContact(ctx, key)
}

func (db *DB) GetAvatar(ctx context.Context, userName string) (string, error) {
	return db.repo.GetAvatar(ctx, userName)
}

func (db *DB) GetMedia(ctx context.Context, _type string, key string) (*model.Media, error) {
	return db.ds.GetMedia(ctx, _type, key)
}

func (db *DB) GetVoice(ctx context.Context, identities []string, keys []string, createTime int64) ([][]byte, error) {
	return db.ds.GetVoice(ctx, identities, keys, createTime)
}

// SetCallback 注册数据目录文件变更回调
func (db *DB) SetCallback(group string, callback func(event fsnotify.Event) error) error {
	return db.ds.SetCallback(group, callback)
}

// ClearCaches 清空联系人缓存、游标与分片发现结果
func (db *DB) ClearCaches() {
	db.repo.ClearCaches()
	db.cursors.CloseAll()
	db.ds.InvalidateShards()
}

func (db *DB) Close() error {
	db.cursors.CloseAll()
	return db.repo.Close()
}
