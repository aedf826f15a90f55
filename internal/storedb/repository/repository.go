package repository

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/sjzar/chatview/internal/errors"
	"github.com/sjzar/chatview/internal/model"
	"github.com/sjzar/chatview/internal/storedb/datasource"
)

// contactTTL 联系人缓存条目的生存期，过期后下次读取触发重查
const contactTTL = 10 * time.Minute

type contactEntry struct {
	contact   *model.Contact
	updatedAt time.Time
}

// Repository 在数据源之上维护联系人与头像缓存，并为消息补全显示信息
type Repository struct {
	ds *datasource.DataSource

	mu       sync.RWMutex
	contacts map[string]*contactEntry
	avatars  map[string]string
}

func New(ds *datasource.DataSource) (*Repository, error) {
	r := &Repository{
		ds:       ds,
		contacts: make(map[string]*contactEntry),
		avatars:  make(map[string]string),
	}

	if err := r.initCache(context.Background()); err != nil {
		return nil, errors.InitCacheFailed(err)
	}

	// 联系人库变更后整体重建
	r.ds.SetCallback(datasource.GroupContact, func(event fsnotify.Event) error {
		if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
			return nil
		}
		if err := r.initCache(context.Background()); err != nil {
			log.Err(err).Msgf("重建联系人缓存失败: %s", event.Name)
		}
		return nil
	})

	return r, nil
}

func (r *Repository) initCache(ctx context.Context) error {
	contacts, err := r.ds.GetContacts(ctx, "", 0, 0)
	if err != nil {
		return err
	}

	now := time.Now()
	fresh := make(map[string]*contactEntry, len(contacts))
	for _, c := range contacts {
		if c.UserName == "" {
			continue
		}
		fresh[c.UserName] = &contactEntry{contact: c, updatedAt: now}
	}

	r.mu.Lock()
	r.contacts = fresh
	r.mu.Unlock()
	log.Debug().Msgf("联系人缓存加载完成: %d", len(fresh))
	return nil
}

// ClearCaches 清空联系人与头像缓存
func (r *Repository) ClearCaches() {
	r.mu.Lock()
	r.contacts = make(map[string]*contactEntry)
	r.avatars = make(map[string]string)
	r.mu.Unlock()
}

func (r *Repository) Close() error {
	return r.ds.Close()
}
