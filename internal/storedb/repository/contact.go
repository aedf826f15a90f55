package repository

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sjzar/chatview/internal/errors"
	"github.com/sjzar/chatview/internal/model"
)

// GetContact 查询联系人，命中缓存且未过期时不落库
func (r *Repository) GetContact(ctx context.Context, key string) (*model.Contact, error) {
	if key == "" {
		return nil, errors.ErrKeyEmpty
	}

	r.mu.RLock()
	entry, ok := r.contacts[key]
	r.mu.RUnlock()
	if ok && time.Since(entry.updatedAt) < contactTTL {
		return entry.contact, nil
	}

	contacts, err := r.ds.GetContacts(ctx, key, 1, 0)
	if err != nil || len(contacts) == 0 {
		// 重查失败时过期条目好过没有
		if ok {
			return entry.contact, nil
		}
		if err != nil {
			return nil, err
		}
		return nil, errors.ContactNotFound(key)
	}

	c := contacts[0]
	r.mu.Lock()
	r.contacts[c.UserName] = &contactEntry{contact: c, updatedAt: time.Now()}
	r.mu.Unlock()
	return c, nil
}

// ListContacts 列出联系人，key 为空时返回全部
func (r *Repository) ListContacts(ctx context.Context, key string, limit, offset int) ([]*model.Contact, error) {
	return r.ds.GetContacts(ctx, key, limit, offset)
}

// GetAvatar 返回联系人头像地址
// 联系人记录里的坏地址当作未命中，退到头像表二次查找
func (r *Repository) GetAvatar(ctx context.Context, userName string) (string, error) {
	r.mu.RLock()
	url, ok := r.avatars[userName]
	r.mu.RUnlock()
	if ok {
		return url, nil
	}

	contact, err := r.GetContact(ctx, userName)
	if err == nil {
		if url := contact.AvatarURL(); url != "" {
			r.cacheAvatar(userName, url)
			return url, nil
		}
	}

	url, err = r.ds.GetAvatar(ctx, userName)
	if err != nil {
		return "", err
	}
	if !model.ValidAvatarURL(url) {
		return "", errors.ContactNotFound(userName)
	}
	r.cacheAvatar(userName, url)
	return url, nil
}

func (r *Repository) cacheAvatar(userName, url string) {
	r.mu.Lock()
	r.avatars[userName] = url
	r.mu.Unlock()
}

// EnrichMessages 批量补全消息的显示信息
// 单条失败只记日志，不影响整批
func (r *Repository) EnrichMessages(ctx context.Context, messages []*model.Message) {
	for _, msg := range messages {
		if err := r.enrichMessage(ctx, msg); err != nil {
			log.Debug().Msgf("补全消息信息失败 seq=%d: %v", msg.Seq, err)
		}
	}
}

func (r *Repository) enrichMessage(ctx context.Context, msg *model.Message) error {
	if msg.TalkerName == "" {
		if contact, err := r.GetContact(ctx, msg.Talker); err == nil && contact != nil {
			msg.TalkerName = contact.DisplayName()
		}
	}
	if msg.SenderName == "" && !msg.Self() && msg.Sender != "" {
		contact, err := r.GetContact(ctx, msg.Sender)
		if err != nil {
			return err
		}
		msg.SenderName = contact.DisplayName()
	}
	return nil
}
