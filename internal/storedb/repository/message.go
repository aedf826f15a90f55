package repository

import (
	"context"
	"time"

	"github.com/sjzar/chatview/internal/model"
)

// GetMessages 直接分页查询，talker 允许传备注或昵称
func (r *Repository) GetMessages(ctx context.Context, start, end time.Time, talker string, limit, offset int, asc bool) ([]*model.Message, error) {

	talker = r.ResolveTalker(ctx, talker)

	messages, err := r.ds.GetMessages(ctx, start, end, talker, limit, offset, asc)
	if err != nil {
		return nil, err
	}

	r.EnrichMessages(ctx, messages)
	return messages, nil
}

// ResolveTalker 把备注、昵称等模糊标识解析为会话 ID
func (r *Repository) ResolveTalker(ctx context.Context, talker string) string {
	if talker == "" {
		return talker
	}
	if contact, err := r.GetContact(ctx, talker); err == nil && contact != nil {
		return contact.UserName
	}
	return talker
}
