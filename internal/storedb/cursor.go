package storedb

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sjzar/chatview/internal/errors"
	"github.com/sjzar/chatview/internal/model"
	"github.com/sjzar/chatview/internal/storedb/datasource"
)

// DefaultPageSize 未指定 limit 时的分页大小
const DefaultPageSize = 100

type cursorParams struct {
	start int64
	end   int64
	asc   bool
	limit int
}

// sessionCursor 每个会话一条顺序读取的消息流
// 游标只进不退：翻页继续取，其余情况重建
type sessionCursor struct {
	mu      sync.Mutex
	params  cursorParams
	iter    *datasource.MessageIterator
	fetched int
}

// CursorManager 会话级消息游标
// 同一会话的并发取页会破坏游标位置，直接拒绝后到的请求
type CursorManager struct {
	ds *datasource.DataSource

	mu      sync.Mutex
	cursors map[string]*sessionCursor
}

func NewCursorManager(ds *datasource.DataSource) *CursorManager {
	return &CursorManager{
		ds:      ds,
		cursors: make(map[string]*sessionCursor),
	}
}

func (m *CursorManager) cursor(session string) *sessionCursor {
	m.mu.Lock()
	defer m.mu.Unlock()
	sc, ok := m.cursors[session]
	if !ok {
		sc = &sessionCursor{}
		m.cursors[session] = sc
	}
	return sc
}

// FetchPage 取一页消息
// offset 为 0 或查询参数变化时重建游标；新游标先丢弃 offset 之前的批次
// offset 与已读位置不一致时记日志后继续，按游标当前位置取下一页
func (m *CursorManager) FetchPage(ctx context.Context, session string, offset, limit int, start, end time.Time, asc bool) ([]*model.Message, bool, error) {
	if session == "" {
		return nil, false, errors.ErrSessionEmpty
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}

	sc := m.cursor(session)
	if !sc.mu.TryLock() {
		return nil, false, errors.CursorBusy(session)
	}
	defer sc.mu.Unlock()

	params := cursorParams{start: start.Unix(), end: end.Unix(), asc: asc, limit: limit}
	if sc.iter == nil || offset == 0 || params != sc.params {
		if err := sc.rebuild(ctx, m.ds, session, params, offset, limit); err != nil {
			return nil, false, err
		}
	}

	if offset != sc.fetched {
		log.Warn().Msgf("游标位置不一致 session=%s offset=%d fetched=%d，继续按游标位置读取",
			session, offset, sc.fetched)
	}

	batch, hasMore, err := sc.iter.NextBatch(ctx, limit)
	if err != nil {
		sc.reset()
		return nil, false, err
	}
	sc.fetched += len(batch)

	if !hasMore {
		sc.reset()
	}
	return batch, hasMore, nil
}

// rebuild 关掉旧流，重开并快进到 offset
func (sc *sessionCursor) rebuild(ctx context.Context, ds *datasource.DataSource, session string, params cursorParams, offset, limit int) error {
	sc.reset()

	iter, err := ds.OpenMessageIterator(ctx, session,
		time.Unix(params.start, 0), time.Unix(params.end, 0), params.asc)
	if err != nil {
		return err
	}
	sc.iter = iter
	sc.params = params
	sc.fetched = 0

	for sc.fetched < offset {
		step := offset - sc.fetched
		if step > limit {
			step = limit
		}
		batch, hasMore, err := iter.NextBatch(ctx, step)
		if err != nil {
			sc.reset()
			return err
		}
		sc.fetched += len(batch)
		if !hasMore || len(batch) == 0 {
			break
		}
	}
	return nil
}

func (sc *sessionCursor) reset() {
	if sc.iter != nil {
		sc.iter.Close()
		sc.iter = nil
	}
	sc.fetched = 0
}

// Close 关闭单个会话的游标
func (m *CursorManager) Close(session string) {
	m.mu.Lock()
	sc, ok := m.cursors[session]
	if ok {
		delete(m.cursors, session)
	}
	m.mu.Unlock()
	if ok {
		closeCursor(sc)
	}
}

// CloseAll 关闭全部游标
func (m *CursorManager) CloseAll() {
	m.mu.Lock()
	cursors := m.cursors
	m.cursors = make(map[string]*sessionCursor)
	m.mu.Unlock()

	for _, sc := range cursors {
		closeCursor(sc)
	}
}

// closeCursor 释放游标持有的底层查询
// 在途取页还占着锁时等它结束再关，游标已摘出映射，不会再被新请求拿到
func closeCursor(sc *sessionCursor) {
	if sc.mu.TryLock() {
		sc.reset()
		sc.mu.Unlock()
		return
	}
	go func() {
		sc.mu.Lock()
		sc.reset()
		sc.mu.Unlock()
	}()
}
