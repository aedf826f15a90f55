package datasource

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sjzar/chatview/internal/errors"
	"github.com/sjzar/chatview/internal/model"
)

// talkerTable 某个分片内该会话的消息表布局
type talkerTable struct {
	name      string
	timeCol   string
	seqCol    string
	talkerCol string // 旧版共享表按会话列过滤，新版每会话一张表
}

// resolveTable 解析会话在分片内的消息表
// 新版表名为 Msg_<md5(会话ID)>，旧版是共享的 MSG 表
// 都没有时返回 nil，该分片没有这个会话的消息
func (ds *DataSource) resolveTable(ctx context.Context, db *sql.DB, talker string) (*talkerTable, error) {
	sum := md5.Sum([]byte(talker))
	perTalker := "Msg_" + hex.EncodeToString(sum[:])

	name, err := firstTable(ctx, db, perTalker, "MSG")
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, nil
	}

	cols, err := tableColumns(ctx, db, name)
	if err != nil {
		return nil, err
	}

	t := &talkerTable{name: name}
	t.timeCol = pickColumn(cols, "create_time", "CreateTime")
	t.seqCol = pickColumn(cols, "sort_seq", "Sequence", "MsgSequence")
	if name == "MSG" {
		t.talkerCol = pickColumn(cols, "StrTalker", "talker")
		if t.talkerCol == "" {
			return nil, errors.UnknownColumnLayout(name)
		}
	}
	if t.timeCol == "" {
		return nil, errors.UnknownColumnLayout(name)
	}
	if t.seqCol == "" {
		t.seqCol = t.timeCol
	}
	return t, nil
}

func pickColumn(cols []string, candidates ...string) string {
	for _, want := range candidates {
		for _, col := range cols {
			if col == want {
				return col
			}
		}
	}
	for _, want := range candidates {
		for _, col := range cols {
			if strings.EqualFold(col, want) {
				return col
			}
		}
	}
	return ""
}

func (t *talkerTable) query(talker string, start, end time.Time, asc bool) (string, []interface{}) {
	query := "SELECT * FROM " + t.name +
		" WHERE " + t.timeCol + " >= ? AND " + t.timeCol + " <= ?"
	args := []interface{}{start.Unix(), end.Unix()}
	if t.talkerCol != "" {
		query += " AND " + t.talkerCol + " = ?"
		args = append(args, talker)
	}
	query += " ORDER BY " + t.seqCol
	if asc {
		query += " ASC"
	} else {
		query += " DESC"
	}
	return query, args
}

// GetMessages 直接分页查询，跨分片时在内存中合并排序
// 大偏移量场景走 MessageIterator，这里服务一次性的小查询
func (ds *DataSource) GetMessages(ctx context.Context, start, end time.Time, talker string, limit, offset int, asc bool) ([]*model.Message, error) {
	if talker == "" {
		return nil, errors.ErrSessionEmpty
	}

	shards, err := ds.shardsForRange(start, end)
	if err != nil {
		return nil, err
	}
	if len(shards) == 0 {
		return nil, errors.TimeRangeNotFound(start, end)
	}

	total := []*model.Message{}
	for _, info := range shards {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		messages, err := ds.getMessagesFromShard(ctx, info, start, end, talker, asc)
		if err != nil {
			log.Debug().Msgf("分片 %s 查询失败: %v", info.FilePath, err)
			continue
		}
		total = append(total, messages...)

		if limit > 0 && len(total) >= limit+offset && len(shards) == 1 {
			break
		}
	}

	sort.Slice(total, func(i, j int) bool {
		if asc {
			return total[i].Seq < total[j].Seq
		}
		return total[i].Seq > total[j].Seq
	})

	if limit > 0 {
		if offset >= len(total) {
			return []*model.Message{}, nil
		}
		end := offset + limit
		if end > len(total) {
			end = len(total)
		}
		total = total[offset:end]
	}
	return total, nil
}

func (ds *DataSource) getMessagesFromShard(ctx context.Context, info ShardInfo, start, end time.Time, talker string, asc bool) ([]*model.Message, error) {
	db, err := ds.dbm.OpenDB(info.FilePath)
	if err != nil {
		return nil, err
	}

	t, err := ds.resolveTable(ctx, db, talker)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return []*model.Message{}, nil
	}

	query, args := t.query(talker, start, end, asc)
	rowKVs, err := queryRowsKV(ctx, db, query, args...)
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			return []*model.Message{}, nil
		}
		return nil, err
	}

	messages := make([]*model.Message, 0, len(rowKVs))
	for _, row := range rowKVs {
		messages = append(messages, model.FromRow(row).Wrap(talker, info.ID2Name, ds.selfID))
	}
	return messages, nil
}

// MessageIterator 跨分片的顺序消息流
// 底层是逐分片打开的 sql.Rows，只进不退，供游标分页使用
type MessageIterator struct {
	ds     *DataSource
	talker string
	start  time.Time
	end    time.Time
	asc    bool

	shards []ShardInfo
	idx    int
	rows   *sql.Rows
	cols   []string
	shard  *ShardInfo
	peeked *model.Message
	done   bool
}

// OpenMessageIterator 打开消息流
// asc 为 false 时分片和分片内记录都倒序走
func (ds *DataSource) OpenMessageIterator(ctx context.Context, talker string, start, end time.Time, asc bool) (*MessageIterator, error) {
	if talker == "" {
		return nil, errors.ErrSessionEmpty
	}

	shards, err := ds.shardsForRange(start, end)
	if err != nil {
		return nil, err
	}
	if len(shards) == 0 {
		return nil, errors.TimeRangeNotFound(start, end)
	}
	if !asc {
		reversed := make([]ShardInfo, len(shards))
		for i := range shards {
			reversed[i] = shards[len(shards)-1-i]
		}
		shards = reversed
	}

	return &MessageIterator{
		ds:     ds,
		talker: talker,
		start:  start,
		end:    end,
		asc:    asc,
		shards: shards,
	}, nil
}

// NextBatch 取下一批消息
// 批内保证按序号升序返回；hasMore 表示后面还有数据
func (it *MessageIterator) NextBatch(ctx context.Context, limit int) ([]*model.Message, bool, error) {
	if limit <= 0 {
		limit = 100
	}

	batch := make([]*model.Message, 0, limit)
	for len(batch) < limit {
		msg, err := it.next(ctx)
		if err != nil {
			return nil, false, err
		}
		if msg == nil {
			break
		}
		batch = append(batch, msg)
	}

	hasMore := false
	if !it.done {
		peek, err := it.next(ctx)
		if err != nil {
			return nil, false, err
		}
		if peek != nil {
			it.peeked = peek
			hasMore = true
		}
	}

	// 倒序查询的批次翻转为升序，方便按时间线渲染
	if len(batch) >= 2 && batch[0].Seq > batch[len(batch)-1].Seq {
		for i, j := 0, len(batch)-1; i < j; i, j = i+1, j-1 {
			batch[i], batch[j] = batch[j], batch[i]
		}
	}

	return batch, hasMore, nil
}

// next 取下一条消息，分片耗尽时切换到下一个分片
func (it *MessageIterator) next(ctx context.Context) (*model.Message, error) {
	if it.peeked != nil {
		msg := it.peeked
		it.peeked = nil
		return msg, nil
	}
	if it.done {
		return nil, nil
	}

	for {
		if it.rows == nil {
			if it.idx >= len(it.shards) {
				it.done = true
				return nil, nil
			}
			if err := it.openShard(ctx); err != nil {
				return nil, err
			}
			if it.rows == nil {
				continue
			}
		}

		if it.rows.Next() {
			return it.scanCurrent()
		}
		err := it.rows.Err()
		it.rows.Close()
		it.rows = nil
		if err != nil {
			return nil, errors.ScanRowFailed(err)
		}
	}
}

func (it *MessageIterator) openShard(ctx context.Context) error {
	info := it.shards[it.idx]
	it.idx++
	it.shard = &info

	db, err := it.ds.dbm.OpenDB(info.FilePath)
	if err != nil {
		log.Debug().Msgf("连接分片 %s 失败: %v", info.FilePath, err)
		return nil
	}

	t, err := it.ds.resolveTable(ctx, db, it.talker)
	if err != nil || t == nil {
		return nil
	}

	query, args := t.query(it.talker, it.start, it.end, it.asc)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			return nil
		}
		return errors.QueryFailed(query, err)
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return errors.ScanRowFailed(err)
	}
	it.rows = rows
	it.cols = cols
	return nil
}

func (it *MessageIterator) scanCurrent() (*model.Message, error) {
	values := make([]interface{}, len(it.cols))
	ptrs := make([]interface{}, len(it.cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := it.rows.Scan(ptrs...); err != nil {
		return nil, errors.ScanRowFailed(err)
	}
	kv := make(model.RowKV, len(it.cols))
	for i, col := range it.cols {
		kv[col] = values[i]
	}
	return model.FromRow(kv).Wrap(it.talker, it.shard.ID2Name, it.ds.selfID), nil
}

func (it *MessageIterator) Close() error {
	it.done = true
	it.peeked = nil
	if it.rows != nil {
		err := it.rows.Close()
		it.rows = nil
		return err
	}
	return nil
}
