package datasource

import (
	"context"
	"database/sql"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/sjzar/chatview/internal/errors"
	"github.com/sjzar/chatview/internal/model"
	"github.com/sjzar/chatview/internal/storedb/datasource/dbm"
)

// 数据目录下的库文件分组
const (
	GroupMessage = "message"
	GroupContact = "contact"
	GroupSession = "session"
	GroupMedia   = "media"
	GroupVoice   = "voice"
)

const (
	MessageFilePattern = `^(message_[0-9]*|MSG[0-9]*)\.db$`
	ContactFilePattern = `^(contact|MicroMsg)\.db$`
	SessionFilePattern = `^(session|MicroMsg)\.db$`
	MediaFilePattern   = `^(hardlink|HardLink.*)\.db$`
	VoiceFilePattern   = `^(media_[0-9]*|MediaMSG[0-9]*)\.db$`
)

// ShardInfo 单个消息分片库的信息
// 分片按起始时间切分，ID2Name 是分片内发送人序号到 ID 的映射
type ShardInfo struct {
	FilePath  string
	StartTime time.Time
	EndTime   time.Time
	ID2Name   map[int64]string
}

type DataSource struct {
	path   string
	selfID string
	dbm    *dbm.DBManager

	shardMu sync.RWMutex
	shards  []ShardInfo

	voiceMu      sync.RWMutex
	voiceSchemas map[string]*VoiceSchema
}

func New(path string, selfID string) (*DataSource, error) {
	ds := &DataSource{
		path:         path,
		selfID:       selfID,
		dbm:          dbm.NewDBManager(path),
		voiceSchemas: make(map[string]*VoiceSchema),
	}

	groups := []*dbm.Group{
		{Name: GroupMessage, Pattern: MessageFilePattern},
		{Name: GroupContact, Pattern: ContactFilePattern},
		{Name: GroupSession, Pattern: SessionFilePattern},
		{Name: GroupMedia, Pattern: MediaFilePattern},
		{Name: GroupVoice, Pattern: VoiceFilePattern},
	}
	for _, g := range groups {
		if err := ds.dbm.AddGroup(g); err != nil {
			return nil, err
		}
	}

	// 分片文件变更后重新发现
	ds.dbm.AddCallback(GroupMessage, func(event fsnotify.Event) error {
		ds.shardMu.Lock()
		ds.shards = nil
		ds.shardMu.Unlock()
		return nil
	})
	ds.dbm.AddCallback(GroupVoice, func(event fsnotify.Event) error {
		ds.voiceMu.Lock()
		delete(ds.voiceSchemas, event.Name)
		ds.voiceMu.Unlock()
		return nil
	})

	if err := ds.dbm.Start(); err != nil {
		log.Err(err).Msg("启动文件监控失败，热更新不可用")
	}

	// 预热分片信息，失败不阻塞启动
	if _, err := ds.Shards(); err != nil {
		log.Debug().Msgf("加载消息分片失败: %v", err)
	}

	return ds, nil
}

// Shards 返回按时间排序的消息分片，懒加载
func (ds *DataSource) Shards() ([]ShardInfo, error) {
	ds.shardMu.RLock()
	shards := ds.shards
	ds.shardMu.RUnlock()
	if shards != nil {
		return shards, nil
	}

	paths, err := ds.dbm.GetDBPath(GroupMessage)
	if err != nil {
		return nil, err
	}

	shards = make([]ShardInfo, 0, len(paths))
	for _, filePath := range paths {
		db, err := ds.dbm.OpenDB(filePath)
		if err != nil {
			log.Err(err).Msgf("连接分片 %s 失败", filePath)
			continue
		}

		info := ShardInfo{FilePath: filePath}

		var timestamp int64
		row := db.QueryRow("SELECT timestamp FROM Timestamp LIMIT 1")
		if err := row.Scan(&timestamp); err == nil {
			info.StartTime = time.Unix(timestamp, 0)
		}

		info.ID2Name = ds.loadID2Name(db)
		shards = append(shards, info)
	}

	if len(shards) == 0 {
		return nil, errors.DBFileNotFound(ds.path, MessageFilePattern, nil)
	}

	sort.Slice(shards, func(i, j int) bool {
		return shards[i].StartTime.Before(shards[j].StartTime)
	})
	for i := range shards {
		if i == len(shards)-1 {
			shards[i].EndTime = time.Now()
		} else {
			shards[i].EndTime = shards[i+1].StartTime
		}
	}

	ds.shardMu.Lock()
	ds.shards = shards
	ds.shardMu.Unlock()
	return shards, nil
}

// loadID2Name 发送人序号表，行号从 1 开始
func (ds *DataSource) loadID2Name(db *sql.DB) map[int64]string {
	id2Name := make(map[int64]string)
	rows, err := db.Query("SELECT user_name FROM Name2Id")
	if err != nil {
		return id2Name
	}
	defer rows.Close()

	var i int64 = 1
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			continue
		}
		id2Name[i] = name
		i++
	}
	return id2Name
}

// shardsForRange 返回与时间范围有交集的分片
func (ds *DataSource) shardsForRange(start, end time.Time) ([]ShardInfo, error) {
	shards, err := ds.Shards()
	if err != nil {
		return nil, err
	}
	var hit []ShardInfo
	for _, info := range shards {
		if info.StartTime.Before(end) && info.EndTime.After(start) {
			hit = append(hit, info)
		}
	}
	return hit, nil
}

// queryRowsKV 把查询结果装进列名到值的映射，列布局交给上层按别名探测
func queryRowsKV(ctx context.Context, db *sql.DB, query string, args ...interface{}) ([]model.RowKV, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.QueryFailed(query, err)
	}
	defer rows.Close()
	return scanRowsKV(rows, 0)
}

// scanRowsKV 扫描至多 limit 行（0 为不限）
func scanRowsKV(rows *sql.Rows, limit int) ([]model.RowKV, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.ScanRowFailed(err)
	}

	out := make([]model.RowKV, 0)
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.ScanRowFailed(err)
		}
		kv := make(model.RowKV, len(cols))
		for i, col := range cols {
			kv[col] = values[i]
		}
		out = append(out, kv)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, rows.Err()
}

// firstTable 返回库里第一个存在的候选表名
func firstTable(ctx context.Context, db *sql.DB, candidates ...string) (string, error) {
	for _, name := range candidates {
		var one int
		err := db.QueryRowContext(ctx,
			"SELECT 1 FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&one)
		if err == nil {
			return name, nil
		}
		if err != sql.ErrNoRows {
			return "", errors.QueryFailed("sqlite_master", err)
		}
	}
	return "", nil
}

// tableColumns 读取表的列名
func tableColumns(ctx context.Context, db *sql.DB, table string) ([]string, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return nil, errors.QueryFailed("PRAGMA table_info", err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, errors.ScanRowFailed(err)
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

// GetContacts 联系人查询，key 为空时返回全部
func (ds *DataSource) GetContacts(ctx context.Context, key string, limit, offset int) ([]*model.Contact, error) {
	db, err := ds.dbm.GetDB(GroupContact)
	if err != nil {
		return nil, err
	}

	table, err := firstTable(ctx, db, "contact", "Contact")
	if err != nil {
		return nil, err
	}
	if table == "" {
		return nil, errors.UnknownColumnLayout("contact")
	}

	query := "SELECT * FROM " + table
	args := []interface{}{}
	if key != "" {
		query += " WHERE username = ? OR alias = ? OR remark = ? OR nick_name = ?"
		args = append(args, key, key, key, key)
	}
	query += " ORDER BY username"
	query += limitClause(limit, offset)

	rowKVs, err := queryRowsKV(ctx, db, query, args...)
	if err != nil {
		return nil, err
	}

	contacts := make([]*model.Contact, 0, len(rowKVs))
	for _, row := range rowKVs {
		contacts = append(contacts, model.ContactFromRow(row))
	}
	return contacts, nil
}

// GetSessions 最近会话查询，按排序时间倒序
func (ds *DataSource) GetSessions(ctx context.Context, key string, limit, offset int) ([]*model.Session, error) {
	db, err := ds.dbm.GetDB(GroupSession)
	if err != nil {
		return nil, err
	}

	table, err := firstTable(ctx, db, "SessionTable", "Session")
	if err != nil {
		return nil, err
	}
	if table == "" {
		return nil, errors.UnknownColumnLayout("session")
	}

	query := "SELECT * FROM " + table
	args := []interface{}{}
	if key != "" {
		query += " WHERE username = ? OR last_sender_display_name = ?"
		args = append(args, key, key)
	}
	query += " ORDER BY sort_timestamp DESC"
	query += limitClause(limit, offset)

	rowKVs, err := queryRowsKV(ctx, db, query, args...)
	if err != nil {
		return nil, err
	}

	sessions := make([]*model.Session, 0, len(rowKVs))
	for _, row := range rowKVs {
		if s := model.SessionFromRow(row); s.UserName != "" {
			sessions = append(sessions, s)
		}
	}
	return sessions, nil
}

func limitClause(limit, offset int) string {
	clause := ""
	if limit > 0 {
		clause = " LIMIT " + strconv.Itoa(limit)
		if offset > 0 {
			clause += " OFFSET " + strconv.Itoa(offset)
		}
	}
	return clause
}

// SetCallback 注册文件分组变更回调
func (ds *DataSource) SetCallback(group string, callback func(event fsnotify.Event) error) error {
	return ds.dbm.AddCallback(group, callback)
}

// InvalidateShards 清空分片缓存，下次查询重新发现
func (ds *DataSource) InvalidateShards() {
	ds.shardMu.Lock()
	ds.shards = nil
	ds.shardMu.Unlock()
	ds.voiceMu.Lock()
	ds.voiceSchemas = make(map[string]*VoiceSchema)
	ds.voiceMu.Unlock()
}

func (ds *DataSource) Close() error {
	if err := ds.dbm.Close(); err != nil {
		return errors.DBCloseFailed(err)
	}
	return nil
}
