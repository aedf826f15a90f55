package datasource

import (
	"context"
	"database/sql"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/sjzar/chatview/internal/errors"
)

// VoiceSchema 语音分片库的表布局，发现一次后进程内缓存
// 带身份列的分片同时记下身份表，检索时先把身份串换成行号
type VoiceSchema struct {
	Table           string
	PayloadCol      string
	KeyCol          string
	TimeCol         string
	IdentityCol     string
	IdentityTable   string
	IdentityNameCol string
}

var (
	voiceTableCandidates      = []string{"VoiceInfo", "Media", "media"}
	voicePayloadCandidates    = []string{"voice_data", "Buf", "data"}
	voiceKeyCandidates        = []string{"svr_id", "Reserved0", "msg_svr_id", "MsgSvrId"}
	voiceTimeCandidates       = []string{"create_time", "CreateTime"}
	voiceIdentityCandidates   = []string{"user_name_id", "sender_id", "real_sender_id"}
	voiceIdentTableCandidates = []string{"Name2Id", "Name2ID"}
	voiceIdentNameCandidates  = []string{"user_name", "usrName", "username"}
)

// discoverVoiceSchema 按候选表名和列名探测语音表布局
func (ds *DataSource) discoverVoiceSchema(ctx context.Context, path string, db *sql.DB) (*VoiceSchema, error) {
	ds.voiceMu.RLock()
	schema, ok := ds.voiceSchemas[path]
	ds.voiceMu.RUnlock()
	if ok {
		return schema, nil
	}

	for _, table := range voiceTableCandidates {
		name, err := firstTable(ctx, db, table)
		if err != nil {
			return nil, err
		}
		if name == "" {
			continue
		}
		cols, err := tableColumns(ctx, db, name)
		if err != nil {
			return nil, err
		}
		payload := pickColumn(cols, voicePayloadCandidates...)
		key := pickColumn(cols, voiceKeyCandidates...)
		if payload == "" || key == "" {
			continue
		}
		schema = &VoiceSchema{
			Table:       name,
			PayloadCol:  payload,
			KeyCol:      key,
			TimeCol:     pickColumn(cols, voiceTimeCandidates...),
			IdentityCol: pickColumn(cols, voiceIdentityCandidates...),
		}
		if schema.IdentityCol != "" {
			identTable, err := firstTable(ctx, db, voiceIdentTableCandidates...)
			if err != nil {
				return nil, err
			}
			if identTable != "" {
				identCols, err := tableColumns(ctx, db, identTable)
				if err != nil {
					return nil, err
				}
				if nameCol := pickColumn(identCols, voiceIdentNameCandidates...); nameCol != "" {
					schema.IdentityTable = identTable
					schema.IdentityNameCol = nameCol
				}
			}
		}
		ds.voiceMu.Lock()
		ds.voiceSchemas[path] = schema
		ds.voiceMu.Unlock()
		return schema, nil
	}

	return nil, errors.VoiceSchemaNotFound(path)
}

// voiceWindowSeconds 按时间兜底检索的窗口半径
const voiceWindowSeconds = 5

// GetVoice 检索语音数据候选
// 四级策略：身份集合加精确时间 → 消息 ID 集合命中 → 精确时间命中 → ±5 秒窗口按时间距离排序
// identities 是候选身份串（会话、自己的 ID 等），先经分片内的身份表换成行号
// 返回按优先级排列的候选数据，调用方取第一个能解码的
func (ds *DataSource) GetVoice(ctx context.Context, identities []string, keys []string, createTime int64) ([][]byte, error) {
	paths, err := ds.dbm.GetDBPath(GroupVoice)
	if err != nil {
		return nil, err
	}

	candidates := make([][]byte, 0, 4)
	seen := make(map[string]struct{})

	appendBlob := func(b []byte) {
		if len(b) == 0 {
			return
		}
		// 多个分片可能存有同一条语音
		fp := string(b[:min(len(b), 64)])
		if _, ok := seen[fp]; ok {
			return
		}
		seen[fp] = struct{}{}
		candidates = append(candidates, b)
	}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		db, err := ds.dbm.OpenDB(path)
		if err != nil {
			log.Debug().Msgf("连接语音分片 %s 失败: %v", path, err)
			continue
		}
		schema, err := ds.discoverVoiceSchema(ctx, path, db)
		if err != nil {
			log.Debug().Msgf("语音分片 %s 布局未知: %v", path, err)
			continue
		}

		idents := resolveVoiceIdentities(ctx, db, schema, identities)
		for _, query := range schema.queries(idents, keys, createTime) {
			blobs, err := queryVoiceBlobs(ctx, db, query.sql, query.args...)
			if err != nil {
				log.Debug().Msgf("语音查询失败: %v", err)
				continue
			}
			for _, b := range blobs {
				appendBlob(b)
			}
			if len(blobs) > 0 {
				break
			}
		}
	}

	if len(candidates) == 0 {
		return nil, errors.ErrVoiceNotFound
	}
	return candidates, nil
}

type voiceQuery struct {
	sql  string
	args []interface{}
}

// resolveVoiceIdentities 把候选身份串换成身份表行号
func resolveVoiceIdentities(ctx context.Context, db *sql.DB, schema *VoiceSchema, identities []string) []int64 {
	if schema.IdentityTable == "" || len(identities) == 0 {
		return nil
	}

	query := "SELECT rowid FROM " + schema.IdentityTable +
		" WHERE " + schema.IdentityNameCol + " IN (?" + strings.Repeat(",?", len(identities)-1) + ")"
	args := make([]interface{}, 0, len(identities))
	for _, identity := range identities {
		args = append(args, identity)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Debug().Msgf("身份解析失败: %v", err)
		return nil
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// queries 按优先级生成四级检索语句
func (s *VoiceSchema) queries(idents []int64, keys []string, createTime int64) []voiceQuery {
	out := make([]voiceQuery, 0, 4)

	if s.IdentityCol != "" && len(idents) > 0 && s.TimeCol != "" && createTime > 0 {
		sqlStr := "SELECT " + s.PayloadCol + " FROM " + s.Table +
			" WHERE " + s.IdentityCol + " IN (?" + strings.Repeat(",?", len(idents)-1) + ")" +
			" AND " + s.TimeCol + " = ?"
		args := make([]interface{}, 0, len(idents)+1)
		for _, id := range idents {
			args = append(args, id)
		}
		args = append(args, createTime)
		out = append(out, voiceQuery{sqlStr, args})
	}

	if len(keys) > 0 {
		sqlStr := "SELECT " + s.PayloadCol + " FROM " + s.Table +
			" WHERE " + s.KeyCol + " IN (?" + strings.Repeat(",?", len(keys)-1) + ")"
		args := make([]interface{}, 0, len(keys)+1)
		for _, k := range keys {
			args = append(args, k)
		}
		if s.TimeCol != "" && createTime > 0 {
			sqlStr += " AND " + s.TimeCol + " = ?"
			args = append(args, createTime)
		}
		out = append(out, voiceQuery{sqlStr, args})
	}

	if s.TimeCol != "" && createTime > 0 {
		out = append(out, voiceQuery{
			"SELECT " + s.PayloadCol + " FROM " + s.Table + " WHERE " + s.TimeCol + " = ?",
			[]interface{}{createTime},
		})
		out = append(out, voiceQuery{
			"SELECT " + s.PayloadCol + " FROM " + s.Table +
				" WHERE " + s.TimeCol + " BETWEEN ? AND ?" +
				" ORDER BY ABS(" + s.TimeCol + " - ?)",
			[]interface{}{createTime - voiceWindowSeconds, createTime + voiceWindowSeconds, createTime},
		})
	}

	return out
}

func queryVoiceBlobs(ctx context.Context, db *sql.DB, query string, args ...interface{}) ([][]byte, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.QueryFailed(query, err)
	}
	defer rows.Close()

	blobs := make([][]byte, 0, 1)
	for rows.Next() {
		var b []byte
		if err := rows.Scan(&b); err != nil {
			return nil, errors.ScanRowFailed(err)
		}
		blobs = append(blobs, b)
	}
	return blobs, rows.Err()
}
