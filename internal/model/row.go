package model

import (
	"bytes"
	"encoding/binary"
	"strconv"
	"strings"
	"time"

	"github.com/sjzar/chatview/pkg/util"
	"github.com/sjzar/chatview/pkg/util/lz4"
	"github.com/sjzar/chatview/pkg/util/zstd"
)

// 消息表在不同库版本之间列名不同，按别名顺序探测
// 先精确匹配，再忽略大小写匹配
var (
	AliasLocalID  = []string{"local_id", "localId"}
	AliasServerID = []string{"server_id", "MsgSvrID"}
	AliasSeq      = []string{"sort_seq", "Sequence", "MsgSequence"}
	AliasType     = []string{"local_type", "Type"}
	AliasSubType  = []string{"SubType"}
	AliasTime     = []string{"create_time", "CreateTime"}
	AliasContent  = []string{"message_content", "StrContent"}
	AliasSenderID = []string{"real_sender_id", "TalkerId"}
	AliasStatus   = []string{"status", "IsSender"}
	AliasPacked   = []string{"packed_info_data", "BytesExtra"}
	AliasTalker   = []string{"StrTalker", "username"}
)

// RowKV 一行查询结果，列名到值
type RowKV map[string]interface{}

// Probe 按别名顺序查找列值
func (r RowKV) Probe(aliases ...string) (interface{}, bool) {
	for _, alias := range aliases {
		if v, ok := r[alias]; ok {
			return v, true
		}
	}
	for _, alias := range aliases {
		for k, v := range r {
			if strings.EqualFold(k, alias) {
				return v, true
			}
		}
	}
	return nil, false
}

// Int64 探测并做数值归一化
// sqlite 驱动可能给出 int64、float64、文本数字，个别列是定宽小端字节
func (r RowKV) Int64(aliases ...string) (int64, bool) {
	v, ok := r.Probe(aliases...)
	if !ok || v == nil {
		return 0, false
	}
	return CoerceInt64(v)
}

func (r RowKV) String(aliases ...string) string {
	v, ok := r.Probe(aliases...)
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	}
	return ""
}

func (r RowKV) Bytes(aliases ...string) []byte {
	v, ok := r.Probe(aliases...)
	if !ok || v == nil {
		return nil
	}
	switch b := v.(type) {
	case []byte:
		return b
	case string:
		return []byte(b)
	}
	return nil
}

func CoerceInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case []byte:
		switch len(n) {
		case 4:
			return int64(binary.LittleEndian.Uint32(n)), true
		case 8:
			// 兼容拆成高低 32 位存储的序号
			low := binary.LittleEndian.Uint32(n[:4])
			high := binary.LittleEndian.Uint32(n[4:])
			return util.ComposeInt64(low, high), true
		}
		if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
			return i, true
		}
	case string:
		if i, err := strconv.ParseInt(n, 10, 64); err == nil {
			return i, true
		}
	}
	return 0, false
}

// MessageRow 归一化前的消息行
type MessageRow struct {
	ServerID   int64
	SortSeq    int64
	LocalType  int64
	SenderID   int64
	CreateTime int64
	Status     int64
	HasStatus  bool
	Content    []byte
	PackedInfo []byte
}

// FromRow 按别名表取出消息行的关键列
func FromRow(row RowKV) *MessageRow {
	m := &MessageRow{
		Content:    row.Bytes(AliasContent...),
		PackedInfo: row.Bytes(AliasPacked...),
	}
	m.ServerID, _ = row.Int64(AliasServerID...)
	m.SortSeq, _ = row.Int64(AliasSeq...)
	m.LocalType, _ = row.Int64(AliasType...)
	m.SenderID, _ = row.Int64(AliasSenderID...)
	m.CreateTime, _ = row.Int64(AliasTime...)
	m.Status, m.HasStatus = row.Int64(AliasStatus...)

	if sub, ok := row.Int64(AliasSubType...); ok && sub != 0 {
		m.LocalType |= sub << 32
	}
	if m.SortSeq == 0 {
		m.SortSeq = m.CreateTime * 1000
	}
	return m
}

// Wrap 把消息行归一化为 Message
// talker 为会话 ID；id2Name 用于把发送人序号映射回 ID
// 任何一步失败都降级为占位内容，绝不让单行坏数据影响整批
func (m *MessageRow) Wrap(talker string, id2Name map[int64]string, selfID string) *Message {

	_m := &Message{
		Seq:        m.SortSeq,
		Time:       time.Unix(m.CreateTime, 0),
		Talker:     talker,
		IsChatRoom: strings.HasSuffix(talker, "@chatroom"),
		Type:       m.LocalType,
		IsSender:   SenderUnknown,
	}

	if name, ok := id2Name[m.SenderID]; ok {
		_m.Sender = name
	}

	// status 列 2 表示已发送，4 表示已接收；旧表的 IsSender 列就是 0/1
	if m.HasStatus {
		switch m.Status {
		case 1, 2:
			_m.IsSender = SenderSelf
		case 0, 4:
			_m.IsSender = SenderReceived
		}
	}
	if _m.IsSender == SenderUnknown && selfID != "" && _m.Sender != "" {
		if _m.Sender == selfID {
			_m.IsSender = SenderSelf
		} else {
			_m.IsSender = SenderReceived
		}
	}

	content, degraded := decodeContent(m.Content)
	_m.Content = content

	if _m.IsChatRoom {
		split := strings.SplitN(_m.Content, ":\n", 2)
		if len(split) == 2 && _m.Sender == "" {
			_m.Sender = split[0]
			_m.Content = split[1]
		} else if len(split) == 2 && split[0] == _m.Sender {
			_m.Content = split[1]
		}
	}
	if !_m.IsChatRoom && _m.IsSender == SenderReceived && _m.Sender == "" {
		_m.Sender = talker
	}
	if !_m.IsChatRoom && _m.IsSender == SenderSelf && _m.Sender == "" {
		_m.Sender = selfID
	}

	if !degraded {
		_m.ParseMediaInfo(_m.Content)
	} else {
		_m.Type, _m.SubType = util.SplitInt64ToTwoInt32(_m.Type)
	}

	// 语音消息的检索键：优先服务端 ID，缺失时退回序号
	if _m.Type == MessageTypeVoice {
		key := m.ServerID
		if key == 0 {
			key = m.SortSeq
		}
		_m.SetContent("voice", strconv.FormatInt(key, 10))
		_m.SetContent("createtime", m.CreateTime)
	}

	if len(m.PackedInfo) != 0 {
		if packed := ParsePackedInfo(m.PackedInfo); packed != nil {
			if _m.IsChatRoom && _m.Sender == "" && packed.Sender != "" {
				_m.Sender = packed.Sender
			}
			if _m.Type == MessageTypeImage {
				if packed.ImageMd5 != "" {
					_m.SetContent("md5", packed.ImageMd5)
				}
				if packed.Path != "" {
					_m.SetContent("path", TrimStoragePath(packed.Path))
				}
				if packed.ThumbPath != "" {
					_m.SetContent("thumbpath", TrimStoragePath(packed.ThumbPath))
				}
			}
			if _m.Type == MessageTypeVideo {
				if packed.VideoMd5 != "" {
					_m.SetContent("md5", packed.VideoMd5)
				}
				if packed.Path != "" {
					_m.SetContent("path", TrimStoragePath(packed.Path))
				}
			}
		}
	}

	return _m
}

var lz4FrameMagic = []byte{0x04, 0x22, 0x4d, 0x18}

// decodeContent 还原消息内容
// 文本可能以 hex/base64 形态存储，也可能被 zstd 或 lz4 压缩
// 解压结果乱码比例超过 20% 时放弃，保留原始编码串
func decodeContent(raw []byte) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}

	b := raw
	if util.IsNormalString(raw) {
		b = util.DecodeMaybeEncoded(string(raw))
	}

	switch {
	case zstd.IsCompressed(b):
		if out, err := zstd.Decompress(b); err == nil {
			b = out
		}
	case bytes.HasPrefix(b, lz4FrameMagic):
		if out, err := lz4.Decompress(b[len(lz4FrameMagic):]); err == nil {
			b = out
		}
	}

	if util.ReplacementRatio(b) > 0.2 {
		return string(raw), true
	}
	return string(b), false
}

// TrimStoragePath 去掉路径最外层的账号目录
func TrimStoragePath(s string) string {
	parts := strings.Split(strings.ReplaceAll(s, "\\", "/"), "/")
	if len(parts) > 1 {
		return strings.Join(parts[1:], "/")
	}
	return s
}
