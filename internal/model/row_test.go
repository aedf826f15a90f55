package model

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/klauspost/compress/zstd"
	lz4lib "github.com/pierrec/lz4/v4"
)

func TestRowKVProbe(t *testing.T) {
	row := RowKV{"sort_seq": int64(42), "CREATETIME": int64(100)}

	// 精确命中
	if v, ok := row.Int64(AliasSeq...); !ok || v != 42 {
		t.Errorf("sort_seq = %d, %v", v, ok)
	}

	// 忽略大小写兜底
	if v, ok := row.Int64(AliasTime...); !ok || v != 100 {
		t.Errorf("CREATETIME = %d, %v", v, ok)
	}

	if _, ok := row.Int64("missing"); ok {
		t.Errorf("missing column should not be found")
	}
}

func TestCoerceInt64(t *testing.T) {
	le4 := make([]byte, 4)
	binary.LittleEndian.PutUint32(le4, 7)

	le8 := make([]byte, 8)
	binary.LittleEndian.PutUint32(le8[:4], 42) // 低位
	binary.LittleEndian.PutUint32(le8[4:], 3)  // 高位

	cases := []struct {
		in   interface{}
		want int64
		ok   bool
	}{
		{int64(5), 5, true},
		{float64(5.0), 5, true},
		{"123", 123, true},
		{le4, 7, true},
		{le8, 3<<32 | 42, true},
		{[]byte("99"), 99, true},
		{"abc", 0, false},
	}
	for _, c := range cases {
		got, ok := CoerceInt64(c.in)
		if got != c.want || ok != c.ok {
			t.Errorf("CoerceInt64(%v) = %d, %v, want %d, %v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestFromRow(t *testing.T) {
	row := RowKV{
		"local_type":       int64(49),
		"SubType":          int64(57),
		"create_time":      int64(1700000000),
		"message_content":  []byte("hi"),
		"packed_info_data": []byte{},
	}
	m := FromRow(row)

	// 子类型合入高 32 位
	if m.LocalType != 49|57<<32 {
		t.Errorf("LocalType = %d", m.LocalType)
	}
	// 缺序号时退回时间戳扩展
	if m.SortSeq != 1700000000*1000 {
		t.Errorf("SortSeq = %d", m.SortSeq)
	}
}

func TestWrapDirection(t *testing.T) {
	cases := []struct {
		name   string
		row    RowKV
		selfID string
		want   int8
	}{
		{"status 2 已发送", RowKV{"status": int64(2), "create_time": int64(1)}, "", SenderSelf},
		{"status 4 已接收", RowKV{"status": int64(4), "create_time": int64(1)}, "", SenderReceived},
		{"IsSender 列", RowKV{"IsSender": int64(1), "create_time": int64(1)}, "", SenderSelf},
		{"无标记无身份", RowKV{"create_time": int64(1)}, "", SenderUnknown},
	}
	for _, c := range cases {
		m := FromRow(c.row).Wrap("friend", nil, c.selfID)
		if m.IsSender != c.want {
			t.Errorf("%s: IsSender = %d, want %d", c.name, m.IsSender, c.want)
		}
	}

	// 无标记列时从自身 ID 推断
	id2Name := map[int64]string{1: "wxid_self", 2: "wxid_other"}
	row := RowKV{"create_time": int64(1), "real_sender_id": int64(1)}
	m := FromRow(row).Wrap("friend", id2Name, "wxid_self")
	if m.IsSender != SenderSelf {
		t.Errorf("self inference failed: %d", m.IsSender)
	}
	row = RowKV{"create_time": int64(1), "real_sender_id": int64(2)}
	m = FromRow(row).Wrap("friend", id2Name, "wxid_self")
	if m.IsSender != SenderReceived {
		t.Errorf("other inference failed: %d", m.IsSender)
	}
}

func TestWrapChatRoomSender(t *testing.T) {
	row := RowKV{
		"create_time":     int64(1700000000),
		"local_type":      int64(1),
		"message_content": []byte("wxid_abc:\n你好"),
	}
	m := FromRow(row).Wrap("12345@chatroom", nil, "")
	if !m.IsChatRoom {
		t.Fatalf("chatroom not detected")
	}
	if m.Sender != "wxid_abc" || m.Content != "你好" {
		t.Errorf("sender = %q, content = %q", m.Sender, m.Content)
	}
}

func TestWrapVoiceKey(t *testing.T) {
	row := RowKV{
		"create_time": int64(1700000000),
		"local_type":  int64(34),
		"server_id":   int64(987654),
	}
	m := FromRow(row).Wrap("friend", nil, "")
	if m.StringContent("voice") != "987654" {
		t.Errorf("voice key = %q", m.StringContent("voice"))
	}

	// 没有服务端 ID 时退回序号
	row = RowKV{
		"create_time": int64(1700000000),
		"local_type":  int64(34),
		"sort_seq":    int64(1700000000123),
	}
	m = FromRow(row).Wrap("friend", nil, "")
	if m.StringContent("voice") != "1700000000123" {
		t.Errorf("voice key fallback = %q", m.StringContent("voice"))
	}
}

func TestDecodeContentZstd(t *testing.T) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatal(err)
	}
	compressed := enc.EncodeAll([]byte("压缩的消息内容"), nil)
	enc.Close()

	got, degraded := decodeContent(compressed)
	if degraded || got != "压缩的消息内容" {
		t.Errorf("decodeContent(zstd) = %q, degraded=%v", got, degraded)
	}
}

func TestDecodeContentLz4(t *testing.T) {
	plain := []byte("lz4 压缩的消息内容，需要足够长一点才有意义")
	block := make([]byte, lz4lib.CompressBlockBound(len(plain)))
	n, err := lz4lib.CompressBlock(plain, block, nil)
	if err != nil || n == 0 {
		t.Skipf("block not compressible: %v", err)
	}

	data := append(bytes.Clone(lz4FrameMagic), block[:n]...)
	got, degraded := decodeContent(data)
	if degraded || got != string(plain) {
		t.Errorf("decodeContent(lz4) = %q, degraded=%v", got, degraded)
	}
}

func TestDecodeContentMojibakeGuard(t *testing.T) {
	raw := bytes.Repeat([]byte{0xFE, 0xFF, 0x80}, 10)
	got, degraded := decodeContent(raw)
	if !degraded {
		t.Errorf("garbage should degrade")
	}
	// 降级时保留原始串
	if got != string(raw) {
		t.Errorf("degraded content altered")
	}
}

func TestTrimStoragePath(t *testing.T) {
	if got := TrimStoragePath(`wxid_abc\msg\attach\a.dat`); got != "msg/attach/a.dat" {
		t.Errorf("TrimStoragePath = %q", got)
	}
	if got := TrimStoragePath("plain"); got != "plain" {
		t.Errorf("single segment = %q", got)
	}
}
