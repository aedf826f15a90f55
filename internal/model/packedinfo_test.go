package model

import (
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func packItem(itemType uint64, value string) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, itemType)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte(value))
	return b
}

func TestParsePackedInfoItems(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 3, protowire.BytesType)
	b = protowire.AppendBytes(b, packItem(1, "wxid_sender"))
	b = protowire.AppendTag(b, 3, protowire.BytesType)
	b = protowire.AppendBytes(b, packItem(3, `wxid_x\msg\attach\thumb.dat`))
	b = protowire.AppendTag(b, 3, protowire.BytesType)
	b = protowire.AppendBytes(b, packItem(4, `wxid_x\msg\attach\full.dat`))

	info := ParsePackedInfo(b)
	if info == nil {
		t.Fatalf("ParsePackedInfo returned nil")
	}
	if info.Sender != "wxid_sender" {
		t.Errorf("Sender = %q", info.Sender)
	}
	if info.ThumbPath != `wxid_x\msg\attach\thumb.dat` {
		t.Errorf("ThumbPath = %q", info.ThumbPath)
	}
	if info.Path != `wxid_x\msg\attach\full.dat` {
		t.Errorf("Path = %q", info.Path)
	}
}

func TestParsePackedInfoImageHash(t *testing.T) {
	hash := "0123456789abcdef0123456789abcdef"

	// 图片子消息：字段 3 内嵌套一层，取形如内容哈希的字符串
	var inner []byte
	inner = protowire.AppendTag(inner, 5, protowire.BytesType)
	inner = protowire.AppendBytes(inner, []byte(hash))

	var b []byte
	b = protowire.AppendTag(b, 3, protowire.BytesType)
	b = protowire.AppendBytes(b, inner)

	info := ParsePackedInfo(b)
	if info == nil || info.ImageMd5 != hash {
		t.Fatalf("ImageMd5 = %+v", info)
	}
}

func TestParsePackedInfoVideoHash(t *testing.T) {
	hash := "fedcba9876543210fedcba9876543210"

	// 视频子消息嵌套两层也要能找到
	var level2 []byte
	level2 = protowire.AppendTag(level2, 1, protowire.BytesType)
	level2 = protowire.AppendBytes(level2, []byte(hash))

	var level1 []byte
	level1 = protowire.AppendTag(level1, 2, protowire.BytesType)
	level1 = protowire.AppendBytes(level1, level2)

	var b []byte
	b = protowire.AppendTag(b, 4, protowire.BytesType)
	b = protowire.AppendBytes(b, level1)

	info := ParsePackedInfo(b)
	if info == nil || info.VideoMd5 != hash {
		t.Fatalf("VideoMd5 = %+v", info)
	}
}

func TestParsePackedInfoGarbage(t *testing.T) {
	if info := ParsePackedInfo([]byte{0xFF, 0xFF, 0xFF}); info != nil {
		t.Errorf("garbage should yield nil, got %+v", info)
	}
	if info := ParsePackedInfo(nil); info != nil {
		t.Errorf("empty input should yield nil")
	}

	// 认不出任何字段时同样返回 nil
	var b []byte
	b = protowire.AppendTag(b, 9, protowire.VarintType)
	b = protowire.AppendVarint(b, 1)
	if info := ParsePackedInfo(b); info != nil {
		t.Errorf("unknown fields should yield nil, got %+v", info)
	}
}
