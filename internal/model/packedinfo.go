package model

import (
	"github.com/sjzar/chatview/pkg/util"
	"google.golang.org/protobuf/encoding/protowire"
)

// PackedInfo 消息附带的 proto 扩展数据，按需解析
// 没有官方 schema，只认识到字段号级别：
// 字段 3 为条目列表，条目内 1 是类型、2 是值，类型 1 发送人、3 缩略图路径、4 原图路径
// 字段 3/4 也可能直接是图片/视频子消息，取其中形如内容哈希的字符串
type PackedInfo struct {
	Sender    string
	ThumbPath string
	Path      string
	ImageMd5  string
	VideoMd5  string
}

// ParsePackedInfo 容错解析，坏数据返回 nil
func ParsePackedInfo(b []byte) *PackedInfo {
	info := &PackedInfo{}
	found := false

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nilIfEmpty(info, found)
		}
		b = b[n:]

		if typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nilIfEmpty(info, found)
			}
			b = b[n:]
			continue
		}

		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nilIfEmpty(info, found)
		}
		b = b[n:]

		switch num {
		case 3:
			if parseInfoItem(v, info) {
				found = true
				continue
			}
			if md5 := findContentHash(v, 0); md5 != "" {
				info.ImageMd5 = md5
				found = true
			}
		case 4:
			if md5 := findContentHash(v, 0); md5 != "" {
				info.VideoMd5 = md5
				found = true
			}
		}
	}

	return nilIfEmpty(info, found)
}

func nilIfEmpty(info *PackedInfo, found bool) *PackedInfo {
	if !found {
		return nil
	}
	return info
}

// parseInfoItem 尝试按 {1: 类型, 2: 值} 条目解析
func parseInfoItem(b []byte, info *PackedInfo) bool {
	var itemType int64
	var itemValue string

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return false
		}
		b = b[n:]

		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return false
			}
			itemType = int64(v)
			b = b[n:]
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return false
			}
			itemValue = string(v)
			b = b[n:]
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return false
			}
			b = b[n:]
		}
	}

	if itemValue == "" || !util.IsNormalString([]byte(itemValue)) {
		return false
	}

	switch itemType {
	case 1:
		info.Sender = itemValue
	case 3:
		info.ThumbPath = itemValue
	case 4:
		info.Path = itemValue
	default:
		return false
	}
	return true
}

// findContentHash 在嵌套消息里找第一个形如 32 位十六进制的字符串
func findContentHash(b []byte, depth int) string {
	if depth > 3 {
		return ""
	}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return ""
		}
		b = b[n:]

		if typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return ""
			}
			b = b[n:]
			continue
		}

		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return ""
		}
		b = b[n:]

		if util.IsContentHash(string(v)) {
			return string(v)
		}
		if md5 := findContentHash(v, depth+1); md5 != "" {
			return md5
		}
	}
	return ""
}
