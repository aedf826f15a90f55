package util

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"testing"
)

func TestIsContentHash(t *testing.T) {
	if !IsContentHash("0123456789abcdef0123456789abcdef") {
		t.Errorf("valid 32-hex rejected")
	}
	if IsContentHash("0123456789abcdef0123456789abcde") {
		t.Errorf("31 chars accepted")
	}
	if IsContentHash("0123456789abcdxf0123456789abcdef") {
		t.Errorf("non-hex char accepted")
	}
}

func TestDecodeMaybeEncoded(t *testing.T) {
	// hex 编码的文本
	plain := "hello world"
	encoded := hex.EncodeToString([]byte(plain))
	if got := DecodeMaybeEncoded(encoded); string(got) != plain {
		t.Errorf("hex decode = %q, want %q", got, plain)
	}

	// base64 编码
	encoded = base64.StdEncoding.EncodeToString([]byte("some longer payload text"))
	if got := DecodeMaybeEncoded(encoded); string(got) != "some longer payload text" {
		t.Errorf("base64 decode = %q", got)
	}

	// 普通文本原样返回
	if got := DecodeMaybeEncoded("普通消息内容"); string(got) != "普通消息内容" {
		t.Errorf("plain text modified: %q", got)
	}
}

func TestReplacementRatio(t *testing.T) {
	if r := ReplacementRatio([]byte("正常的中文文本")); r != 0 {
		t.Errorf("clean text ratio = %f", r)
	}
	garbage := bytes.Repeat([]byte{0xFF, 0xFE}, 10)
	if r := ReplacementRatio(garbage); r < 0.5 {
		t.Errorf("garbage ratio = %f, want > 0.5", r)
	}
}

func TestSplitComposeInt64(t *testing.T) {
	var v int64 = 3<<32 | 42
	low, high := SplitInt64ToTwoInt32(v)
	if low != 42 || high != 3 {
		t.Errorf("SplitInt64ToTwoInt32(%d) = %d, %d", v, low, high)
	}
	if got := ComposeInt64(uint32(low), uint32(high)); got != v {
		t.Errorf("ComposeInt64 = %d, want %d", got, v)
	}
}

func TestFindXMLAttr(t *testing.T) {
	data := `<msg><img aeskey="abc123" md5 = "deadbeef" /></msg>`
	if got := FindXMLAttr(data, "aeskey"); got != "abc123" {
		t.Errorf("aeskey = %q", got)
	}
	// 等号两侧的空白要容忍
	if got := FindXMLAttr(data, "md5"); got != "deadbeef" {
		t.Errorf("md5 = %q", got)
	}
	if got := FindXMLAttr(data, "missing"); got != "" {
		t.Errorf("missing attr = %q, want empty", got)
	}
}

func TestStr2List(t *testing.T) {
	got := Str2List(" a, ,b ,c", ",")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("Str2List = %v", got)
	}
}

func TestMustAnyToInt(t *testing.T) {
	if MustAnyToInt("42") != 42 {
		t.Errorf("string number failed")
	}
	if MustAnyToInt("abc") != 0 {
		t.Errorf("garbage should be 0")
	}
	if MustAnyToInt(int64(7)) != 7 {
		t.Errorf("int64 failed")
	}
}
