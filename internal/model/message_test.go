package model

import (
	"strings"
	"testing"
	"time"
)

func TestParseMediaInfoText(t *testing.T) {
	m := &Message{Type: MessageTypeText}
	if err := m.ParseMediaInfo("你好"); err != nil {
		t.Fatal(err)
	}
	if m.Content != "你好" {
		t.Errorf("Content = %q", m.Content)
	}
}

func TestParseMediaInfoImage(t *testing.T) {
	data := `<msg><img aeskey="key123" encryver="1" md5="0123456789abcdef0123456789abcdef"></img></msg>`
	m := &Message{Type: MessageTypeImage}
	if err := m.ParseMediaInfo(data); err != nil {
		t.Fatal(err)
	}
	if m.StringContent("md5") != "0123456789abcdef0123456789abcdef" {
		t.Errorf("md5 = %q", m.StringContent("md5"))
	}
	if m.StringContent("aeskey") != "key123" {
		t.Errorf("aeskey = %q", m.StringContent("aeskey"))
	}
}

func TestParseMediaInfoImageLooseXML(t *testing.T) {
	// 非严格 XML 走属性名提取兜底
	data := `<msg><img md5="deadbeef" aeskey="k1"` // 未闭合
	m := &Message{Type: MessageTypeImage}
	m.ParseMediaInfo(data)
	if m.StringContent("md5") != "deadbeef" {
		t.Errorf("fallback md5 = %q", m.StringContent("md5"))
	}
}

func TestParseMediaInfoSubTypeSplit(t *testing.T) {
	m := &Message{Type: 49 | 57<<32}
	m.ParseMediaInfo("not xml at all")
	if m.Type != MessageTypeShare || m.SubType != MessageSubTypeQuote {
		t.Errorf("Type = %d, SubType = %d", m.Type, m.SubType)
	}
}

func TestParseMediaInfoSystem(t *testing.T) {
	m := &Message{Type: MessageTypeSystem}
	m.ParseMediaInfo(`<sysmsg>你撤回了一条消息</sysmsg>`)
	if m.Sender != "系统消息" {
		t.Errorf("Sender = %q", m.Sender)
	}
	if m.Content != "你撤回了一条消息" {
		t.Errorf("Content = %q", m.Content)
	}
}

func TestParseMediaInfoQuote(t *testing.T) {
	data := `<msg><appmsg><title>回复内容</title><type>57</type>` +
		`<refermsg><type>1</type><fromusr>wxid_a</fromusr><chatusr>wxid_a</chatusr>` +
		`<displayname>张三</displayname><content>原始消息</content><createtime>1700000000</createtime></refermsg>` +
		`</appmsg></msg>`
	m := &Message{Type: MessageTypeShare}
	if err := m.ParseMediaInfo(data); err != nil {
		t.Fatal(err)
	}
	if m.SubType != MessageSubTypeQuote {
		t.Fatalf("SubType = %d", m.SubType)
	}
	if m.Content != "回复内容" {
		t.Errorf("Content = %q", m.Content)
	}
	refer, ok := m.Contents["refer"].(*Message)
	if !ok {
		t.Fatalf("refer missing")
	}
	if refer.Sender != "wxid_a" || refer.Content != "原始消息" {
		t.Errorf("refer = %+v", refer)
	}
}

func TestPlainTextContentPlaceholders(t *testing.T) {
	m := &Message{Type: MessageTypeVOIP}
	if got := m.PlainTextContent(); got != "[语音通话]" {
		t.Errorf("voip = %q", got)
	}

	// 未知类型降级为类型占位
	m = &Message{Type: 9999}
	if got := m.PlainTextContent(); got != "[类型 9999]" {
		t.Errorf("unknown = %q", got)
	}

	m = &Message{Type: MessageTypeVoice}
	m.SetContent("voice", "123")
	m.SetContent("host", "127.0.0.1:5030")
	if got := m.PlainTextContent(); !strings.Contains(got, "/voice/123") {
		t.Errorf("voice link = %q", got)
	}
}

func TestPlainTextLayout(t *testing.T) {
	m := &Message{
		Type:     MessageTypeText,
		Content:  "hello",
		Sender:   "wxid_a",
		IsSender: SenderSelf,
		Time:     time.Date(2023, 5, 1, 12, 0, 0, 0, time.Local),
	}
	out := m.PlainText(false, "", "localhost")
	if !strings.HasPrefix(out, "我 ") {
		t.Errorf("self marker missing: %q", out)
	}
	if !strings.Contains(out, "hello") {
		t.Errorf("content missing: %q", out)
	}
}

func TestCSVRecord(t *testing.T) {
	m := &Message{
		Seq:     1700000000001,
		Type:    MessageTypeText,
		Content: "hi",
		Talker:  "friend",
	}
	rec := m.CSVRecord()
	if len(rec) != len(CSVHeader) {
		t.Fatalf("record width %d != header width %d", len(rec), len(CSVHeader))
	}
	if rec[len(rec)-1] != "hi" {
		t.Errorf("content column = %q", rec[len(rec)-1])
	}
}
