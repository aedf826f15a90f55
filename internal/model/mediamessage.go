package model

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"
)

// MediaMsg 多媒体消息的 XML 载荷
// 只声明需要的字段，按名提取，不做全量校验
type MediaMsg struct {
	XMLName  xml.Name `xml:"msg"`
	Image    Image    `xml:"img,omitempty"`
	Voice    Voice    `xml:"voicemsg,omitempty"`
	Card     Card     `xml:"username,omitempty"`
	Video    Video    `xml:"videomsg,omitempty"`
	Emoji    Emoji    `xml:"emoji,omitempty"`
	Location Location `xml:"location,omitempty"`
	App      App      `xml:"appmsg,omitempty"`
}

type Image struct {
	MD5      string `xml:"md5,attr"`
	AesKey   string `xml:"aeskey,attr"`
	EncryVer string `xml:"encryver,attr"`
}

type Voice struct {
	Length   int64 `xml:"voicelength,attr"`
	EndFlag  int   `xml:"endflag,attr"`
	Cancel   int   `xml:"cancelflag,attr"`
	ForwardF int   `xml:"forwardflag,attr"`
}

type Card struct {
	UserName string `xml:"username,attr"`
	NickName string `xml:"nickname,attr"`
	Alias    string `xml:"alias,attr"`
}

type Video struct {
	Md5    string `xml:"md5,attr"`
	RawMd5 string `xml:"rawmd5,attr"`
}

type Emoji struct {
	Md5    string `xml:"md5,attr"`
	CdnURL string `xml:"cdnurl,attr"`
}

type Location struct {
	X        string `xml:"x,attr"`
	Y        string `xml:"y,attr"`
	Label    string `xml:"label,attr"`
	CityName string `xml:"poiname,attr"`
}

type App struct {
	Type              int         `xml:"type"`
	Title             string      `xml:"title"`
	Des               string      `xml:"des"`
	URL               string      `xml:"url"`
	MD5               string      `xml:"md5"`
	SourceDisplayName string      `xml:"sourcedisplayname"`
	RecordItem        *RecordItem `xml:"recorditem,omitempty"`
	ReferMsg          *ReferMsg   `xml:"refermsg,omitempty"`
	WCPayInfo         *WCPayInfo  `xml:"wcpayinfo,omitempty"`
}

// ReferMsg 引用消息
type ReferMsg struct {
	Type        int64  `xml:"type"`
	SvrID       string `xml:"svrid"`
	FromUsr     string `xml:"fromusr"`
	ChatUsr     string `xml:"chatusr"`
	DisplayName string `xml:"displayname"`
	Content     string `xml:"content"`
	CreateTime  int64  `xml:"createtime"`
}

// WCPayInfo 转账信息
type WCPayInfo struct {
	PaySubType int    `xml:"paysubtype"`
	FeeDesc    string `xml:"feedesc"`
	PayMemo    string `xml:"pay_memo"`
}

type RecordItem struct {
	CDATA string `xml:",cdata"`
}

// RecordInfo 合并转发、群公告等消息内嵌的聊天记录
type RecordInfo struct {
	XMLName  xml.Name `xml:"recordinfo"`
	Title    string   `xml:"title,omitempty"`
	Desc     string   `xml:"desc,omitempty"`
	DataList DataList `xml:"datalist,omitempty"`
}

type DataList struct {
	Count     string     `xml:"count,attr,omitempty"`
	DataItems []DataItem `xml:"dataitem,omitempty"`
}

type DataItem struct {
	DataType   string `xml:"datatype,attr,omitempty"`
	SourceName string `xml:"sourcename,omitempty"`
	SourceTime string `xml:"sourcetime,omitempty"`
	DataDesc   string `xml:"datadesc,omitempty"`
	FullMD5    string `xml:"fullmd5,omitempty"`
}

func (r *RecordInfo) String(label string, host string) string {
	buf := strings.Builder{}
	buf.WriteString("[")
	buf.WriteString(label)
	if r.Title != "" {
		buf.WriteString("|")
		buf.WriteString(r.Title)
	}
	buf.WriteString("]\n")
	for _, item := range r.DataList.DataItems {
		buf.WriteString(item.SourceName)
		buf.WriteString(": ")
		switch item.DataType {
		case "1":
			buf.WriteString(item.DataDesc)
		case "2":
			buf.WriteString(fmt.Sprintf("![图片](http://%s/image/%s)", host, item.FullMD5))
		default:
			buf.WriteString(item.DataDesc)
		}
		buf.WriteString("\n")
	}
	return buf.String()
}

var sysMsgTagRE = regexp.MustCompile(`<[^>]*>`)

// parseSystemMessage 系统消息是松散的 XML 模板，直接剥掉标签取文本
func parseSystemMessage(data string) string {
	text := strings.TrimSpace(sysMsgTagRE.ReplaceAllString(data, ""))
	if text == "" {
		return "[系统消息]"
	}
	return text
}
