package model

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/sjzar/chatview/pkg/util"
)

var Debug = false

// IsSender 三态：部分库表没有发送标记列，只能从自身身份推断，推断不出时保持未知
const (
	SenderReceived int8 = 0
	SenderSelf     int8 = 1
	SenderUnknown  int8 = -1
)

const (
	// MessageTypeText 文本
	MessageTypeText = 1

	// MessageTypeImage 图片
	MessageTypeImage = 3

	// MessageTypeVoice 语音
	MessageTypeVoice = 34

	// MessageTypeCard 名片
	MessageTypeCard = 42

	// MessageTypeVideo 视频
	MessageTypeVideo = 43

	// MessageTypeAnimation 动画表情
	MessageTypeAnimation = 47

	// MessageTypeLocation 位置
	MessageTypeLocation = 48

	// MessageTypeShare 分享
	MessageTypeShare = 49

	// MessageTypeVOIP 语音通话
	MessageTypeVOIP = 50

	// MessageTypeSystem 系统
	MessageTypeSystem = 10000
)

const (
	// MessageSubTypeLink 链接分享
	MessageSubTypeLink = 4

	// MessageSubTypeLink2 链接分享
	MessageSubTypeLink2 = 5

	// MessageSubTypeFile 文件
	MessageSubTypeFile = 6

	// MessageSubTypeGIF 动图
	MessageSubTypeGIF = 8

	// MessageSubTypeMergeForward 合并转发
	MessageSubTypeMergeForward = 19

	// MessageSubTypeMiniProgram 小程序
	MessageSubTypeMiniProgram = 33

	// MessageSubTypeMiniProgram2 小程序
	MessageSubTypeMiniProgram2 = 36

	// MessageSubTypeQuote 引用
	MessageSubTypeQuote = 57

	// MessageSubTypeChannelLive 视频号直播
	MessageSubTypeChannelLive = 63

	// MessageSubTypeChatRoomNotice 群公告
	MessageSubTypeChatRoomNotice = 87

	// MessageSubTypePay 转账
	MessageSubTypePay = 2000
)

type Message struct {
	Seq        int64                  `json:"seq"`                // 消息序号，10位时间戳 + 3位序号
	Time       time.Time              `json:"time"`               // 消息创建时间
	Talker     string                 `json:"talker"`             // 聊天对象 ID，单聊或群 ID
	TalkerName string                 `json:"talkerName"`         // 聊天对象名称
	IsChatRoom bool                   `json:"isChatRoom"`         // 是否为群聊消息
	Sender     string                 `json:"sender"`             // 发送人 ID
	SenderName string                 `json:"senderName"`         // 发送人名称
	IsSender   int8                   `json:"isSender"`           // 0 接收，1 发送，-1 未知
	Type       int64                  `json:"type"`               // 消息类型
	SubType    int64                  `json:"subType"`            // 消息子类型
	Content    string                 `json:"content"`            // 文字内容
	Contents   map[string]interface{} `json:"contents,omitempty"` // 多媒体消息内容，采用更灵活的记录方式

	// Debug Info
	MediaMsg *MediaMsg `json:"mediaMsg,omitempty"` // 原始多媒体消息，XML 格式
}

// Self 是否确定为自己发送
func (m *Message) Self() bool {
	return m.IsSender == SenderSelf
}

// ParseMediaInfo 解析多媒体消息内容
// 解析失败不是错误，调用方降级为 [类型 N] 占位符，不影响同批次其他消息
func (m *Message) ParseMediaInfo(data string) error {

	m.Type, m.SubType = util.SplitInt64ToTwoInt32(m.Type)

	if m.Type == MessageTypeText {
		m.Content = data
		return nil
	}

	if m.Type == MessageTypeSystem {
		m.Sender = "系统消息"
		m.SenderName = ""
		m.Content = parseSystemMessage(data)
		return nil
	}

	var msg MediaMsg
	if err := xml.Unmarshal([]byte(data), &msg); err != nil {
		// 非严格 XML，退化为按属性名提取
		m.parseMediaAttrs(data)
		return err
	}

	if m.Contents == nil {
		m.Contents = make(map[string]interface{})
	}

	if Debug {
		m.MediaMsg = &msg
	}

	switch m.Type {
	case MessageTypeImage:
		m.Contents["md5"] = msg.Image.MD5
		if msg.Image.AesKey != "" {
			m.Contents["aeskey"] = msg.Image.AesKey
		}
		if msg.Image.EncryVer != "" {
			m.Contents["encryver"] = msg.Image.EncryVer
		}
	case MessageTypeVoice:
		if msg.Voice.Length > 0 {
			m.Contents["voicelength"] = msg.Voice.Length
		}
	case MessageTypeCard:
		m.Contents["nickname"] = msg.Card.NickName
		m.Contents["username"] = msg.Card.UserName
	case MessageTypeVideo:
		if msg.Video.Md5 != "" {
			m.Contents["md5"] = msg.Video.Md5
		}
		if msg.Video.RawMd5 != "" {
			m.Contents["rawmd5"] = msg.Video.RawMd5
		}
	case MessageTypeAnimation:
		m.Contents["cdnurl"] = msg.Emoji.CdnURL
	case MessageTypeLocation:
		m.Contents["x"] = msg.Location.X
		m.Contents["y"] = msg.Location.Y
		m.Contents["label"] = msg.Location.Label
		m.Contents["cityname"] = msg.Location.CityName
	case MessageTypeShare:
		m.SubType = int64(msg.App.Type)
		m.parseShare(&msg)
	}

	return nil
}

func (m *Message) parseShare(msg *MediaMsg) {
	switch m.SubType {
	case MessageSubTypeLink, MessageSubTypeLink2:
		m.Contents["title"] = msg.App.Title
		m.Contents["desc"] = msg.App.Des
		m.Contents["url"] = msg.App.URL
	case MessageSubTypeFile:
		m.Contents["title"] = msg.App.Title
		m.Contents["md5"] = msg.App.MD5
	case MessageSubTypeMergeForward, MessageSubTypeChatRoomNotice:
		m.Contents["title"] = msg.App.Title
		m.Contents["desc"] = msg.App.Des
		if msg.App.RecordItem == nil {
			break
		}
		recordInfo := &RecordInfo{}
		if err := xml.Unmarshal([]byte(msg.App.RecordItem.CDATA), recordInfo); err != nil {
			break
		}
		m.Contents["recordInfo"] = recordInfo
	case MessageSubTypeMiniProgram, MessageSubTypeMiniProgram2:
		m.Contents["title"] = msg.App.SourceDisplayName
		m.Contents["url"] = msg.App.URL
	case MessageSubTypeQuote:
		m.Content = msg.App.Title
		if msg.App.ReferMsg == nil {
			break
		}
		subMsg := &Message{
			Type:       int64(msg.App.ReferMsg.Type),
			Time:       time.Unix(msg.App.ReferMsg.CreateTime, 0),
			Sender:     msg.App.ReferMsg.ChatUsr,
			SenderName: msg.App.ReferMsg.DisplayName,
			IsSender:   SenderUnknown,
		}
		if subMsg.Sender == "" {
			subMsg.Sender = msg.App.ReferMsg.FromUsr
		}
		if err := subMsg.ParseMediaInfo(msg.App.ReferMsg.Content); err != nil {
			break
		}
		m.Contents["refer"] = subMsg
	case MessageSubTypePay:
		if msg.App.WCPayInfo == nil {
			break
		}
		// 1,7 转账发送; 3,5 收钱回执; 4 退还回执
		_type := ""
		switch msg.App.WCPayInfo.PaySubType {
		case 1, 7:
			_type = "发送 "
		case 3, 5:
			_type = "接收 "
		case 4:
			_type = "退还 "
		}
		m.Content = fmt.Sprintf("[转账|%s%s]", _type, msg.App.WCPayInfo.FeeDesc)
	}
}

// parseMediaAttrs XML 解析失败时的兜底，按属性名正则提取关键信息
func (m *Message) parseMediaAttrs(data string) {
	if m.Contents == nil {
		m.Contents = make(map[string]interface{})
	}
	switch m.Type {
	case MessageTypeImage:
		if v := util.FindXMLAttr(data, "md5"); v != "" {
			m.Contents["md5"] = v
		}
		if v := util.FindXMLAttr(data, "aeskey"); v != "" {
			m.Contents["aeskey"] = v
		}
	case MessageTypeVideo:
		if v := util.FindXMLAttr(data, "rawmd5"); v != "" {
			m.Contents["rawmd5"] = v
		}
	}
}

func (m *Message) SetContent(key string, value interface{}) {
	if m.Contents == nil {
		m.Contents = make(map[string]interface{})
	}
	m.Contents[key] = value
}

func (m *Message) StringContent(key string) string {
	if m.Contents == nil {
		return ""
	}
	if v, ok := m.Contents[key].(string); ok {
		return v
	}
	return ""
}

func (m *Message) PlainText(showChatRoom bool, timeFormat string, host string) string {

	if timeFormat == "" {
		timeFormat = "01-02 15:04:05"
	}

	m.SetContent("host", host)

	buf := strings.Builder{}

	sender := m.Sender
	if m.Self() {
		sender = "我"
	}
	if m.SenderName != "" {
		buf.WriteString(m.SenderName)
		buf.WriteString("(")
		buf.WriteString(sender)
		buf.WriteString(")")
	} else {
		buf.WriteString(sender)
	}
	buf.WriteString(" ")

	if m.IsChatRoom && showChatRoom {
		buf.WriteString("[")
		if m.TalkerName != "" {
			buf.WriteString(m.TalkerName)
			buf.WriteString("(")
			buf.WriteString(m.Talker)
			buf.WriteString(")")
		} else {
			buf.WriteString(m.Talker)
		}
		buf.WriteString("] ")
	}

	buf.WriteString(m.Time.Format(timeFormat))
	buf.WriteString("\n")
	buf.WriteString(m.PlainTextContent())
	buf.WriteString("\n\n")

	return buf.String()
}

func (m *Message) PlainTextContent() string {
	switch m.Type {
	case MessageTypeText:
		return m.Content
	case MessageTypeImage:
		keylist := make([]string, 0)
		for _, key := range []string{"md5", "path", "thumbpath"} {
			if v := m.StringContent(key); v != "" {
				keylist = append(keylist, v)
			}
		}
		return fmt.Sprintf("![图片](http://%s/image/%s)", m.StringContent("host"), strings.Join(keylist, ","))
	case MessageTypeVoice:
		if voice := m.StringContent("voice"); voice != "" {
			return fmt.Sprintf("[语音](http://%s/voice/%s)", m.StringContent("host"), voice)
		}
		return "[语音]"
	case MessageTypeCard:
		return "[名片]"
	case MessageTypeVideo:
		keylist := make([]string, 0)
		for _, key := range []string{"md5", "rawmd5", "path"} {
			if v := m.StringContent(key); v != "" {
				keylist = append(keylist, v)
			}
		}
		return fmt.Sprintf("![视频](http://%s/video/%s)", m.StringContent("host"), strings.Join(keylist, ","))
	case MessageTypeAnimation:
		if cdnURL := m.StringContent("cdnurl"); cdnURL != "" {
			return fmt.Sprintf("![动画表情](%s)", cdnURL)
		}
		return "[动画表情]"
	case MessageTypeLocation:
		keylist := make([]string, 0)
		for _, key := range []string{"label", "cityname", "x", "y"} {
			if v := m.StringContent(key); v != "" {
				keylist = append(keylist, v)
			}
		}
		return fmt.Sprintf("[位置|%s]", strings.Join(keylist, "|"))
	case MessageTypeShare:
		return m.plainTextShare()
	case MessageTypeVOIP:
		return "[语音通话]"
	case MessageTypeSystem:
		return m.Content
	default:
		if m.Content != "" {
			content := m.Content
			if len(content) > 120 {
				content = content[:120] + "<...>"
			}
			return content
		}
		return fmt.Sprintf("[类型 %d]", m.Type)
	}
}

func (m *Message) plainTextShare() string {
	switch m.SubType {
	case MessageSubTypeLink, MessageSubTypeLink2:
		return fmt.Sprintf("[链接|%s](%s)", m.StringContent("title"), m.StringContent("url"))
	case MessageSubTypeFile:
		return fmt.Sprintf("[文件|%s](http://%s/file/%s)", m.StringContent("title"), m.StringContent("host"), m.StringContent("md5"))
	case MessageSubTypeGIF:
		return "[GIF表情]"
	case MessageSubTypeMergeForward:
		if recordInfo, ok := m.Contents["recordInfo"].(*RecordInfo); ok {
			return recordInfo.String("合并转发", m.StringContent("host"))
		}
		return "[合并转发]"
	case MessageSubTypeMiniProgram, MessageSubTypeMiniProgram2:
		if m.StringContent("title") == "" {
			return "[小程序]"
		}
		return fmt.Sprintf("[小程序|%s](%s)", m.StringContent("title"), m.StringContent("url"))
	case MessageSubTypeQuote:
		refer, ok := m.Contents["refer"].(*Message)
		if !ok {
			if m.Content == "" {
				return "[引用]"
			}
			return "> [引用]\n" + m.Content
		}
		buf := strings.Builder{}
		referContent := refer.PlainText(false, "", m.StringContent("host"))
		for _, line := range strings.Split(referContent, "\n") {
			if line == "" {
				continue
			}
			buf.WriteString("> ")
			buf.WriteString(line)
			buf.WriteString("\n")
		}
		buf.WriteString(m.Content)
		return buf.String()
	case MessageSubTypeChannelLive:
		return "[视频号直播]"
	case MessageSubTypeChatRoomNotice:
		if recordInfo, ok := m.Contents["recordInfo"].(*RecordInfo); ok {
			return recordInfo.String("群公告", m.StringContent("host"))
		}
		return "[群公告]"
	case MessageSubTypePay:
		if m.Content != "" {
			return m.Content
		}
		return "[转账]"
	default:
		return "[分享]"
	}
}

// CSV 渲染使用的列头与单行输出
var CSVHeader = []string{"seq", "time", "talker", "sender", "isSender", "type", "subType", "content"}

func (m *Message) CSVRecord() []string {
	return []string{
		fmt.Sprint(m.Seq),
		m.Time.Format("2006-01-02 15:04:05"),
		m.Talker,
		m.Sender,
		fmt.Sprint(m.IsSender),
		fmt.Sprint(m.Type),
		fmt.Sprint(m.SubType),
		m.PlainTextContent(),
	}
}
