package model

import (
	"strings"
	"time"
)

type Session struct {
	UserName string    `json:"userName"`
	NOrder   int64     `json:"nOrder"`
	NickName string    `json:"nickName"`
	Content  string    `json:"content"`
	NTime    time.Time `json:"nTime"`
}

// 会话表列名别名
var (
	AliasSessionName  = []string{"username", "strUsrName"}
	AliasSummary      = []string{"summary", "strContent"}
	AliasLastTime     = []string{"last_timestamp", "nTime"}
	AliasSortOrder    = []string{"sort_timestamp", "nOrder"}
	AliasSessionTitle = []string{"last_sender_display_name", "strNickName"}
)

// SessionFromRow 归一化会话行
func SessionFromRow(row RowKV) *Session {
	lastTime, _ := row.Int64(AliasLastTime...)
	order, ok := row.Int64(AliasSortOrder...)
	if !ok {
		order = lastTime
	}
	return &Session{
		UserName: row.String(AliasSessionName...),
		NOrder:   order,
		NickName: row.String(AliasSessionTitle...),
		Content:  row.String(AliasSummary...),
		NTime:    time.Unix(lastTime, 0),
	}
}

func (s *Session) PlainText(limit int) string {
	buf := strings.Builder{}
	buf.WriteString(s.NickName)
	buf.WriteString("(")
	buf.WriteString(s.UserName)
	buf.WriteString(") ")
	buf.WriteString(s.NTime.Format("2006-01-02 15:04:05"))
	buf.WriteString("\n")
	if limit > 0 {
		if len(s.Content) > limit {
			buf.WriteString(s.Content[:limit])
			buf.WriteString(" <...>")
		} else {
			buf.WriteString(s.Content)
		}
	}
	buf.WriteString("\n")
	return buf.String()
}
