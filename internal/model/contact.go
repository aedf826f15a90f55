package model

import "strings"

type Contact struct {
	UserName     string `json:"userName"`
	Alias        string `json:"alias"`
	Remark       string `json:"remark"`
	NickName     string `json:"nickName"`
	IsFriend     bool   `json:"isFriend"`
	BigHeadURL   string `json:"bigHeadUrl,omitempty"`
	SmallHeadURL string `json:"smallHeadUrl,omitempty"`
}

// 联系人表列名别名
var (
	AliasUserName  = []string{"username", "UserName"}
	AliasAliasName = []string{"alias", "Alias"}
	AliasRemark    = []string{"remark", "Remark"}
	AliasNickName  = []string{"nick_name", "NickName"}
	AliasLocalType = []string{"local_type", "Reserved1"}
	AliasBigHead   = []string{"big_head_url", "BigHeadImgUrl"}
	AliasSmallHead = []string{"small_head_url", "SmallHeadImgUrl"}
)

// ContactFromRow 归一化联系人行
// local_type 3 表示仅群聊成员，不是好友
func ContactFromRow(row RowKV) *Contact {
	localType, hasType := row.Int64(AliasLocalType...)
	return &Contact{
		UserName:     row.String(AliasUserName...),
		Alias:        row.String(AliasAliasName...),
		Remark:       row.String(AliasRemark...),
		NickName:     row.String(AliasNickName...),
		IsFriend:     !hasType || localType != 3,
		BigHeadURL:   row.String(AliasBigHead...),
		SmallHeadURL: row.String(AliasSmallHead...),
	}
}

func (c *Contact) DisplayName() string {
	switch {
	case c.Remark != "":
		return c.Remark
	case c.NickName != "":
		return c.NickName
	}
	return ""
}

// AvatarURL 返回可用的头像地址，大图优先
// 已知坏数据：含 NUL 字节或非绝对地址的 URL 当作没有
func (c *Contact) AvatarURL() string {
	for _, u := range []string{c.BigHeadURL, c.SmallHeadURL} {
		if ValidAvatarURL(u) {
			return u
		}
	}
	return ""
}

func ValidAvatarURL(u string) bool {
	if u == "" || strings.ContainsRune(u, 0) {
		return false
	}
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}
