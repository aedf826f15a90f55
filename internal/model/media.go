package model

import (
	"path/filepath"
	"strings"

	"github.com/sjzar/chatview/pkg/util"
)

type Media struct {
	Type       string `json:"type"` // image, video, voice, file
	Key        string `json:"key"`  // 内容哈希
	Path       string `json:"path"` // 数据目录下的相对路径
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	Data       []byte `json:"data,omitempty"` // 语音数据直接入库，没有落盘文件
	ModifyTime int64  `json:"modifyTime"`
	IsThumb    bool   `json:"isThumb,omitempty"`
}

// MediaRow 硬链接表行，目录以序号引用，需先经 dir2id 表还原目录名
type MediaRow struct {
	Type       string
	Key        string
	Dir1       string
	Dir2       string
	Name       string
	Size       int64
	ModifyTime int64
}

func (m *MediaRow) Wrap() *Media {

	var path string
	switch m.Type {
	case "image":
		path = filepath.Join("msg", "attach", m.Dir1, m.Dir2, "Img", m.Name)
	case "video":
		path = filepath.Join("msg", "video", m.Dir1, m.Name)
	case "file":
		path = filepath.Join("msg", "file", m.Dir1, m.Name)
	}

	return &Media{
		Type:       m.Type,
		Key:        m.Key,
		Path:       path,
		Name:       m.Name,
		Size:       m.Size,
		ModifyTime: m.ModifyTime,
		IsThumb:    IsThumbName(m.Name),
	}
}

// IsThumbName 缩略图文件名带 _t 后缀
func IsThumbName(name string) bool {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return strings.HasSuffix(base, "_t")
}

// NormalizeMediaName 去掉质量后缀，得到纯内容哈希键
func NormalizeMediaName(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(filepath.Base(name)))
	for _, suffix := range []string{"_t", "_h", "_hd", "_m"} {
		if trimmed := strings.TrimSuffix(base, suffix); trimmed != base && util.IsContentHash(trimmed) {
			return trimmed
		}
	}
	return base
}

// AcceptMediaName 判断硬链接候选文件名是否可信
// 名字要么带已知质量后缀，要么本身就是内容哈希
func AcceptMediaName(name string) bool {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(filepath.Base(name)))
	if util.IsContentHash(base) {
		return true
	}
	for _, suffix := range []string{"_t", "_h", "_hd", "_m"} {
		if trimmed := strings.TrimSuffix(base, suffix); trimmed != base && util.IsContentHash(trimmed) {
			return true
		}
	}
	return false
}
