package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/sjzar/chatview/internal/errors"
	"github.com/sjzar/chatview/pkg/util"
	"github.com/sjzar/chatview/pkg/util/silk"
)

const voiceMemCacheSize = 64

// VoiceRequest 定位一条语音需要的全部线索
type VoiceRequest struct {
	Session    string
	Keys       []string // 服务端消息 ID 等候选键
	CreateTime int64    // 消息时间戳，秒
	Format     string   // wav 或 mp3
}

func (r *VoiceRequest) cacheKey() string {
	return fmt.Sprintf("%s/%d.%s", r.Session, r.CreateTime, r.format())
}

func (r *VoiceRequest) format() string {
	if strings.EqualFold(r.Format, "mp3") {
		return "mp3"
	}
	return "wav"
}

// voicePipeline 语音还原管线
// 内存里留一小圈最近的结果，文件缓存按会话落在工作目录下
type voicePipeline struct {
	s *Service

	mu    sync.Mutex
	cache map[string][]byte
	order []string // FIFO 淘汰
}

func newVoicePipeline(s *Service) *voicePipeline {
	return &voicePipeline{
		s:     s,
		cache: make(map[string][]byte),
	}
}

// GetVoice 取解码后的语音数据
func (s *Service) GetVoice(ctx context.Context, req *VoiceRequest) ([]byte, error) {
	if req.Session == "" {
		return nil, errors.ErrSessionEmpty
	}
	if len(req.Keys) == 0 && req.CreateTime == 0 {
		return nil, errors.ErrKeyEmpty
	}
	return s.voices.get(ctx, req)
}

func (vp *voicePipeline) get(ctx context.Context, req *VoiceRequest) ([]byte, error) {
	cacheKey := req.cacheKey()

	vp.mu.Lock()
	if data, ok := vp.cache[cacheKey]; ok {
		vp.mu.Unlock()
		return data, nil
	}
	vp.mu.Unlock()

	filePath := filepath.Join(vp.s.ctx.VoiceDir(), cacheKey)
	if data, err := os.ReadFile(filePath); err == nil && len(data) > 0 {
		vp.put(cacheKey, data)
		return data, nil
	}

	// 会话和自己的 ID 都是身份候选，带身份表的分片先按身份检索
	identities := []string{req.Session}
	if self := vp.s.ctx.SelfID; self != "" {
		identities = append(identities, self)
	}
	blobs, err := vp.s.db.GetVoice(ctx, identities, req.Keys, req.CreateTime)
	if err != nil {
		return nil, err
	}

	// 候选按匹配可信度排好序，取第一条能解出来的
	var out []byte
	var lastErr error
	for _, blob := range blobs {
		if req.format() == "mp3" {
			out, lastErr = silk.Silk2MP3(blob)
		} else {
			out, lastErr = silk.Silk2WAV(blob)
		}
		if lastErr == nil {
			break
		}
		out = nil
	}
	if out == nil {
		if lastErr != nil {
			return nil, errors.VoiceDecodeFailed(lastErr)
		}
		return nil, errors.ErrVoiceNotFound
	}

	vp.put(cacheKey, out)
	if err := util.PrepareDir(filepath.Dir(filePath)); err == nil {
		if werr := os.WriteFile(filePath, out, 0644); werr != nil {
			log.Debug().Msgf("语音缓存写入失败: %v", werr)
		}
	}
	return out, nil
}

func (vp *voicePipeline) put(key string, data []byte) {
	vp.mu.Lock()
	defer vp.mu.Unlock()
	if _, ok := vp.cache[key]; ok {
		return
	}
	vp.cache[key] = data
	vp.order = append(vp.order, key)
	for len(vp.order) > voiceMemCacheSize {
		evict := vp.order[0]
		vp.order = vp.order[1:]
		delete(vp.cache, evict)
	}
}

func (vp *voicePipeline) Clear() {
	vp.mu.Lock()
	vp.cache = make(map[string][]byte)
	vp.order = nil
	vp.mu.Unlock()
}
