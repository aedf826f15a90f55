package media

import (
	"context"
	"encoding/hex"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/sjzar/chatview/internal/chatview/ctx"
	"github.com/sjzar/chatview/internal/chatview/database"
	"github.com/sjzar/chatview/internal/errors"
	"github.com/sjzar/chatview/pkg/util/dat2img"
)

// Service 媒体服务：图片解密、语音还原、转写
type Service struct {
	ctx *ctx.Context
	db  *database.Service

	index       *PathIndex
	images      *imagePipeline
	voices      *voicePipeline
	transcriber *Transcriber
}

func NewService(appCtx *ctx.Context, db *database.Service) *Service {
	s := &Service{
		ctx: appCtx,
		db:  db,
	}
	s.index = NewPathIndex(appCtx.ImageDir(), legacyImageDirs(appCtx)...)
	s.images = newImagePipeline(s)
	s.voices = newVoicePipeline(s)
	s.transcriber = NewTranscriber(appCtx.RecognizerCmd, appCtx.RecognizerTimeout)
	return s
}

func (s *Service) Start() error {
	if s.ctx.ImgKey != "" {
		key, err := hex.DecodeString(s.ctx.ImgKey)
		if err != nil || len(key) != 16 {
			return errors.ImageKeyRequired()
		}
		dat2img.SetAesKey(key)

		// 拿存储目录里的真实容器校验密钥，扫描慢，放后台
		go func() {
			if v := dat2img.NewImgKeyValidator(s.ctx.DataDir); v != nil && !v.Validate(key) {
				log.Warn().Msg("配置的图片密钥解不开采样容器，高版本图片可能无法解密")
			}
			if k, ok := dat2img.ScanXorKey(s.ctx.DataDir); ok && k != dat2img.XorKey {
				log.Debug().Msgf("从缩略图推断出异或密钥: %#x", k)
				dat2img.XorKey = k
			}
		}()
	}
	if s.ctx.ConverterPath != "" {
		dat2img.FFmpegMode = true
		dat2img.FFMpegPath = s.ctx.ConverterPath
	}
	if s.ctx.ConverterTimeout > 0 {
		dat2img.ConvertTimeout = s.ctx.ConverterTimeout
	}

	// 路径索引异步预热，首次请求不等它
	go s.index.Build()
	return nil
}

func (s *Service) Stop() error {
	s.transcriber.Close()
	return nil
}

// Index 暴露给 HTTP 层订阅高清可用通知
func (s *Service) Index() *PathIndex {
	return s.index
}

// Transcriber 暴露给 HTTP 层订阅阶段性识别结果
func (s *Service) Transcriber() *Transcriber {
	return s.transcriber
}

// TranscribeVoice 先保证 WAV 落盘，再交给识别器
func (s *Service) TranscribeVoice(ctx context.Context, session string, keys []string, createTime int64) (string, error) {
	if text, ok := s.transcriber.Cached(session, createTime); ok {
		return text, nil
	}

	req := &VoiceRequest{Session: session, Keys: keys, CreateTime: createTime, Format: "wav"}
	if _, err := s.GetVoice(ctx, req); err != nil {
		return "", err
	}
	wavPath := filepath.Join(s.ctx.VoiceDir(), req.cacheKey())
	return s.transcriber.Transcribe(ctx, session, createTime, wavPath)
}

// ClearCaches 清空媒体侧缓存
func (s *Service) ClearCaches(path, voice, transcript bool) {
	if path {
		s.index.Clear()
		go s.index.Build()
	}
	if voice {
		s.voices.Clear()
	}
	if transcript {
		s.transcriber.Clear()
	}
	log.Debug().Msgf("媒体缓存已清理 path=%v voice=%v transcript=%v", path, voice, transcript)
}
