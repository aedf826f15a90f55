package media

import (
	"context"
	goerrors "errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/sjzar/chatview/internal/errors"
	"github.com/sjzar/chatview/internal/model"
	"github.com/sjzar/chatview/pkg/util"
	"github.com/sjzar/chatview/pkg/util/dat2img"
)

// ImageOptions 图片请求选项
type ImageOptions struct {
	Force      bool // 跳过缓存重新解密
	Thumb      bool // 接受缩略图
	CachedOnly bool // 只查缓存，未命中立即返回
}

type inflightImage struct {
	done chan struct{}
	path string
	err  error
}

// imagePipeline 图片解密管线
// 同一个输出键的并发请求合并为一次解密，后到的等结果
type imagePipeline struct {
	s *Service

	mu       sync.Mutex
	inflight map[string]*inflightImage
	runs     atomic.Int64 // 实际执行的解密次数

	// 文件系统兜底检索的并发上限
	walkers chan struct{}
}

func newImagePipeline(s *Service) *imagePipeline {
	return &imagePipeline{
		s:        s,
		inflight: make(map[string]*inflightImage),
		walkers:  make(chan struct{}, 2),
	}
}

// Runs 返回已执行的解密次数
func (ip *imagePipeline) Runs() int64 {
	return ip.runs.Load()
}

// GetImage 按键取解密后的图片文件路径
// key 可以是内容哈希，也可以是存储目录下的相对路径
func (s *Service) GetImage(ctx context.Context, key string, opts ImageOptions) (string, error) {
	if key == "" {
		return "", errors.ErrKeyEmpty
	}
	return s.images.get(ctx, key, opts)
}

func (ip *imagePipeline) get(ctx context.Context, key string, opts ImageOptions) (string, error) {
	normKey := model.NormalizeMediaName(key)

	if !opts.Force {
		if entry, ok := ip.s.index.Get(normKey); ok {
			if _, err := os.Stat(entry.Path); err == nil {
				if entry.IsThumb {
					// 先把缩略图给出去，后台确认高清是否可补
					go ip.checkHDAvailable(normKey)
				}
				return entry.Path, nil
			}
		}
	}

	if opts.CachedOnly {
		return "", errors.ErrMediaNotFound
	}

	src, err := ip.resolveSource(ctx, key, normKey, opts.Thumb)
	if err != nil {
		return "", err
	}

	return ip.decryptOnce(src, normKey)
}

// decryptOnce 合并同源的并发解密
func (ip *imagePipeline) decryptOnce(src imageSource, normKey string) (string, error) {
	flightKey := src.abs

	ip.mu.Lock()
	if call, ok := ip.inflight[flightKey]; ok {
		ip.mu.Unlock()
		<-call.done
		return call.path, call.err
	}
	call := &inflightImage{done: make(chan struct{})}
	ip.inflight[flightKey] = call
	ip.mu.Unlock()

	call.path, call.err = ip.decrypt(src, normKey)
	close(call.done)

	ip.mu.Lock()
	delete(ip.inflight, flightKey)
	ip.mu.Unlock()

	return call.path, call.err
}

func (ip *imagePipeline) decrypt(src imageSource, normKey string) (string, error) {
	ip.runs.Add(1)

	raw, err := os.ReadFile(src.abs)
	if err != nil {
		return "", errors.ErrMediaNotFound
	}

	out, ext, derr := dat2img.Dat2Image(raw)
	if derr != nil {
		return "", errors.ImageFormatInvalid(normKey, derr)
	}

	name := normKey
	if src.isThumb {
		name += "_t"
	}
	outDir := filepath.Join(ip.s.ctx.ImageDir(), filepath.Dir(src.rel))
	if err := util.PrepareDir(outDir); err != nil {
		return "", errors.Internal("prepare image dir failed", err)
	}

	if ext == "wxgf" {
		// 原始流先落盘，转码器就位后不用重新解密
		cached := filepath.Join(outDir, name+".wxgf")
		if werr := os.WriteFile(cached, out, 0644); werr != nil {
			log.Debug().Msgf("缓存原始流失败: %v", werr)
		}
		img, wext, werr := dat2img.Wxgf2Image(out)
		if werr != nil {
			if goerrors.Is(werr, dat2img.ErrNeedConverter) {
				return "", errors.ConverterRequired(normKey)
			}
			return "", errors.ImageFormatInvalid(normKey, werr)
		}
		out, ext = img, wext
	}

	outPath := filepath.Join(outDir, name+"."+ext)
	if err := os.WriteFile(outPath, out, 0644); err != nil {
		return "", errors.Internal("write image failed", err)
	}

	ip.s.index.Put(normKey, outPath, src.isThumb)
	return outPath, nil
}

// checkHDAvailable 缩略图命中后的后台检查，确认高清源存在就发升级通知
func (ip *imagePipeline) checkHDAvailable(normKey string) {
	if ip.s.index.NeedsUpgrade(normKey) {
		return
	}
	if !util.IsContentHash(normKey) {
		return
	}

	media, err := ip.s.db.GetMedia(context.Background(), "image", normKey)
	if err != nil || media.IsThumb {
		return
	}
	abs := filepath.Join(ip.s.ctx.DataDir, media.Path)
	if _, err := os.Stat(abs); err != nil {
		return
	}
	ip.s.index.NotifyHDAvailable(normKey)
}

// imageSource 待解密的源文件
type imageSource struct {
	abs     string
	rel     string
	isThumb bool
}

// resolveSource 定位源文件
// 相对路径直接按质量后缀试探；内容哈希走硬链接表，落空后兜底扫目录
func (ip *imagePipeline) resolveSource(ctx context.Context, key, normKey string, allowThumb bool) (imageSource, error) {
	if strings.ContainsAny(key, "/\\") {
		return ip.resolveByPath(key, allowThumb)
	}

	if !util.IsContentHash(normKey) {
		return imageSource{}, errors.InvalidArg("key")
	}

	media, err := ip.s.db.GetMedia(ctx, "image", normKey)
	if err == nil {
		if media.IsThumb && !allowThumb {
			return imageSource{}, errors.ErrNoHDAvailable
		}
		abs := filepath.Join(ip.s.ctx.DataDir, media.Path)
		if _, serr := os.Stat(abs); serr == nil {
			return imageSource{abs: abs, rel: media.Path, isThumb: media.IsThumb}, nil
		}
	}

	return ip.resolveByWalk(ctx, normKey, allowThumb)
}

func (ip *imagePipeline) resolveByPath(key string, allowThumb bool) (imageSource, error) {
	rel := filepath.Clean(strings.ReplaceAll(key, "\\", "/"))
	if strings.HasPrefix(rel, "..") {
		return imageSource{}, errors.InvalidArg("key")
	}

	abs := filepath.Join(ip.s.ctx.DataDir, rel)
	if _, err := os.Stat(abs); err == nil {
		return imageSource{abs: abs, rel: rel, isThumb: model.IsThumbName(rel)}, nil
	}

	suffixes := []string{"_h.dat", ".dat"}
	if allowThumb {
		suffixes = append(suffixes, "_t.dat")
	}
	for _, suffix := range suffixes {
		if _, err := os.Stat(abs + suffix); err == nil {
			return imageSource{abs: abs + suffix, rel: rel + suffix, isThumb: strings.HasSuffix(suffix, "_t.dat")}, nil
		}
	}
	if !allowThumb {
		if _, err := os.Stat(abs + "_t.dat"); err == nil {
			return imageSource{}, errors.ErrNoHDAvailable
		}
	}
	return imageSource{}, errors.ErrMediaNotFound
}

// resolveByWalk 硬链接表没有记录时的兜底，工作协程限流下有界深度扫描
func (ip *imagePipeline) resolveByWalk(ctx context.Context, normKey string, allowThumb bool) (imageSource, error) {
	select {
	case ip.walkers <- struct{}{}:
	case <-ctx.Done():
		return imageSource{}, ctx.Err()
	}

	type result struct {
		path string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() { <-ip.walkers }()
		root := filepath.Join(ip.s.ctx.DataDir, "msg", "attach")
		path, err := util.FindFileWithDepth(root, func(base string) bool {
			return model.NormalizeMediaName(base) == normKey
		}, 3)
		ch <- result{path, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return imageSource{}, errors.ErrMediaNotFound
		}
		isThumb := model.IsThumbName(r.path)
		if isThumb && !allowThumb {
			return imageSource{}, errors.ErrNoHDAvailable
		}
		rel, err := filepath.Rel(ip.s.ctx.DataDir, r.path)
		if err != nil {
			rel = filepath.Base(r.path)
		}
		return imageSource{abs: r.path, rel: rel, isThumb: isThumb}, nil
	case <-ctx.Done():
		return imageSource{}, ctx.Err()
	}
}
