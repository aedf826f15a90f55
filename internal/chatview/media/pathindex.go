package media

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/sjzar/chatview/internal/chatview/ctx"
	"github.com/sjzar/chatview/internal/model"
	"github.com/sjzar/chatview/pkg/util"
)

// legacyImageDirs 旧版本曾把解密产物写在别的目录，索引时一并扫
func legacyImageDirs(appCtx *ctx.Context) []string {
	return []string{
		filepath.Join(appCtx.WorkDir, "dat2img"),
		filepath.Join(appCtx.WorkDir, "cache", "image"),
	}
}

type indexEntry struct {
	Path    string
	IsThumb bool
}

// PathIndex 已解密图片的路径索引
// 同一个键同时有原图和缩略图时原图优先；缩略图命中会打上待升级标记，
// 后台确认高清可用后通知订阅者，每个键只通知一次
type PathIndex struct {
	root    string
	legacy  []string
	mu      sync.RWMutex
	entries map[string]indexEntry
	pending map[string]bool // 已发过高清可用通知的键

	subMu       sync.Mutex
	subscribers []chan string
}

func NewPathIndex(root string, legacy ...string) *PathIndex {
	return &PathIndex{
		root:    root,
		legacy:  legacy,
		entries: make(map[string]indexEntry),
		pending: make(map[string]bool),
	}
}

// Build 扫描全部缓存根目录重建索引，可重复调用
func (p *PathIndex) Build() {
	roots := append([]string{p.root}, p.legacy...)
	count := 0
	for _, root := range roots {
		if _, err := os.Stat(root); err != nil {
			continue
		}
		filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if p.add(path) {
				count++
			}
			return nil
		})
	}
	log.Debug().Msgf("图片路径索引构建完成: %d", count)
}

// add 把一个落盘文件收进索引，原图覆盖缩略图，反向不覆盖
func (p *PathIndex) add(path string) bool {
	key := model.NormalizeMediaName(path)
	if !util.IsContentHash(key) {
		return false
	}
	isThumb := model.IsThumbName(path)

	p.mu.Lock()
	defer p.mu.Unlock()
	if old, ok := p.entries[key]; ok {
		if old.IsThumb == isThumb || !old.IsThumb {
			return false
		}
	}
	p.entries[key] = indexEntry{Path: path, IsThumb: isThumb}
	return true
}

func (p *PathIndex) Get(key string) (indexEntry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	entry, ok := p.entries[key]
	return entry, ok
}

// Put 记录一次新的落盘产物；写入原图时清掉待升级标记
func (p *PathIndex) Put(key string, path string, isThumb bool) {
	p.mu.Lock()
	if old, ok := p.entries[key]; !ok || old.IsThumb || !isThumb {
		p.entries[key] = indexEntry{Path: path, IsThumb: isThumb}
	}
	if !isThumb {
		delete(p.pending, key)
	}
	p.mu.Unlock()
}

// NotifyHDAvailable 高清源确认可用，给每个键发一次升级通知
func (p *PathIndex) NotifyHDAvailable(key string) {
	p.mu.Lock()
	if p.pending[key] {
		p.mu.Unlock()
		return
	}
	p.pending[key] = true
	p.mu.Unlock()

	p.subMu.Lock()
	for _, sub := range p.subscribers {
		select {
		case sub <- key:
		default:
			// 订阅者消费不过来就丢，不阻塞解密路径
		}
	}
	p.subMu.Unlock()
}

// NeedsUpgrade 键是否有已知的高清升级待处理
func (p *PathIndex) NeedsUpgrade(key string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pending[key]
}

// Subscribe 订阅高清可用通知，用完要调 unsubscribe
func (p *PathIndex) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 16)
	p.subMu.Lock()
	p.subscribers = append(p.subscribers, ch)
	p.subMu.Unlock()

	unsubscribe := func() {
		p.subMu.Lock()
		for i, sub := range p.subscribers {
			if sub == ch {
				p.subscribers = append(p.subscribers[:i], p.subscribers[i+1:]...)
				break
			}
		}
		p.subMu.Unlock()
	}
	return ch, unsubscribe
}

func (p *PathIndex) Clear() {
	p.mu.Lock()
	p.entries = make(map[string]indexEntry)
	p.pending = make(map[string]bool)
	p.mu.Unlock()
}
