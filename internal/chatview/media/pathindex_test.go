package media

import (
	"fmt"
	"testing"
)

const idxHash = "0123456789abcdef0123456789abcdef"

func TestPathIndexAddPrecedence(t *testing.T) {
	p := NewPathIndex(t.TempDir())

	if !p.add("/cache/" + idxHash + "_t.jpg") {
		t.Fatalf("thumb not indexed")
	}
	// 原图覆盖缩略图
	if !p.add("/cache/" + idxHash + ".jpg") {
		t.Fatalf("full image did not replace thumb")
	}
	// 反向不覆盖
	if p.add("/cache/" + idxHash + "_t.jpg") {
		t.Errorf("thumb replaced full image")
	}

	entry, ok := p.Get(idxHash)
	if !ok || entry.IsThumb {
		t.Errorf("entry = %+v, %v", entry, ok)
	}
}

func TestPathIndexRejectsJunk(t *testing.T) {
	p := NewPathIndex(t.TempDir())
	if p.add("/cache/thumbnail_t.jpg") {
		t.Errorf("non-hash name indexed")
	}
	if p.add("/cache/.DS_Store") {
		t.Errorf("junk file indexed")
	}
}

func TestPathIndexPutClearsPending(t *testing.T) {
	p := NewPathIndex(t.TempDir())

	p.NotifyHDAvailable(idxHash)
	if !p.NeedsUpgrade(idxHash) {
		t.Fatalf("pending not set")
	}

	// 缩略图写入不清标记
	p.Put(idxHash, "/cache/"+idxHash+"_t.jpg", true)
	if !p.NeedsUpgrade(idxHash) {
		t.Errorf("thumb write cleared pending")
	}

	// 原图写入清掉标记
	p.Put(idxHash, "/cache/"+idxHash+".jpg", false)
	if p.NeedsUpgrade(idxHash) {
		t.Errorf("pending survived full image write")
	}
}

func TestPathIndexNotifyOnce(t *testing.T) {
	p := NewPathIndex(t.TempDir())
	ch, unsubscribe := p.Subscribe()
	defer unsubscribe()

	p.NotifyHDAvailable(idxHash)
	p.NotifyHDAvailable(idxHash)

	if got := <-ch; got != idxHash {
		t.Fatalf("notification = %q", got)
	}
	select {
	case got := <-ch:
		t.Errorf("duplicate notification %q", got)
	default:
	}
}

func TestPathIndexNotifyNonBlocking(t *testing.T) {
	p := NewPathIndex(t.TempDir())
	_, unsubscribe := p.Subscribe() // 没人消费
	defer unsubscribe()

	// 超出订阅通道容量也不能阻塞通知方
	for i := 0; i < 32; i++ {
		p.NotifyHDAvailable(fmt.Sprintf("%032x", i))
	}
}

func TestPathIndexUnsubscribe(t *testing.T) {
	p := NewPathIndex(t.TempDir())

	_, stop1 := p.Subscribe()
	ch2, stop2 := p.Subscribe()
	defer stop2()

	stop1()
	p.subMu.Lock()
	n := len(p.subscribers)
	p.subMu.Unlock()
	if n != 1 {
		t.Fatalf("subscribers = %d, want 1", n)
	}

	// 退订后剩下的订阅者照常收通知
	p.NotifyHDAvailable(idxHash)
	select {
	case got := <-ch2:
		if got != idxHash {
			t.Errorf("notification = %q", got)
		}
	default:
		t.Errorf("surviving subscriber missed notification")
	}

	// 重复退订无害
	stop1()
	p.subMu.Lock()
	n = len(p.subscribers)
	p.subMu.Unlock()
	if n != 1 {
		t.Errorf("subscribers = %d after double unsubscribe", n)
	}
}
