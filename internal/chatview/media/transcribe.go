package media

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"

	"github.com/sjzar/chatview/internal/errors"
)

type transcribeCall struct {
	done chan struct{}
	text string
	err  error
}

// Transcriber 语音转写桥
// 识别器是一条外部命令，吃 WAV 文件路径，按行往 stdout 吐识别结果，
// 最后一行当作终稿。同一条语音的并发请求合并为一次识别
type Transcriber struct {
	cmd     string
	timeout time.Duration

	baseCtx context.Context
	cancel  context.CancelFunc

	mu       sync.Mutex
	results  map[uint64]string
	inflight map[uint64]*transcribeCall

	subMu sync.Mutex
	subs  map[uint64][]chan string
}

func NewTranscriber(cmd string, timeout time.Duration) *Transcriber {
	baseCtx, cancel := context.WithCancel(context.Background())
	return &Transcriber{
		cmd:      cmd,
		timeout:  timeout,
		baseCtx:  baseCtx,
		cancel:   cancel,
		results:  make(map[uint64]string),
		inflight: make(map[uint64]*transcribeCall),
		subs:     make(map[uint64][]chan string),
	}
}

// TranscribeKey 语音在转写缓存里的键
func TranscribeKey(session string, createTime int64) uint64 {
	return xxhash.Sum64String(fmt.Sprintf("%s/%d", session, createTime))
}

// Transcribe 返回一条语音的转写文本，缓存命中直接返回
func (t *Transcriber) Transcribe(ctx context.Context, session string, createTime int64, wavPath string) (string, error) {
	if t.cmd == "" {
		return "", errors.RecognizerNotConfigured()
	}
	key := TranscribeKey(session, createTime)

	t.mu.Lock()
	if text, ok := t.results[key]; ok {
		t.mu.Unlock()
		return text, nil
	}
	if call, ok := t.inflight[key]; ok {
		t.mu.Unlock()
		select {
		case <-call.done:
			return call.text, call.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	call := &transcribeCall{done: make(chan struct{})}
	t.inflight[key] = call
	t.mu.Unlock()

	call.text, call.err = t.run(key, wavPath)
	close(call.done)

	t.mu.Lock()
	delete(t.inflight, key)
	if call.err == nil {
		t.results[key] = call.text
	}
	t.mu.Unlock()

	return call.text, call.err
}

func (t *Transcriber) run(key uint64, wavPath string) (string, error) {
	runCtx, cancel := context.WithTimeout(t.baseCtx, t.timeout)
	defer cancel()

	args := strings.Fields(t.cmd)
	args = append(args, wavPath)
	cmd := exec.CommandContext(runCtx, args[0], args[1:]...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", errors.TranscribeFailed(err)
	}
	if err := cmd.Start(); err != nil {
		return "", errors.TranscribeFailed(err)
	}

	var final string
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		final = line
		t.publish(key, line)
	}

	// 读取中断时不能把最后一行部分结果当终稿
	if serr := scanner.Err(); serr != nil {
		cancel()
		cmd.Wait()
		return "", errors.TranscribeFailed(serr)
	}

	if err := cmd.Wait(); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return "", errors.TranscribeFailed(runCtx.Err())
		}
		return "", errors.TranscribeFailed(err)
	}
	if final == "" {
		return "", errors.TranscribeFailed(fmt.Errorf("recognizer produced no output"))
	}
	return final, nil
}

// publish 把阶段性识别结果发给订阅者，消费不过来就丢
func (t *Transcriber) publish(key uint64, line string) {
	t.subMu.Lock()
	for _, sub := range t.subs[key] {
		select {
		case sub <- line:
		default:
		}
	}
	t.subMu.Unlock()
}

// Subscribe 订阅一条语音的阶段性识别结果，用完要调 unsubscribe
func (t *Transcriber) Subscribe(session string, createTime int64) (<-chan string, func()) {
	key := TranscribeKey(session, createTime)
	ch := make(chan string, 16)

	t.subMu.Lock()
	t.subs[key] = append(t.subs[key], ch)
	t.subMu.Unlock()

	unsubscribe := func() {
		t.subMu.Lock()
		subs := t.subs[key]
		for i, sub := range subs {
			if sub == ch {
				t.subs[key] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		if len(t.subs[key]) == 0 {
			delete(t.subs, key)
		}
		t.subMu.Unlock()
	}
	return ch, unsubscribe
}

// Cached 只查缓存，不触发识别
func (t *Transcriber) Cached(session string, createTime int64) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	text, ok := t.results[TranscribeKey(session, createTime)]
	return text, ok
}

func (t *Transcriber) Clear() {
	t.mu.Lock()
	t.results = make(map[uint64]string)
	t.mu.Unlock()
	log.Debug().Msg("转写缓存已清理")
}

// Close 取消所有在跑的识别进程
func (t *Transcriber) Close() {
	t.cancel()
}
