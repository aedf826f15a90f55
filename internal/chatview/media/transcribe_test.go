package media

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/sjzar/chatview/internal/errors"
)

// writeRecognizer 生成一个假识别器脚本，按行输出阶段性结果
func writeRecognizer(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell recognizer fixture")
	}
	path := filepath.Join(t.TempDir(), "recognizer.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTranscribeNotConfigured(t *testing.T) {
	tr := NewTranscriber("", time.Second)
	defer tr.Close()

	_, err := tr.Transcribe(context.Background(), "friend", 1000, "/tmp/a.wav")
	if !errors.Is(err, errors.ErrTypeConfig) {
		t.Errorf("err = %v", err)
	}
}

func TestTranscribeFinalLine(t *testing.T) {
	script := writeRecognizer(t, "echo 处理中\necho 你好世界\n")
	tr := NewTranscriber(script, 5*time.Second)
	defer tr.Close()

	text, err := tr.Transcribe(context.Background(), "friend", 1000, "/dev/null")
	if err != nil {
		t.Fatal(err)
	}
	// 最后一行是终稿
	if text != "你好世界" {
		t.Errorf("text = %q", text)
	}

	if cached, ok := tr.Cached("friend", 1000); !ok || cached != "你好世界" {
		t.Errorf("cached = %q, %v", cached, ok)
	}
	if _, ok := tr.Cached("friend", 2000); ok {
		t.Errorf("unrelated key cached")
	}
}

func TestTranscribePartials(t *testing.T) {
	script := writeRecognizer(t, "echo one\necho two\necho three\n")
	tr := NewTranscriber(script, 5*time.Second)
	defer tr.Close()

	ch, unsubscribe := tr.Subscribe("friend", 1000)
	defer unsubscribe()

	if _, err := tr.Transcribe(context.Background(), "friend", 1000, "/dev/null"); err != nil {
		t.Fatal(err)
	}

	want := []string{"one", "two", "three"}
	for _, w := range want {
		select {
		case got := <-ch:
			if got != w {
				t.Errorf("partial = %q, want %q", got, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("partial %q not delivered", w)
		}
	}
}

func TestTranscribeEmptyOutput(t *testing.T) {
	script := writeRecognizer(t, "true\n")
	tr := NewTranscriber(script, 5*time.Second)
	defer tr.Close()

	_, err := tr.Transcribe(context.Background(), "friend", 1000, "/dev/null")
	if !errors.Is(err, errors.ErrTypeExternalTool) {
		t.Errorf("err = %v", err)
	}
}

func TestTranscribeOversizedLine(t *testing.T) {
	// 单行超出扫描缓冲视为读取失败，不能把上一行当终稿，也不该等到超时
	script := writeRecognizer(t, "echo 部分结果\nhead -c 2097152 /dev/zero | tr '\\0' 'a'\n")
	tr := NewTranscriber(script, 5*time.Second)
	defer tr.Close()

	start := time.Now()
	_, err := tr.Transcribe(context.Background(), "friend", 1000, "/dev/null")
	if !errors.Is(err, errors.ErrTypeExternalTool) {
		t.Errorf("err = %v", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Errorf("read failure waited for the timeout")
	}
	if _, ok := tr.Cached("friend", 1000); ok {
		t.Errorf("failed transcription cached")
	}
}

func TestTranscribeTimeout(t *testing.T) {
	script := writeRecognizer(t, "sleep 5\necho late\n")
	tr := NewTranscriber(script, 100*time.Millisecond)
	defer tr.Close()

	_, err := tr.Transcribe(context.Background(), "friend", 1000, "/dev/null")
	if !errors.Is(err, errors.ErrTypeExternalTool) {
		t.Errorf("err = %v", err)
	}
}

func TestTranscribeKeyStable(t *testing.T) {
	a := TranscribeKey("friend", 1000)
	if b := TranscribeKey("friend", 1000); a != b {
		t.Errorf("key unstable: %d != %d", a, b)
	}
	if b := TranscribeKey("friend", 1001); a == b {
		t.Errorf("distinct voices share a key")
	}
}
