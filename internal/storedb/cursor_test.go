package storedb

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sjzar/chatview/internal/errors"
	"github.com/sjzar/chatview/internal/storedb/datasource"
)

const cursorTalker = "wxid_cursor"

// seedMessageDir 建一个只有消息分片的数据目录，塞 count 条顺序消息
func seedMessageDir(t *testing.T, count int) string {
	t.Helper()
	dir := t.TempDir()

	db, err := sql.Open("sqlite3", filepath.Join(dir, "message_0.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	sum := md5.Sum([]byte(cursorTalker))
	table := "Msg_" + hex.EncodeToString(sum[:])

	stmts := []string{
		`CREATE TABLE Timestamp (timestamp INTEGER)`,
		`INSERT INTO Timestamp VALUES (1)`,
		`CREATE TABLE Name2Id (user_name TEXT)`,
		`INSERT INTO Name2Id VALUES ('wxid_self'), ('` + cursorTalker + `')`,
		`CREATE TABLE ` + table + ` (
			sort_seq INTEGER, server_id INTEGER, local_type INTEGER,
			real_sender_id INTEGER, create_time INTEGER, status INTEGER,
			message_content TEXT)`,
	}
	for i := 1; i <= count; i++ {
		stmts = append(stmts, fmt.Sprintf(
			`INSERT INTO `+table+` VALUES (%d, %d, 1, 2, %d, 4, 'msg %d')`,
			i*10, 100+i, 1000+i, i))
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
	return dir
}

func newTestCursorManager(t *testing.T, count int) *CursorManager {
	t.Helper()
	ds, err := datasource.New(seedMessageDir(t, count), "wxid_self")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ds.Close() })
	return NewCursorManager(ds)
}

func TestFetchPageSequential(t *testing.T) {
	m := newTestCursorManager(t, 10)
	ctx := context.Background()
	start, end := time.Unix(0, 0), time.Now()

	var got []int64
	offset := 0
	for {
		batch, hasMore, err := m.FetchPage(ctx, cursorTalker, offset, 3, start, end, true)
		if err != nil {
			t.Fatal(err)
		}
		for _, msg := range batch {
			got = append(got, msg.Seq)
		}
		offset += len(batch)
		if !hasMore {
			break
		}
	}

	if len(got) != 10 {
		t.Fatalf("total = %d, want 10", len(got))
	}
	for i, seq := range got {
		if seq != int64((i+1)*10) {
			t.Fatalf("page walk out of order at %d: %v", i, got)
		}
	}
}

func TestFetchPageDescending(t *testing.T) {
	m := newTestCursorManager(t, 5)
	ctx := context.Background()
	start, end := time.Unix(0, 0), time.Now()

	// 倒序游标先给最新的页，批内仍升序
	batch, hasMore, err := m.FetchPage(ctx, cursorTalker, 0, 2, start, end, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != 2 || batch[0].Seq != 40 || batch[1].Seq != 50 {
		t.Errorf("first page = %d,%d want 40,50", batch[0].Seq, batch[1].Seq)
	}
	if !hasMore {
		t.Errorf("hasMore = false")
	}

	batch, _, err = m.FetchPage(ctx, cursorTalker, 2, 2, start, end, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != 2 || batch[0].Seq != 20 || batch[1].Seq != 30 {
		t.Errorf("second page = %d,%d want 20,30", batch[0].Seq, batch[1].Seq)
	}
}

func TestFetchPageRebuild(t *testing.T) {
	m := newTestCursorManager(t, 6)
	ctx := context.Background()
	start, end := time.Unix(0, 0), time.Now()

	if _, _, err := m.FetchPage(ctx, cursorTalker, 0, 2, start, end, true); err != nil {
		t.Fatal(err)
	}

	// 方向变化触发重建并快进到 offset
	batch, _, err := m.FetchPage(ctx, cursorTalker, 2, 2, start, end, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != 2 || batch[0].Seq != 20 || batch[1].Seq != 30 {
		t.Errorf("rebuilt page = %+v", batch)
	}

	// offset 回零同样重建
	batch, _, err = m.FetchPage(ctx, cursorTalker, 0, 2, start, end, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != 2 || batch[0].Seq != 50 || batch[1].Seq != 60 {
		t.Errorf("reset page = %+v", batch)
	}
}

func TestFetchPageLimitChange(t *testing.T) {
	m := newTestCursorManager(t, 10)
	ctx := context.Background()
	start, end := time.Unix(0, 0), time.Now()

	if _, _, err := m.FetchPage(ctx, cursorTalker, 0, 2, start, end, true); err != nil {
		t.Fatal(err)
	}

	// 页大小变化触发重建并快进到 offset
	batch, _, err := m.FetchPage(ctx, cursorTalker, 2, 3, start, end, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != 3 || batch[0].Seq != 30 || batch[2].Seq != 50 {
		t.Errorf("resized page = %+v", batch)
	}
}

func TestCloseWithFetchInFlight(t *testing.T) {
	m := newTestCursorManager(t, 10)
	ctx := context.Background()
	start, end := time.Unix(0, 0), time.Now()

	if _, _, err := m.FetchPage(ctx, cursorTalker, 0, 3, start, end, true); err != nil {
		t.Fatal(err)
	}

	sc := m.cursor(cursorTalker)
	sc.mu.Lock() // 占住游标，模拟在途取页
	m.Close(cursorTalker)

	// 锁还在手里时不能强关
	if sc.iter == nil {
		sc.mu.Unlock()
		t.Fatal("cursor reset while fetch in flight")
	}
	sc.mu.Unlock()

	// 在途取页结束后底层查询要被关掉
	deadline := time.Now().Add(2 * time.Second)
	for {
		sc.mu.Lock()
		closed := sc.iter == nil
		sc.mu.Unlock()
		if closed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("cursor leaked after close")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestFetchPageOffsetMismatch(t *testing.T) {
	m := newTestCursorManager(t, 6)
	ctx := context.Background()
	start, end := time.Unix(0, 0), time.Now()

	if _, _, err := m.FetchPage(ctx, cursorTalker, 0, 2, start, end, true); err != nil {
		t.Fatal(err)
	}

	// 偏移跟游标位置对不上时不重建，按游标当前位置继续
	batch, _, err := m.FetchPage(ctx, cursorTalker, 5, 2, start, end, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != 2 || batch[0].Seq != 30 || batch[1].Seq != 40 {
		t.Errorf("continued page = %+v", batch)
	}
}

func TestFetchPageBusy(t *testing.T) {
	m := newTestCursorManager(t, 3)
	ctx := context.Background()

	sc := m.cursor(cursorTalker)
	sc.mu.Lock()
	defer sc.mu.Unlock()

	_, _, err := m.FetchPage(ctx, cursorTalker, 0, 2, time.Unix(0, 0), time.Now(), true)
	if !errors.Is(err, errors.ErrTypeBusy) {
		t.Errorf("err = %v, want busy", err)
	}
}

func TestFetchPageEmptySession(t *testing.T) {
	m := newTestCursorManager(t, 1)
	_, _, err := m.FetchPage(context.Background(), "", 0, 2, time.Unix(0, 0), time.Now(), true)
	if err != errors.ErrSessionEmpty {
		t.Errorf("err = %v", err)
	}
}
