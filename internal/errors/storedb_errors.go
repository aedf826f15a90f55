package errors

import (
	"fmt"
	"net/http"
	"time"
)

var (
	ErrSessionEmpty = New(ErrTypeInvalidArg, "session empty", nil, http.StatusBadRequest)
	ErrKeyEmpty     = New(ErrTypeInvalidArg, "key empty", nil, http.StatusBadRequest)
)

// 数据库初始化相关错误

func DBFileNotFound(path, pattern string, cause error) *AppError {
	return New(ErrTypeNotFound, fmt.Sprintf("db file not found %s: %s", path, pattern), cause, http.StatusNotFound)
}

func DBConnectFailed(path string, cause error) *AppError {
	return New(ErrTypeDatabase, fmt.Sprintf("db connect failed: %s", path), cause, http.StatusInternalServerError).WithStack()
}

func DBCloseFailed(cause error) *AppError {
	return New(ErrTypeDatabase, "db close failed", cause, http.StatusInternalServerError)
}

func QueryFailed(query string, cause error) *AppError {
	return New(ErrTypeDatabase, fmt.Sprintf("query failed: %s", query), cause, http.StatusInternalServerError).WithStack()
}

func ScanRowFailed(cause error) *AppError {
	return New(ErrTypeDatabase, "scan row failed", cause, http.StatusInternalServerError)
}

func TimeRangeNotFound(start, end time.Time) *AppError {
	return New(ErrTypeNotFound, fmt.Sprintf("time range not found: %s - %s", start, end), nil, http.StatusNotFound)
}

func SessionNotFound(session string) *AppError {
	return New(ErrTypeNotFound, fmt.Sprintf("session not found: %s", session), nil, http.StatusNotFound)
}

func ContactNotFound(key string) *AppError {
	return New(ErrTypeNotFound, fmt.Sprintf("contact not found: %s", key), nil, http.StatusNotFound)
}

func FileGroupNotFound(name string) *AppError {
	return New(ErrTypeNotFound, fmt.Sprintf("file group not found: %s", name), nil, http.StatusNotFound)
}

func InitCacheFailed(cause error) *AppError {
	return New(ErrTypeInternal, "init cache failed", cause, http.StatusInternalServerError).WithStack()
}

// 游标相关错误

// CursorBusy 同一会话的并发分页请求会破坏游标状态，直接拒绝
func CursorBusy(session string) *AppError {
	return New(ErrTypeBusy, fmt.Sprintf("session cursor busy: %s", session), nil, http.StatusConflict)
}

// 表结构漂移相关错误

func UnknownColumnLayout(table string) *AppError {
	return SchemaDrift(fmt.Sprintf("unknown column layout: %s", table), nil)
}

func VoiceSchemaNotFound(shard string) *AppError {
	return New(ErrTypeSchemaDrift, fmt.Sprintf("no voice schema in shard: %s", shard), nil, http.StatusNotFound)
}
