package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"

	"github.com/gin-gonic/gin"
)

// 定义错误类型常量
const (
	ErrTypeConfig       = "config"
	ErrTypeNotFound     = "not_found"
	ErrTypeFormat       = "format"
	ErrTypeExternalTool = "external_tool"
	ErrTypeSchemaDrift  = "schema_drift"
	ErrTypeDatabase     = "database"
	ErrTypeInvalidArg   = "invalid_argument"
	ErrTypeBusy         = "busy"
	ErrTypeInternal     = "internal"
)

// AppError 表示应用程序错误
type AppError struct {
	Type      string   `json:"type"`                 // 错误类型
	Message   string   `json:"message"`              // 错误消息
	Cause     error    `json:"-"`                    // 原始错误
	Code      int      `json:"-"`                    // HTTP Code
	Stack     []string `json:"-"`                    // 错误堆栈
	RequestID string   `json:"request_id,omitempty"` // 请求ID，用于跟踪
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap 实现 errors.Unwrap 接口，用于错误链
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithStack 添加堆栈信息到错误
func (e *AppError) WithStack() *AppError {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(2, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	stack := make([]string, 0, n)
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			stack = append(stack, fmt.Sprintf("%s:%d %s", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}

	e.Stack = stack
	return e
}

// WithRequestID 添加请求ID到错误
func (e *AppError) WithRequestID(requestID string) *AppError {
	e.RequestID = requestID
	return e
}

// New 创建新的应用错误
func New(errType, message string, cause error, code int) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Code:    code,
	}
}

// Is 检查错误是否为特定类型
func Is(err error, errType string) bool {
	if err == nil {
		return false
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errType
	}

	return false
}

// GetCode 获取错误的 HTTP 状态码
func GetCode(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}

	return http.StatusInternalServerError
}

// RootCause 获取错误链中的根本原因
func RootCause(err error) error {
	for err != nil {
		unwrapped := errors.Unwrap(err)
		if unwrapped == nil {
			return err
		}
		err = unwrapped
	}
	return err
}

// InvalidArg 无效参数错误
func InvalidArg(param string) *AppError {
	return New(ErrTypeInvalidArg, fmt.Sprintf("invalid arg: %s", param), nil, http.StatusBadRequest)
}

// Config 创建配置错误。配置错误对请求操作是致命的，原样返回给调用方。
func Config(message string, cause error) *AppError {
	return New(ErrTypeConfig, message, cause, http.StatusBadRequest).WithStack()
}

// NotFound 创建资源不存在错误。属于预期内错误，不携带堆栈。
func NotFound(resource string, cause error) *AppError {
	message := fmt.Sprintf("resource not found: %s", resource)
	return New(ErrTypeNotFound, message, cause, http.StatusNotFound)
}

// Format 创建格式错误，仅影响单条数据
func Format(message string, cause error) *AppError {
	return New(ErrTypeFormat, message, cause, http.StatusUnprocessableEntity)
}

// ExternalTool 创建外部工具错误
func ExternalTool(message string, cause error) *AppError {
	return New(ErrTypeExternalTool, message, cause, http.StatusBadGateway)
}

// SchemaDrift 创建未知表结构错误
func SchemaDrift(message string, cause error) *AppError {
	return New(ErrTypeSchemaDrift, message, cause, http.StatusInternalServerError).WithStack()
}

// Database 创建数据库错误
func Database(message string, cause error) *AppError {
	return New(ErrTypeDatabase, message, cause, http.StatusInternalServerError).WithStack()
}

// Busy 创建资源占用错误
func Busy(message string) *AppError {
	return New(ErrTypeBusy, message, nil, http.StatusConflict)
}

// Internal 创建内部服务器错误
func Internal(message string, cause error) *AppError {
	return New(ErrTypeInternal, message, cause, http.StatusInternalServerError).WithStack()
}

// Err 在HTTP响应中返回错误
func Err(c *gin.Context, err error) {
	// 获取请求ID（如果有）
	requestID := c.GetString("RequestID")

	var appErr *AppError
	if errors.As(err, &appErr) {
		if requestID != "" {
			appErr.RequestID = requestID
		}
		c.JSON(appErr.Code, appErr)
		return
	}

	// 未知错误
	unknownErr := &AppError{
		Type:      "unknown",
		Message:   err.Error(),
		Code:      http.StatusInternalServerError,
		RequestID: requestID,
	}
	c.JSON(http.StatusInternalServerError, unknownErr)
}
