package errors

import (
	"fmt"
	"net/http"
)

var (
	// ErrMediaNotFound 媒体记录、硬链接条目或物理文件不存在
	ErrMediaNotFound = New(ErrTypeNotFound, "media not found", nil, http.StatusNotFound)

	// ErrNoHDAvailable 只找到缩略图，但调用方要求高清图，宁缺毋滥
	ErrNoHDAvailable = New(ErrTypeNotFound, "no high-definition source available", nil, http.StatusNotFound)

	// ErrVoiceNotFound 三级回退策略都没有命中语音记录
	ErrVoiceNotFound = New(ErrTypeNotFound, "voice data not found", nil, http.StatusNotFound)
)

// ImageKeyRequired V2 容器没有有效的 16 字节密钥时无法解密
func ImageKeyRequired() *AppError {
	return Config("image decryption requires a 16-byte key", nil)
}

func ImageFormatInvalid(key string, cause error) *AppError {
	return Format(fmt.Sprintf("invalid image container: %s", key), cause)
}

func ConverterRequired(key string) *AppError {
	return ExternalTool(fmt.Sprintf("unsupported format, requires external converter: %s", key), nil)
}

func VoiceDecodeFailed(cause error) *AppError {
	return Format("voice decode failed", cause)
}

func TranscribeFailed(cause error) *AppError {
	return ExternalTool("transcription failed", cause)
}

func RecognizerNotConfigured() *AppError {
	return Config("speech recognizer command not configured", nil)
}
