package errors

import (
	goerrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestNew(t *testing.T) {
	cause := goerrors.New("root")
	err := New(ErrTypeDatabase, "query failed", cause, http.StatusInternalServerError)

	if err.Type != ErrTypeDatabase {
		t.Errorf("Type = %q", err.Type)
	}
	if err.Error() != "database: query failed: root" {
		t.Errorf("Error() = %q", err.Error())
	}
	if goerrors.Unwrap(err) != cause {
		t.Errorf("Unwrap lost the cause")
	}
}

func TestIs(t *testing.T) {
	err := Config("missing key", nil)
	if !Is(err, ErrTypeConfig) {
		t.Errorf("Is(config) = false")
	}
	if Is(err, ErrTypeDatabase) {
		t.Errorf("Is(database) = true")
	}

	// 包一层标准错误也要能识别
	wrapped := fmt.Errorf("outer: %w", err)
	if !Is(wrapped, ErrTypeConfig) {
		t.Errorf("Is(wrapped) = false")
	}

	if Is(nil, ErrTypeConfig) {
		t.Errorf("Is(nil) = true")
	}
	if Is(goerrors.New("plain"), ErrTypeConfig) {
		t.Errorf("Is(plain) = true")
	}
}

func TestGetCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{ErrMediaNotFound, http.StatusNotFound},
		{ErrSessionEmpty, http.StatusBadRequest},
		{CursorBusy("friend"), http.StatusConflict},
		{goerrors.New("plain"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := GetCode(c.err); got != c.want {
			t.Errorf("GetCode(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestRootCause(t *testing.T) {
	root := goerrors.New("root")
	err := Database("outer", Internal("middle", root))
	if RootCause(err) != root {
		t.Errorf("RootCause = %v", RootCause(err))
	}
	if RootCause(nil) != nil {
		t.Errorf("RootCause(nil) != nil")
	}
}

func TestWithStack(t *testing.T) {
	err := SchemaDrift("unknown layout", nil)
	if len(err.Stack) == 0 {
		t.Errorf("stack missing")
	}
	// 预期内错误不带堆栈
	if len(NotFound("contact", nil).Stack) != 0 {
		t.Errorf("expected error carries stack")
	}
}

func TestErrResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	Err(c, ErrVoiceNotFound)
	if w.Code != http.StatusNotFound {
		t.Errorf("code = %d", w.Code)
	}

	// 未知错误兜底 500
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	Err(c, goerrors.New("boom"))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("code = %d", w.Code)
	}
}
