package http

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sjzar/chatview/internal/chatview/media"
	"github.com/sjzar/chatview/internal/errors"
	"github.com/sjzar/chatview/internal/model"
	"github.com/sjzar/chatview/pkg/util"
)

func (s *Service) initRouter() {
	s.initBaseRouter()
	s.initMediaRouter()
	s.initAPIRouter()
}

func (s *Service) initBaseRouter() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
}

func (s *Service) initMediaRouter() {
	s.router.GET("/image/*key", s.handleImage)
	s.router.GET("/voice/*key", s.handleVoice)
}

func (s *Service) initAPIRouter() {
	api := s.router.Group("/api/v1", s.checkDBStateMiddleware())
	{
		api.GET("/message", s.handleMessages)
		api.GET("/message/latest", s.handleLatestMessages)
		api.GET("/session", s.handleSessions)
		api.GET("/contact", s.handleContacts)
		api.GET("/avatar", s.handleAvatar)
		api.GET("/voice/transcript", s.handleTranscript)
		api.GET("/voice/transcript/stream", s.handleTranscriptStream)
		api.GET("/image/updates", s.handleImageUpdates)
		api.POST("/cache/clear", s.handleCacheClear)
	}
}

func (s *Service) handleMessages(c *gin.Context) {

	q := struct {
		Session string `form:"session"`
		Time    string `form:"time"`
		Limit   int    `form:"limit"`
		Offset  int    `form:"offset"`
		Asc     bool   `form:"asc"`
		Format  string `form:"format"`
	}{}

	if err := c.BindQuery(&q); err != nil {
		errors.Err(c, err)
		return
	}

	start, end, ok := util.TimeRangeOf(q.Time)
	if !ok {
		errors.Err(c, errors.InvalidArg("time"))
		return
	}
	if q.Limit < 0 {
		q.Limit = 0
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	messages, hasMore, err := s.db.GetMessages(c.Request.Context(), q.Session, q.Offset, q.Limit, start, end, q.Asc)
	if err != nil {
		errors.Err(c, err)
		return
	}

	switch strings.ToLower(q.Format) {
	case "csv":
		c.Writer.Header().Set("Content-Type", "text/csv; charset=utf-8")
		c.Writer.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s_%s_%s.csv", q.Session, start.Format("2006-01-02"), end.Format("2006-01-02")))
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Flush()

		csvWriter := csv.NewWriter(c.Writer)
		csvWriter.Write(model.CSVHeader)
		for _, m := range messages {
			csvWriter.Write(m.CSVRecord())
		}
		csvWriter.Flush()
	case "plain":
		c.Writer.Header().Set("Content-Type", "text/plain; charset=utf-8")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Flush()

		timeFormat := util.PerfectTimeFormat(start, end)
		for _, m := range messages {
			c.Writer.WriteString(m.PlainText(strings.Contains(q.Session, ","), timeFormat, c.Request.Host))
			c.Writer.WriteString("\n")
		}
		c.Writer.Flush()
	default:
		c.JSON(http.StatusOK, gin.H{
			"records": messages,
			"hasMore": hasMore,
		})
	}
}

func (s *Service) handleLatestMessages(c *gin.Context) {

	q := struct {
		Session string `form:"session"`
		Limit   int    `form:"limit"`
	}{}

	if err := c.BindQuery(&q); err != nil {
		errors.Err(c, err)
		return
	}

	messages, err := s.db.GetLatestMessages(c.Request.Context(), q.Session, q.Limit)
	if err != nil {
		errors.Err(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"records": messages})
}

func (s *Service) handleSessions(c *gin.Context) {

	q := struct {
		Keyword string `form:"keyword"`
		Limit   int    `form:"limit"`
		Offset  int    `form:"offset"`
		Format  string `form:"format"`
	}{}

	if err := c.BindQuery(&q); err != nil {
		errors.Err(c, err)
		return
	}

	sessions, err := s.db.GetSessions(c.Request.Context(), q.Keyword, q.Limit, q.Offset)
	if err != nil {
		errors.Err(c, err)
		return
	}

	switch strings.ToLower(q.Format) {
	case "csv":
		c.Writer.Header().Set("Content-Type", "text/csv; charset=utf-8")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Flush()

		c.Writer.WriteString("UserName,NOrder,NickName,Content,NTime\n")
		for _, session := range sessions {
			c.Writer.WriteString(fmt.Sprintf("%s,%d,%s,%s,%s\n", session.UserName, session.NOrder, session.NickName, strings.ReplaceAll(session.Content, "\n", "\\n"), session.NTime))
		}
		c.Writer.Flush()
	case "json":
		c.JSON(http.StatusOK, gin.H{"items": sessions})
	default:
		c.Writer.Header().Set("Content-Type", "text/plain; charset=utf-8")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Flush()
		for _, session := range sessions {
			c.Writer.WriteString(session.PlainText(120))
			c.Writer.WriteString("\n")
		}
		c.Writer.Flush()
	}
}

func (s *Service) handleContacts(c *gin.Context) {

	q := struct {
		Keyword string `form:"keyword"`
		Limit   int    `form:"limit"`
		Offset  int    `form:"offset"`
		Format  string `form:"format"`
	}{}

	if err := c.BindQuery(&q); err != nil {
		errors.Err(c, err)
		return
	}

	list, err := s.db.GetContacts(c.Request.Context(), q.Keyword, q.Limit, q.Offset)
	if err != nil {
		errors.Err(c, err)
		return
	}

	format := strings.ToLower(q.Format)
	switch format {
	case "json":
		c.JSON(http.StatusOK, gin.H{"items": list})
	default:
		if format == "csv" {
			// 浏览器访问时，会下载文件
			c.Writer.Header().Set("Content-Type", "text/csv; charset=utf-8")
		} else {
			c.Writer.Header().Set("Content-Type", "text/plain; charset=utf-8")
		}
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Flush()

		c.Writer.WriteString("UserName,Alias,Remark,NickName\n")
		for _, contact := range list {
			c.Writer.WriteString(fmt.Sprintf("%s,%s,%s,%s\n", contact.UserName, contact.Alias, contact.Remark, contact.NickName))
		}
		c.Writer.Flush()
	}
}

func (s *Service) handleAvatar(c *gin.Context) {
	userName := c.Query("user")
	if userName == "" {
		errors.Err(c, errors.InvalidArg("user"))
		return
	}

	url, err := s.db.GetAvatar(c.Request.Context(), userName)
	if err != nil {
		errors.Err(c, err)
		return
	}
	c.Redirect(http.StatusFound, url)
}

func (s *Service) handleImage(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" {
		errors.Err(c, errors.ErrKeyEmpty)
		return
	}

	opts := media.ImageOptions{
		Force:      c.Query("force") != "",
		Thumb:      c.Query("thumb") != "",
		CachedOnly: c.Query("cached") != "",
	}

	keys := util.Str2List(key, ",")
	var _err error
	for _, k := range keys {
		path, err := s.media.GetImage(c.Request.Context(), k, opts)
		if err != nil {
			_err = err
			continue
		}
		c.File(path)
		return
	}

	errors.Err(c, _err)
}

func (s *Service) handleVoice(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")

	req := &media.VoiceRequest{
		Session:    c.Query("session"),
		Keys:       util.Str2List(key, ","),
		CreateTime: int64(util.MustAnyToInt(c.Query("time"))),
		Format:     c.Query("format"),
	}

	data, err := s.media.GetVoice(c.Request.Context(), req)
	if err != nil {
		errors.Err(c, err)
		return
	}

	if strings.EqualFold(req.Format, "mp3") {
		c.Data(http.StatusOK, "audio/mp3", data)
		return
	}
	c.Data(http.StatusOK, "audio/wav", data)
}

func (s *Service) handleTranscript(c *gin.Context) {

	q := struct {
		Session string `form:"session"`
		Keys    string `form:"keys"`
		Time    int64  `form:"time"`
	}{}

	if err := c.BindQuery(&q); err != nil {
		errors.Err(c, err)
		return
	}

	text, err := s.media.TranscribeVoice(c.Request.Context(), q.Session, util.Str2List(q.Keys, ","), q.Time)
	if err != nil {
		errors.Err(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"text": text})
}

// handleTranscriptStream SSE 推送阶段性识别结果，终稿后关闭
func (s *Service) handleTranscriptStream(c *gin.Context) {

	q := struct {
		Session string `form:"session"`
		Keys    string `form:"keys"`
		Time    int64  `form:"time"`
	}{}

	if err := c.BindQuery(&q); err != nil {
		errors.Err(c, err)
		return
	}

	partials, unsubscribe := s.media.Transcriber().Subscribe(q.Session, q.Time)
	defer unsubscribe()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := s.media.TranscribeVoice(c.Request.Context(), q.Session, util.Str2List(q.Keys, ","), q.Time)
		done <- result{text, err}
	}()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case line := <-partials:
			c.SSEvent("partial", line)
			return true
		case r := <-done:
			if r.err != nil {
				c.SSEvent("error", r.err.Error())
			} else {
				c.SSEvent("final", r.text)
			}
			return false
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// handleImageUpdates SSE 推送高清图可补的键
func (s *Service) handleImageUpdates(c *gin.Context) {
	updates, unsubscribe := s.media.Index().Subscribe()
	defer unsubscribe()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case key := <-updates:
			c.SSEvent("hd", key)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (s *Service) handleCacheClear(c *gin.Context) {

	q := struct {
		Contact    bool `form:"contact" json:"contact"`
		Path       bool `form:"path" json:"path"`
		Voice      bool `form:"voice" json:"voice"`
		Transcript bool `form:"transcript" json:"transcript"`
		Schema     bool `form:"schema" json:"schema"`
	}{}

	if err := c.ShouldBind(&q); err != nil {
		errors.Err(c, err)
		return
	}

	// 不带参数视为全清
	if !q.Contact && !q.Path && !q.Voice && !q.Transcript && !q.Schema {
		q.Contact, q.Path, q.Voice, q.Transcript, q.Schema = true, true, true, true, true
	}

	if q.Contact || q.Schema {
		s.db.ClearCaches()
	}
	s.media.ClearCaches(q.Path, q.Voice, q.Transcript)

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
