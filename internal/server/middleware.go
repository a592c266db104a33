package server

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/just-being-aryan/task-manager-app/internal/domain/errors"
	"github.com/just-being-aryan/task-manager-app/internal/metrics"
	"github.com/just-being-aryan/task-manager-app/pkg/logger"
)

const (
	ctxUserID    = "user_id"
	ctxToken     = "token"
	ctxRequestID = "request_id"

	headerRequestID = "X-Request-ID"
	minCompressSize = 1024
)

// TokenValidator resolves a bearer credential to the id of its user.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (string, error)
}

func abort(ctx *gin.Context, err error) {
	_ = ctx.Error(err)
	ctx.Abort()
}

// RequireAuth rejects requests without a valid bearer credential and stores
// the authenticated user id under "user_id" in the gin context.
func RequireAuth(v TokenValidator) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token, ok := bearerToken(ctx.GetHeader("Authorization"))
		if !ok {
			abort(ctx, errors.ErrUnauthenticated)
			return
		}
		userID, err := v.Validate(ctx.Request.Context(), token)
		if err != nil {
			abort(ctx, err)
			return
		}
		ctx.Set(ctxUserID, userID)
		ctx.Set(ctxToken, token)
		ctx.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// ErrorHandler renders the last error attached to the context as the JSON
// error envelope. Stack carries the full error chain when exposeStack is set.
func ErrorHandler(exposeStack bool) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Next()

		if len(ctx.Errors) == 0 || ctx.Writer.Written() {
			return
		}
		err := ctx.Errors.Last().Err
		status, msg := resolveError(err)
		if status == http.StatusInternalServerError {
			log := logger.Get()
			log.Error().
				Err(err).
				Str("method", ctx.Request.Method).
				Str("path", ctx.Request.URL.Path).
				Str("request_id", ctx.GetString(ctxRequestID)).
				Msg("unhandled error")
		}

		body := errorResponse{Success: false, Message: msg}
		if exposeStack {
			body.Stack = err.Error()
		}
		ctx.JSON(status, body)
	}
}

// Recovery turns a panic into a 500 envelope.
func Recovery(exposeStack bool) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(ctx *gin.Context, recovered any) {
		log := logger.Get()
		log.Error().
			Interface("panic", recovered).
			Str("method", ctx.Request.Method).
			Str("path", ctx.Request.URL.Path).
			Str("request_id", ctx.GetString(ctxRequestID)).
			Msg("panic recovered")

		body := errorResponse{Success: false, Message: errors.ErrInternalServer.Error()}
		if exposeStack {
			body.Stack = fmt.Sprint(recovered)
		}
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, body)
	})
}

// RequestID propagates X-Request-ID or assigns a fresh one.
func RequestID() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id := ctx.GetHeader(headerRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		ctx.Set(ctxRequestID, id)
		ctx.Writer.Header().Set(headerRequestID, id)
		ctx.Next()
	}
}

func AccessLog() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		status := ctx.Writer.Status()
		log := logger.Get()
		evt := log.Info()
		switch {
		case status >= http.StatusInternalServerError:
			evt = log.Error()
		case status >= http.StatusBadRequest:
			evt = log.Warn()
		}
		evt.Str("request_id", ctx.GetString(ctxRequestID)).
			Str("method", ctx.Request.Method).
			Str("path", ctx.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", ctx.ClientIP()).
			Msg("request")
	}
}

// Metrics records request counts and latency keyed by the route template.
func Metrics() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(ctx.Request.Method, route, strconv.Itoa(ctx.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(ctx.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// CORS allows the listed origins; an empty list or "*" allows any origin.
// Preflight requests are answered with 204.
func CORS(origins []string) gin.HandlerFunc {
	allowAll := len(origins) == 0 || slices.Contains(origins, "*")
	return func(ctx *gin.Context) {
		origin := ctx.GetHeader("Origin")
		if origin != "" && (allowAll || slices.Contains(origins, origin)) {
			h := ctx.Writer.Header()
			if allowAll {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Content-Encoding, X-Request-ID")
			h.Set("Access-Control-Expose-Headers", headerRequestID)
			h.Set("Access-Control-Max-Age", "600")
		}
		if ctx.Request.Method == http.MethodOptions && ctx.GetHeader("Access-Control-Request-Method") != "" {
			ctx.AbortWithStatus(http.StatusNoContent)
			return
		}
		ctx.Next()
	}
}

type dualCloser struct {
	io.Reader
	gzipReader io.Closer
	bodyCloser io.Closer
}

func (dc *dualCloser) Close() error {
	err := dc.gzipReader.Close()
	if bodyErr := dc.bodyCloser.Close(); err == nil {
		err = bodyErr
	}
	return err
}

// GzipRequestDecompress inflates request bodies sent with Content-Encoding: gzip.
func GzipRequestDecompress() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !strings.Contains(strings.ToLower(ctx.GetHeader("Content-Encoding")), "gzip") {
			ctx.Next()
			return
		}
		gr, err := gzip.NewReader(ctx.Request.Body)
		if err != nil {
			abort(ctx, fmt.Errorf("%w: %w", errors.ErrInvalidGzipRequest, err))
			return
		}
		ctx.Request.Body = &dualCloser{Reader: gr, gzipReader: gr, bodyCloser: ctx.Request.Body}
		ctx.Request.Header.Del("Content-Encoding")
		ctx.Request.Header.Del("Content-Length")
		ctx.Request.ContentLength = -1
		ctx.Next()
	}
}

// gzipResponseWriter holds the response until the handler chain returns so
// the compression decision can use the final status, headers and size.
type gzipResponseWriter struct {
	gin.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (w *gzipResponseWriter) WriteHeader(code int) { w.status = code }

func (w *gzipResponseWriter) WriteHeaderNow() {
	if w.status == 0 {
		w.status = http.StatusOK
	}
}

func (w *gzipResponseWriter) Write(data []byte) (int, error) {
	w.WriteHeaderNow()
	return w.buf.Write(data)
}

func (w *gzipResponseWriter) WriteString(s string) (int, error) {
	w.WriteHeaderNow()
	return w.buf.WriteString(s)
}

func (w *gzipResponseWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *gzipResponseWriter) Size() int {
	if w.status == 0 {
		return -1
	}
	return w.buf.Len()
}

func (w *gzipResponseWriter) Written() bool { return w.status != 0 }

func (w *gzipResponseWriter) Flush() {}

func (w *gzipResponseWriter) finish() error {
	out := w.ResponseWriter
	if w.status == 0 {
		return nil
	}
	body := w.buf.Bytes()

	if len(body) >= minCompressSize && bodyAllowed(w.status) && isCompressible(out.Header()) {
		out.Header().Del("Content-Length")
		out.Header().Set("Content-Encoding", "gzip")
		out.WriteHeader(w.status)
		gw := gzip.NewWriter(out)
		if _, err := gw.Write(body); err != nil {
			return errors.ErrGzipCompressionFailed
		}
		if err := gw.Close(); err != nil {
			return errors.ErrGzipCompressionFailed
		}
		return nil
	}

	out.WriteHeader(w.status)
	if len(body) == 0 {
		out.WriteHeaderNow()
		return nil
	}
	_, err := out.Write(body)
	return err
}

// GzipResponseCompress compresses JSON and text responses of at least
// minCompressSize bytes for clients that accept gzip.
func GzipResponseCompress() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.Method == http.MethodHead ||
			!strings.Contains(strings.ToLower(ctx.GetHeader("Accept-Encoding")), "gzip") {
			ctx.Next()
			return
		}

		addVary(ctx.Writer.Header(), "Accept-Encoding")
		original := ctx.Writer
		gw := &gzipResponseWriter{ResponseWriter: original}
		ctx.Writer = gw
		defer func() {
			ctx.Writer = original
			if err := gw.finish(); err != nil {
				log := logger.Get()
				log.Error().Err(err).Str("path", ctx.Request.URL.Path).Msg("failed to write compressed response")
			}
		}()

		ctx.Next()
	}
}

func addVary(h http.Header, value string) {
	vary := h.Get("Vary")
	switch {
	case vary == "":
		h.Set("Vary", value)
	case !strings.Contains(vary, value):
		h.Set("Vary", vary+", "+value)
	}
}

func bodyAllowed(status int) bool {
	switch {
	case status >= 100 && status <= 199:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}

func isCompressible(h http.Header) bool {
	if h.Get("Content-Encoding") != "" {
		return false
	}
	ct := strings.ToLower(h.Get("Content-Type"))
	if ct == "" || strings.HasPrefix(ct, "text/event-stream") {
		return false
	}
	for _, prefix := range []string{"application/json", "application/xml", "application/javascript", "text/"} {
		if strings.HasPrefix(ct, prefix) {
			return true
		}
	}
	return false
}
