// Copyright 2025 The axfor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package httpapi exposes a head store over HTTP.
//
//	PUT    /heads/{key}  add, 204
//	DELETE /heads/{key}  remove, 204
//	GET    /heads/{key}  200 "true" or 404 "false"
//	GET    /heads        JSON array, sorted
//
// Keys are path-escaped, so "feature/x" is addressed as /heads/feature%2Fx.
package httpapi

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"fileHeads/pkg/fileheads"
	"fileHeads/pkg/heads"
	"fileHeads/pkg/log"
	"fileHeads/pkg/metrics"
	"fileHeads/pkg/reliability"
	"fileHeads/pkg/syncmap"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const prefix = "/heads"

// dummyHash 用于未知用户
var dummyHash = sync.OnceValue(func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte("fileheads-dummy-password"), bcrypt.DefaultCost)
	return h
})

// Config HTTP API 配置
type Config[K any] struct {
	Store heads.Heads[K]

	// 键与 URL 路径段之间的转换
	ParseKey  func(string) (K, error)
	FormatKey func(K) string
	Less      func(a, b K) bool

	Address        string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration // 等待存储操作完成的上限
	MaxKeyBytes    int

	// 非空时 PUT/DELETE 需要 basic auth，值为 bcrypt hash
	Users map[string]string

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Server HTTP API 服务器
type Server[K any] struct {
	cfg        Config[K]
	validator  *reliability.KeyValidator
	logger     *zap.Logger
	verified   *syncmap.Map[string, [sha256.Size]byte] // username -> sha256 of a password bcrypt accepted
	handler    http.Handler
	httpServer *http.Server
}

// StringKeys fills the key conversions for string keys
func StringKeys(cfg Config[string]) Config[string] {
	cfg.ParseKey = func(s string) (string, error) { return s, nil }
	cfg.FormatKey = func(s string) string { return s }
	cfg.Less = func(a, b string) bool { return a < b }
	return cfg
}

// NewServer 创建新的 HTTP API 服务器
func NewServer[K any](cfg Config[K]) (*Server[K], error) {
	if cfg.Store == nil || cfg.ParseKey == nil || cfg.FormatKey == nil || cfg.Less == nil {
		return nil, errors.New("httpapi: store and key conversions are required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	s := &Server[K]{
		cfg:       cfg,
		validator: reliability.NewKeyValidator(cfg.MaxKeyBytes),
		logger:    cfg.Logger.With(log.Component("httpapi")),
		verified:  syncmap.NewMap[string, [sha256.Size]byte](),
	}
	s.handler = cfg.Metrics.Middleware(http.HandlerFunc(s.serve))

	mux := http.NewServeMux()
	mux.Handle("/", s.handler)
	s.httpServer = &http.Server{
		Addr:              cfg.Address,
		Handler:           mux,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	return s, nil
}

// Handler returns the instrumented API handler
func (s *Server[K]) Handler() http.Handler {
	return s.handler
}

// Start 启动 HTTP 服务器，阻塞直到服务器关闭
func (s *Server[K]) Start() error {
	s.logger.Info("starting HTTP API server", zap.String("address", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown 停止接收新请求并等待处理中的请求完成
func (s *Server[K]) Shutdown(ctx context.Context) error {
	s.logger.Info("stopping HTTP API server")
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP 处理 HTTP 请求
func (s *Server[K]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server[K]) serve(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	err := reliability.PanicMiddleware("httpapi", func() error {
		s.route(w, r)
		return nil
	})
	if err != nil {
		s.logger.Error("request handler panicked", log.Method(r.Method), zap.String("path", r.URL.Path), log.Err(err))
		s.cfg.Metrics.RecordPanicRecovered("httpapi")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Server[K]) route(w http.ResponseWriter, r *http.Request) {
	path := r.URL.EscapedPath()

	// 列举所有 head
	if path == prefix || path == prefix+"/" {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handleList(w, r)
		return
	}

	raw, ok := strings.CutPrefix(path, prefix+"/")
	if !ok {
		http.NotFound(w, r)
		return
	}

	rawKey, err := url.PathUnescape(raw)
	if err != nil {
		http.Error(w, "malformed key escape", http.StatusBadRequest)
		return
	}
	if err := s.validator.ValidateKey(rawKey); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	key, err := s.cfg.ParseKey(rawKey)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid key: %v", err), http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodPut:
		if s.authorize(w, r) {
			s.handleAdd(w, r, key)
		}
	case http.MethodDelete:
		if s.authorize(w, r) {
			s.handleRemove(w, r, key)
		}
	case http.MethodGet, http.MethodHead:
		s.handleIsHead(w, r, key)
	default:
		w.Header().Set("Allow", http.MethodPut)
		w.Header().Add("Allow", http.MethodGet)
		w.Header().Add("Allow", http.MethodDelete)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// authorize 校验 basic auth，失败时已写好响应
func (s *Server[K]) authorize(w http.ResponseWriter, r *http.Request) bool {
	if s.cfg.Users == nil {
		return true
	}

	username, password, ok := r.BasicAuth()
	authenticated := s.checkPassword(username, password) && ok

	s.cfg.Metrics.RecordAuthentication(authenticated)
	if !authenticated {
		s.logger.Warn("authentication failed", log.Username(username), log.RemoteAddr(r.RemoteAddr))
		w.Header().Set("WWW-Authenticate", `Basic realm="fileheads"`)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

// checkPassword 校验用户密码
// bcrypt 通过后缓存密码的 sha256，同一凭据的后续请求不再执行 bcrypt
func (s *Server[K]) checkPassword(username, password string) bool {
	hash, known := s.cfg.Users[username]
	if !known {
		// 未知用户也执行一次比较，避免通过耗时探测用户名
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		return false
	}

	sum := sha256.Sum256([]byte(password))
	if cached, ok := s.verified.Load(username); ok && subtle.ConstantTimeCompare(cached[:], sum[:]) == 1 {
		return true
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return false
	}
	s.verified.Store(username, sum)
	return true
}

// handleAdd 处理 PUT 请求（记录 head）
func (s *Server[K]) handleAdd(w http.ResponseWriter, r *http.Request, key K) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	if _, err := s.cfg.Store.Add(key).Wait(ctx); err != nil {
		s.writeError(w, "add", key, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRemove 处理 DELETE 请求（删除 head，不存在也视为成功）
func (s *Server[K]) handleRemove(w http.ResponseWriter, r *http.Request, key K) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	if _, err := s.cfg.Store.Remove(key).Wait(ctx); err != nil {
		s.writeError(w, "remove", key, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleIsHead 处理 GET 请求（查询单个 head）
func (s *Server[K]) handleIsHead(w http.ResponseWriter, r *http.Request, key K) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	isHead, err := s.cfg.Store.IsHead(key).Wait(ctx)
	if err != nil {
		s.writeError(w, "is_head", key, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if !isHead {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("false\n"))
		return
	}
	_, _ = w.Write([]byte("true\n"))
}

// handleList 处理 GET /heads（按键排序输出）
func (s *Server[K]) handleList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	keys, err := fileheads.Sorted(ctx, s.cfg.Store.Heads(), s.cfg.Less)
	if err != nil {
		var zero K
		s.writeError(w, "heads", zero, err)
		return
	}

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.cfg.FormatKey(k))
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		s.logger.Debug("failed to write listing", log.Err(err))
	}
}

func (s *Server[K]) writeError(w http.ResponseWriter, op string, key K, err error) {
	code := statusCode(err)
	fields := []zap.Field{log.Operation(op), log.Err(err)}
	if op != "heads" {
		fields = append(fields, log.KeyString(s.cfg.FormatKey(key)))
	}
	if code >= http.StatusInternalServerError {
		s.logger.Error("head store request failed", fields...)
	} else {
		s.logger.Debug("head store request rejected", fields...)
	}
	http.Error(w, err.Error(), code)
}

// statusCode maps store errors onto HTTP status codes
func statusCode(err error) int {
	switch {
	case errors.Is(err, heads.ErrEncoding), errors.Is(err, reliability.ErrInvalidKey):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
