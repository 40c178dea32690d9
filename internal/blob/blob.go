// Package blob 管理预览资源：把已接纳文件的内容以可撤销的 URL 暴露给渲染端。
//
// 它是浏览器 object URL 的服务端对应物：Publish 创建，Revoke 撤销，撤销后的 URL 不再可读。
package blob

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/vidpreview/internal/domain"
	"github.com/John-Robertt/vidpreview/internal/entryid"
	"github.com/John-Robertt/vidpreview/internal/metrics"
)

// DefaultBasePath 是预览资源 URL 的路径前缀（与 HTTP 路由一致）。
const DefaultBasePath = "/blob/"

// ErrNotFound 表示 token 不存在或已撤销。
var ErrNotFound = errors.New("blob: not found")

type resource struct {
	entryID   string
	name      string
	mediaType string
	source    domain.Source
	created   time.Time
}

// Registry 是并发安全的预览资源表。
type Registry struct {
	base string
	log  zerolog.Logger

	mu   sync.Mutex
	live map[string]resource

	revoked int
}

// NewRegistry 创建 Registry。basePath 为空时使用 DefaultBasePath。
func NewRegistry(basePath string, log zerolog.Logger) *Registry {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		basePath = DefaultBasePath
	}
	if !strings.HasSuffix(basePath, "/") {
		basePath += "/"
	}
	return &Registry{
		base: basePath,
		log:  log.With().Str("component", "blob").Logger(),
		live: make(map[string]resource),
	}
}

// Publish 为条目创建预览资源并返回其 URL。
func (r *Registry) Publish(entryID string, c domain.Candidate) (string, error) {
	if c.Source == nil {
		return "", fmt.Errorf("blob: %q 没有内容来源", c.Name)
	}
	token := entryid.Blob()

	r.mu.Lock()
	r.live[token] = resource{
		entryID:   entryID,
		name:      c.Name,
		mediaType: c.MediaType,
		source:    c.Source,
		created:   time.Now(),
	}
	n := len(r.live)
	r.mu.Unlock()

	metrics.SetLiveResources(n)
	r.log.Debug().Str("entry_id", entryID).Str("token", token).Msg("preview resource published")
	return r.base + token, nil
}

// Revoke 撤销 URL；重复撤销或未知 URL 返回 false。
func (r *Registry) Revoke(url string) bool {
	token := r.Token(url)

	r.mu.Lock()
	res, ok := r.live[token]
	if ok {
		delete(r.live, token)
		r.revoked++
	}
	n := len(r.live)
	r.mu.Unlock()

	if !ok {
		r.log.Warn().Str("url", url).Msg("revoke of unknown preview resource")
		return false
	}
	metrics.SetLiveResources(n)
	r.log.Debug().Str("entry_id", res.entryID).Str("token", token).Msg("preview resource revoked")
	return true
}

// Token 从 URL 中取出 token（接受完整 URL 或裸 token）。
func (r *Registry) Token(url string) string {
	if i := strings.LastIndex(url, r.base); i >= 0 {
		return url[i+len(r.base):]
	}
	return url
}

// Object 是打开后的预览资源内容。
type Object struct {
	Name      string
	MediaType string
	ModTime   time.Time
	Body      io.ReadSeekCloser
}

// Open 打开 token 对应的内容；token 不存在或已撤销时返回 ErrNotFound。
func (r *Registry) Open(token string) (*Object, error) {
	r.mu.Lock()
	res, ok := r.live[token]
	r.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}

	body, err := res.source.Open()
	if err != nil {
		return nil, fmt.Errorf("blob: 打开 %q 失败：%w", res.name, err)
	}
	return &Object{
		Name:      res.name,
		MediaType: res.mediaType,
		ModTime:   res.created,
		Body:      body,
	}, nil
}

// Live 返回当前未撤销的资源数量。
func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// Revoked 返回累计成功撤销的次数。
func (r *Registry) Revoked() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.revoked
}
