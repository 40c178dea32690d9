// Package entryid 生成条目与预览资源使用的不透明 ID。
package entryid

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// 前缀区分 ID 的用途，便于在日志与 URL 中辨认。
const (
	PrefixVideo = "video_"
	PrefixBlob  = "blob_"
)

var (
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
)

// New 返回 prefix + 小写 ULID。同一毫秒内单调递增，因此按 ID 排序即按生成顺序排序。
func New(prefix string) string {
	mu.Lock()
	defer mu.Unlock()
	if entropy == nil {
		entropy = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	}
	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	return prefix + strings.ToLower(id.String())
}

// Video 返回一个新的条目 ID。
func Video() string { return New(PrefixVideo) }

// Blob 返回一个新的预览资源 token。
func Blob() string { return New(PrefixBlob) }

// Valid 判断 value 是否为 prefix + ULID。
func Valid(prefix, value string) bool {
	if !strings.HasPrefix(value, prefix) {
		return false
	}
	_, err := ulid.ParseStrict(strings.ToUpper(strings.TrimPrefix(value, prefix)))
	return err == nil
}
