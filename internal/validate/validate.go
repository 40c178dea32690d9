// Package validate 决定候选文件能否进入接纳流程。
package validate

import (
	"fmt"
	"strings"

	"github.com/John-Robertt/vidpreview/internal/domain"
	"github.com/John-Robertt/vidpreview/internal/format"
)

// DefaultMaxFileSize 是单个文件的大小上限（100 MiB）。
const DefaultMaxFileSize int64 = 100 * 1024 * 1024

// ReasonUnsupportedFormat 是格式不支持时展示给用户的原因。
const ReasonUnsupportedFormat = "不支持的文件格式"

// DefaultAllowedTypes 是允许的声明媒体类型。
//
// 前七项是 mp4/avi/mov/wmv/flv/webm/mkv 的字面类型；其余是嗅探器对同一容器报告的注册别名。
var DefaultAllowedTypes = []string{
	"video/mp4",
	"video/avi",
	"video/mov",
	"video/wmv",
	"video/flv",
	"video/webm",
	"video/mkv",

	"video/x-msvideo",
	"video/quicktime",
	"video/x-ms-wmv",
	"video/x-ms-asf",
	"video/x-flv",
	"video/x-matroska",
}

// Result 是单个文件的校验结果。Accepted=false 时 Code/Reason 非空。
type Result struct {
	Accepted bool
	Code     string
	Reason   string
}

// Rejection 是被拒绝的候选文件及原因。
type Rejection struct {
	Candidate domain.Candidate
	Code      string
	Reason    string
}

// Line 返回 "<name>: <reason>"，用于合并错误信息。
func (r Rejection) Line() string {
	return r.Candidate.Name + ": " + r.Reason
}

// Validator 持有固定的允许类型集合与大小上限。零值不可用，请用 New。
type Validator struct {
	allowed map[string]struct{}
	maxSize int64
}

// New 构造 Validator。allowed 为空时使用 DefaultAllowedTypes；maxSize<=0 时使用 DefaultMaxFileSize。
func New(allowed []string, maxSize int64) *Validator {
	if len(allowed) == 0 {
		allowed = DefaultAllowedTypes
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	m := make(map[string]struct{}, len(allowed))
	for _, t := range allowed {
		t = normalizeType(t)
		if t == "" {
			continue
		}
		m[t] = struct{}{}
	}
	return &Validator{allowed: m, maxSize: maxSize}
}

// MaxSize 返回生效的大小上限。
func (v *Validator) MaxSize() int64 { return v.maxSize }

// Validate 是纯函数：先查类型，再查大小。
func (v *Validator) Validate(c domain.Candidate) Result {
	if _, ok := v.allowed[normalizeType(c.MediaType)]; !ok {
		return Result{Code: domain.ErrCodeUnsupportedFormat, Reason: ReasonUnsupportedFormat}
	}
	if c.Size > v.maxSize {
		return Result{
			Code:   domain.ErrCodeFileTooLarge,
			Reason: fmt.Sprintf("文件大小超过限制 (%s)", format.ByteSize(v.maxSize)),
		}
	}
	return Result{Accepted: true}
}

// Partition 按输入顺序把候选文件分成接纳与拒绝两组。
func (v *Validator) Partition(cands []domain.Candidate) (accepted []domain.Candidate, rejected []Rejection) {
	for _, c := range cands {
		r := v.Validate(c)
		if r.Accepted {
			accepted = append(accepted, c)
			continue
		}
		rejected = append(rejected, Rejection{Candidate: c, Code: r.Code, Reason: r.Reason})
	}
	return accepted, rejected
}

// JoinRejections 把拒绝项合并为一条多行错误信息。
func JoinRejections(rejected []Rejection) string {
	lines := make([]string, 0, len(rejected))
	for _, r := range rejected {
		lines = append(lines, r.Line())
	}
	return strings.Join(lines, "\n")
}

// normalizeType 小写并去掉参数（"video/MP4; codecs=avc1" -> "video/mp4"）。
func normalizeType(t string) string {
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return strings.ToLower(strings.TrimSpace(t))
}
