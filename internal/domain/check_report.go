package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
	StatusFailed   = "failed"
)

const (
	ErrCodeUnsupportedFormat = "unsupported_format"
	ErrCodeFileTooLarge      = "file_too_large"
	ErrCodeIOFailed          = "io_failed"
	ErrCodeConfigNotFound    = "config_not_found"
	ErrCodeConfigInvalid     = "config_invalid"
)

// CheckReport 是 `vidpreview check` 对外稳定输出（stdout JSON / --report 文件）的结构。
type CheckReport struct {
	Paths []string `json:"paths"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary CheckSummary `json:"summary"`
	Items   []CheckItem  `json:"items"`
}

type CheckSummary struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
	Failed   int `json:"failed"`
}

type CheckItem struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	MediaType string `json:"media_type"`
	Size      int64  `json:"size"`
	SizeText  string `json:"size_text"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC
// 2) items 稳定排序：按 path 字典序；path=="" 的合成条目排在最后
// 3) summary 由 items 计算得出
func (r *CheckReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool {
		a := r.Items[i].Path
		b := r.Items[j].Path
		if a == "" {
			return false
		}
		if b == "" {
			return true
		}
		return a < b
	})

	var s CheckSummary
	for _, it := range r.Items {
		switch it.Status {
		case StatusAccepted:
			s.Accepted++
		case StatusRejected:
			s.Rejected++
		case StatusFailed:
			s.Failed++
		}
	}
	r.Summary = s
}

// MarshalJSON 集中约束输出：nil 切片输出为 []，而不是 null。
func (r CheckReport) MarshalJSON() ([]byte, error) {
	type Alias CheckReport
	a := Alias(r)
	if a.Paths == nil {
		a.Paths = []string{}
	}
	if a.Items == nil {
		a.Items = []CheckItem{}
	}
	return json.Marshal(a)
}
