package domain

import "time"

// VideoEntry 是一个已接纳的视频及其预览资源。
//
// 不变量（实现必须遵守）：
// - ID 在条目生命周期内稳定且唯一，是唯一的查找键
// - PreviewURL 在删除或 teardown 时恰好释放一次
// - Name/Size 取自 File，不可变
type VideoEntry struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	MediaType  string    `json:"media_type"`
	PreviewURL string    `json:"preview_url"`
	AdmittedAt time.Time `json:"admitted_at"`

	File Candidate `json:"-"`
}
