// Package render 把预览状态维护为一份 HTML 文档（goquery），供 HTTP 层直接输出。
//
// Page 同时实现 preview.RenderSink / ProgressSink / ErrorSink。
// 所有交互都是普通链接与表单，按条目 ID 路由，不在标记里嵌入脚本回调。
package render

import (
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/vidpreview/internal/domain"
	"github.com/John-Robertt/vidpreview/internal/format"
	"github.com/John-Robertt/vidpreview/internal/preview"
)

var (
	_ preview.RenderSink   = (*Page)(nil)
	_ preview.ProgressSink = (*Page)(nil)
	_ preview.ErrorSink    = (*Page)(nil)
)

// DefaultNameMaxLength 是卡片上文件名的最大展示长度。
const DefaultNameMaxLength = 30

const (
	displayBlock = "display: block"
	displayFlex  = "display: flex"
	displayNone  = "display: none"
)

const pageTemplate = `<!DOCTYPE html>
<html lang="zh-CN">
<head>
<meta charset="utf-8"/>
<title>视频上传预览</title>
</head>
<body>
<div id="uploadProgress" class="upload-progress" style="display: none">
  <div class="progress-bar"><div id="progressFill" class="progress-fill" style="width: 0%"></div></div>
  <span id="progressText" class="progress-text">0%</span>
</div>
<div id="errorMessage" class="error-message" style="display: none">
  <pre id="errorText" class="error-text"></pre>
  <form method="post" action="/error/dismiss"><button type="submit" class="error-close">×</button></form>
</div>
<section id="previewSection" class="preview-section" style="display: none">
  <h2>已上传的视频</h2>
  <div id="videoGrid" class="video-grid"></div>
</section>
<div id="playerModal" class="player-modal" style="display: none" data-video-id="">
  <a class="player-close" href="/player/close">关闭</a>
  <video id="playerVideo" controls="" autoplay=""></video>
</div>
</body>
</html>`

// Page 是并发安全的预览页面文档。
type Page struct {
	nameMax int

	mu  sync.Mutex
	doc *goquery.Document
}

// NewPage 解析内置模板。nameMax<=0 时使用 DefaultNameMaxLength。
func NewPage(nameMax int) (*Page, error) {
	if nameMax <= 0 {
		nameMax = DefaultNameMaxLength
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageTemplate))
	if err != nil {
		return nil, fmt.Errorf("render: 解析页面模板失败：%w", err)
	}
	return &Page{nameMax: nameMax, doc: doc}, nil
}

// HTML 输出当前文档。
func (p *Page) HTML() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.Html()
}

func (p *Page) InsertCard(e domain.VideoEntry) {
	card := cardHTML(e, p.nameMax)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc.Find("#videoGrid").AppendHtml(card)
}

func (p *Page) RemoveCard(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.findCardLocked(id).Remove()
}

func (p *Page) SetPreviewVisible(visible bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	style := displayNone
	if visible {
		style = displayBlock
	}
	p.doc.Find("#previewSection").SetAttr("style", style)
}

// Present 打开播放器模态框。
func (p *Page) Present(e domain.VideoEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	modal := p.doc.Find("#playerModal")
	modal.SetAttr("data-video-id", e.ID)
	modal.SetAttr("style", displayFlex)
	p.doc.Find("#playerVideo").SetAttr("src", e.PreviewURL)
}

// ClosePlayer 关闭播放器模态框（背景点击 / ESC 的服务端对应物）。
func (p *Page) ClosePlayer() {
	p.mu.Lock()
	defer p.mu.Unlock()
	modal := p.doc.Find("#playerModal")
	modal.SetAttr("data-video-id", "")
	modal.SetAttr("style", displayNone)
	p.doc.Find("#playerVideo").RemoveAttr("src")
}

func (p *Page) ShowProgress() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc.Find("#uploadProgress").SetAttr("style", displayBlock)
}

func (p *Page) SetProgress(percent int, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc.Find("#progressFill").SetAttr("style", fmt.Sprintf("width: %d%%", percent))
	p.doc.Find("#progressText").SetText(text)
}

func (p *Page) HideProgress() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc.Find("#uploadProgress").SetAttr("style", displayNone)
}

func (p *Page) ShowError(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc.Find("#errorText").SetText(msg)
	p.doc.Find("#errorMessage").SetAttr("style", displayFlex)
}

func (p *Page) HideError() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc.Find("#errorMessage").SetAttr("style", displayNone)
}

// CardIDs 按展示顺序返回卡片 ID。
func (p *Page) CardIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var ids []string
	p.doc.Find("#videoGrid .video-card").Each(func(_ int, s *goquery.Selection) {
		if id, ok := s.Attr("data-video-id"); ok {
			ids = append(ids, id)
		}
	})
	return ids
}

// PreviewVisible 报告预览区域当前是否显示。
func (p *Page) PreviewVisible() bool {
	return p.styleOf("#previewSection") != displayNone
}

// ProgressVisible 报告进度条当前是否显示。
func (p *Page) ProgressVisible() bool {
	return p.styleOf("#uploadProgress") != displayNone
}

// ProgressText 返回进度文字（例如 "42%"）。
func (p *Page) ProgressText() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.Find("#progressText").Text()
}

// ErrorVisible 报告错误信息当前是否显示。
func (p *Page) ErrorVisible() bool {
	return p.styleOf("#errorMessage") != displayNone
}

// ErrorText 返回错误信息文本。
func (p *Page) ErrorText() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.Find("#errorText").Text()
}

// Playing 返回播放器中的条目 ID；未播放时为空。
func (p *Page) Playing() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, _ := p.doc.Find("#playerModal").Attr("data-video-id")
	return id
}

func (p *Page) styleOf(sel string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	style, _ := p.doc.Find(sel).Attr("style")
	return style
}

func (p *Page) findCardLocked(id string) *goquery.Selection {
	// ID 由 entryid 生成，只含 [a-z0-9_]；其他字符一律视为不存在。
	if id == "" || strings.ContainsAny(id, "\"\\]") {
		return p.doc.FindNodes()
	}
	return p.doc.Find(`#videoGrid .video-card[data-video-id="` + id + `"]`)
}

func cardHTML(e domain.VideoEntry, nameMax int) string {
	id := html.EscapeString(e.ID)
	return fmt.Sprintf(`<div class="video-card" data-video-id="%s">
  <video class="video-preview" preload="metadata"><source src="%s" type="%s"/>您的浏览器不支持视频播放。</video>
  <div class="video-info">
    <div class="video-name" title="%s">%s</div>
    <div class="video-size">%s</div>
    <div class="video-actions">
      <a class="action-btn play-btn" data-action="play" data-video-id="%s" href="/videos/%s/play">▶️ 播放</a>
      <a class="action-btn delete-btn" data-action="delete" data-video-id="%s" href="/videos/%s/delete">🗑️ 删除</a>
    </div>
  </div>
</div>`,
		id,
		html.EscapeString(e.PreviewURL),
		html.EscapeString(e.MediaType),
		html.EscapeString(e.Name),
		html.EscapeString(format.TruncateName(e.Name, nameMax)),
		html.EscapeString(format.ByteSize(e.Size)),
		id, id,
		id, id,
	)
}
