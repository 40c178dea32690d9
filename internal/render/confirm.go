package render

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/vidpreview/internal/domain"
	"github.com/John-Robertt/vidpreview/internal/format"
)

const confirmTemplate = `<!DOCTYPE html>
<html lang="zh-CN">
<head>
<meta charset="utf-8"/>
<title>删除确认</title>
</head>
<body>
<div id="confirmDialog" class="confirm-dialog">
  <p id="confirmPrompt" class="confirm-prompt"></p>
  <p class="confirm-target"><span id="confirmName"></span> <span id="confirmSize" class="video-size"></span></p>
  <form id="confirmForm" method="post" action="">
    <button type="submit" name="confirm" value="yes">确定</button>
    <button type="submit" name="confirm" value="no">取消</button>
  </form>
</div>
</body>
</html>`

// ConfirmHTML 渲染删除确认页：“确定”提交 confirm=yes，“取消”提交 confirm=no，均 POST 到 /videos/{id}/delete。
func ConfirmHTML(e domain.VideoEntry, prompt string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(confirmTemplate))
	if err != nil {
		return "", fmt.Errorf("render: 解析确认模板失败：%w", err)
	}
	doc.Find("#confirmPrompt").SetText(prompt)
	doc.Find("#confirmName").SetText(e.Name)
	doc.Find("#confirmSize").SetText(format.ByteSize(e.Size))
	doc.Find("#confirmForm").SetAttr("action", "/videos/"+url.PathEscape(e.ID)+"/delete")
	return doc.Html()
}
