package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/John-Robertt/vidpreview/internal/blob"
	"github.com/John-Robertt/vidpreview/internal/domain"
	"github.com/John-Robertt/vidpreview/internal/format"
	"github.com/John-Robertt/vidpreview/internal/preview"
	"github.com/John-Robertt/vidpreview/internal/render"
	"github.com/John-Robertt/vidpreview/internal/scan"
	"github.com/John-Robertt/vidpreview/internal/validate"
)

const htmlContentType = "text/html; charset=utf-8"

type intakeRequest struct {
	Paths []string `json:"paths" binding:"required,min=1"`
}

type rejectionView struct {
	Name   string `json:"name"`
	Code   string `json:"error_code"`
	Reason string `json:"reason"`
}

type videoView struct {
	domain.VideoEntry
	DisplayName string `json:"display_name"`
	SizeText    string `json:"size_text"`
}

type intakeResponse struct {
	BatchID     string          `json:"batch_id,omitempty"`
	Accepted    int             `json:"accepted"`
	Rejected    []rejectionView `json:"rejected"`
	Error       string          `json:"error,omitempty"`
	MaxFileSize int64           `json:"max_file_size"`
	Entries     []videoView     `json:"entries,omitempty"`
}

func (s *Server) view(e domain.VideoEntry) videoView {
	return videoView{
		VideoEntry:  e,
		DisplayName: format.TruncateName(e.Name, s.nameMax),
		SizeText:    format.ByteSize(e.Size),
	}
}

func (s *Server) handleIndex(c *gin.Context) {
	out, err := s.page.HTML()
	if err != nil {
		s.log.Error().Err(err).Msg("render page failed")
		c.String(http.StatusInternalServerError, "页面渲染失败")
		return
	}
	c.Data(http.StatusOK, htmlContentType, []byte(out))
}

func (s *Server) handleBlob(c *gin.Context) {
	obj, err := s.blobs.Open(c.Param("token"))
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			c.Status(http.StatusNotFound)
			return
		}
		s.log.Warn().Err(err).Msg("open preview resource failed")
		c.Status(http.StatusInternalServerError)
		return
	}
	defer obj.Body.Close()

	c.Header("Content-Type", obj.MediaType)
	c.Header("Cache-Control", "no-store")
	http.ServeContent(c.Writer, c.Request, obj.Name, obj.ModTime, obj.Body)
}

// handleIntake 展开路径、校验并开始接纳。?wait=true 时等待批次完成并返回本批次条目。
func (s *Server) handleIntake(c *gin.Context) {
	var req intakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求体需要非空的 paths 数组"})
		return
	}

	cands, err := scan.Candidates(req.Paths, s.excludeDirs)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	batch, rejected := s.mgr.ProcessCandidates(cands)

	resp := intakeResponse{
		Accepted:    len(cands) - len(rejected),
		Rejected:    make([]rejectionView, 0, len(rejected)),
		Error:       validate.JoinRejections(rejected),
		MaxFileSize: s.mgr.MaxFileSize(),
	}
	for _, r := range rejected {
		resp.Rejected = append(resp.Rejected, rejectionView{Name: r.Candidate.Name, Code: r.Code, Reason: r.Reason})
	}
	if batch == nil {
		c.JSON(http.StatusOK, resp)
		return
	}
	resp.BatchID = batch.ID

	if c.Query("wait") != "true" {
		c.JSON(http.StatusAccepted, resp)
		return
	}
	if err := batch.Wait(c.Request.Context()); err != nil {
		c.JSON(http.StatusAccepted, resp)
		return
	}
	for _, e := range batch.Entries() {
		resp.Entries = append(resp.Entries, s.view(e))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListVideos(c *gin.Context) {
	entries := s.mgr.Entries()
	out := make([]videoView, 0, len(entries))
	for _, e := range entries {
		out = append(out, s.view(e))
	}
	c.JSON(http.StatusOK, gin.H{"videos": out, "preview_visible": s.mgr.PreviewVisible()})
}

func (s *Server) handleGetVideo(c *gin.Context) {
	e, ok := s.mgr.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "视频不存在"})
		return
	}
	c.JSON(http.StatusOK, s.view(e))
}

// handleDeleteVideo：confirm=true 视为用户已确认；否则返回 409 与确认提示，不删除。
func (s *Server) handleDeleteVideo(c *gin.Context) {
	id := c.Param("id")
	if _, ok := s.mgr.Get(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "视频不存在"})
		return
	}

	confirmed := c.Query("confirm") == "true"
	confirm := preview.Declined
	if confirmed {
		confirm = preview.Confirmed
	}

	deleted, err := s.mgr.Delete(c.Request.Context(), id, confirm)
	switch {
	case err != nil:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case deleted:
		c.JSON(http.StatusOK, gin.H{"deleted": true, "id": id})
	case !confirmed:
		c.JSON(http.StatusConflict, gin.H{"deleted": false, "prompt": preview.ConfirmPrompt})
	default:
		// 确认期间已被其他请求删除。
		c.JSON(http.StatusNotFound, gin.H{"error": "视频不存在"})
	}
}

func (s *Server) handleDeleteConfirm(c *gin.Context) {
	e, ok := s.mgr.Get(c.Param("id"))
	if !ok {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	out, err := render.ConfirmHTML(e, preview.ConfirmPrompt)
	if err != nil {
		s.log.Error().Err(err).Msg("render confirm page failed")
		c.String(http.StatusInternalServerError, "页面渲染失败")
		return
	}
	c.Data(http.StatusOK, htmlContentType, []byte(out))
}

func (s *Server) handleDeleteForm(c *gin.Context) {
	answer := c.PostForm("confirm")
	_, err := s.mgr.Delete(c.Request.Context(), c.Param("id"), preview.ConfirmFunc(func(_ context.Context, _ string) bool {
		return answer == "yes"
	}))
	if err != nil {
		c.String(http.StatusServiceUnavailable, err.Error())
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) handlePlay(c *gin.Context) {
	if !s.mgr.Play(c.Param("id")) {
		c.String(http.StatusNotFound, "视频不存在")
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) handleClosePlayer(c *gin.Context) {
	s.page.ClosePlayer()
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) handleDismissError(c *gin.Context) {
	s.mgr.DismissError()
	c.Redirect(http.StatusSeeOther, "/")
}
