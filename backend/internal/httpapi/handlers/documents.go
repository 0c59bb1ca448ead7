package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"

	"richCollab/backend/internal/collab"
	"richCollab/backend/internal/ot/apply"
	"richCollab/backend/internal/ot/doc"
	"richCollab/backend/internal/ot/op"
	"richCollab/backend/internal/store"
)

type DocumentHandler struct {
	svc collab.Service
}

func NewDocumentHandler(svc collab.Service) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

// Register 挂载 /collab 下的文档接口，调用方负责先挂鉴权中间件。
func (h *DocumentHandler) Register(g *gin.RouterGroup) {
	g.POST("/docs", h.CreateDocument)
	g.GET("/docs/:docID", h.GetDocument)
	g.POST("/docs/:docID/ops", h.SubmitOp)
	g.GET("/docs/:docID/ops", h.ListOps)
	g.POST("/docs/:docID/snapshot", h.SaveSnapshot)
	g.POST("/apply", h.Apply)
}

type createDocumentRequest struct {
	Title string `json:"title"`
}

type submitOpRequest struct {
	BaseRevision uint64 `json:"baseRevision"`
	ClientID     string `json:"clientId"`
	ClientSeq    uint64 `json:"clientSeq"`
	Op           op.Op  `json:"op"`
}

type applyRequest struct {
	Document doc.Span `json:"document"`
	Op       op.Op    `json:"op"`
}

// bindJSON 用 go-json 解析请求体
func bindJSON(c *gin.Context, dst any) bool {
	body, err := c.GetRawData()
	if err == nil {
		err = json.Unmarshal(body, dst)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "BAD_REQUEST", "message": err.Error()})
		return false
	}
	return true
}

// writeError 把领域错误映射为 HTTP 状态码
func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, collab.ErrRevisionConflict):
		status, code = http.StatusConflict, "REVISION_CONFLICT"
	case errors.Is(err, collab.ErrDuplicateOrOutOfOrder):
		status, code = http.StatusConflict, "DUPLICATE_OR_OUT_OF_ORDER"
	case errors.Is(err, collab.ErrHistoryTrimmed):
		status, code = http.StatusGone, "HISTORY_TRIMMED"
	case errors.Is(err, store.ErrDocumentNotFound):
		status, code = http.StatusNotFound, "DOCUMENT_NOT_FOUND"
	case errors.Is(err, apply.ErrMalformedOperation):
		status, code = http.StatusUnprocessableEntity, "MALFORMED_OPERATION"
	case errors.Is(err, apply.ErrTooDeep):
		status, code = http.StatusUnprocessableEntity, "DOCUMENT_TOO_DEEP"
	}
	c.JSON(status, gin.H{"code": code, "message": err.Error()})
}

func (h *DocumentHandler) CreateDocument(c *gin.Context) {
	// gin.Context 对每个请求隔离，userId 由鉴权中间件写入
	ownerID := c.GetUint64("userId")
	var req createDocumentRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": "BAD_REQUEST", "message": "title required"})
		return
	}
	docID, err := h.svc.CreateDocument(c.Request.Context(), ownerID, req.Title)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"docId": docID, "ownerId": ownerID, "title": req.Title})
}

// GetDocument 返回文档树和版本号，ETag 为编码后内容的 xxh3。
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	docID := c.Param("docID")
	span, rev, err := h.svc.LoadDocument(c.Request.Context(), docID)
	if err != nil {
		writeError(c, err)
		return
	}
	encoded, err := doc.Encode(span)
	if err != nil {
		writeError(c, err)
		return
	}
	etag := fmt.Sprintf(`"%016x"`, store.Checksum(encoded))
	c.Header("ETag", etag)
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.JSON(http.StatusOK, gin.H{"docId": docID, "revision": rev, "content": json.RawMessage(encoded)})
}

func (h *DocumentHandler) SubmitOp(c *gin.Context) {
	docID := c.Param("docID")
	var req submitOpRequest
	if !bindJSON(c, &req) {
		return
	}
	applied, err := h.svc.Submit(c.Request.Context(), docID, c.GetUint64("userId"),
		req.BaseRevision, req.ClientID, req.ClientSeq, req.Op)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, applied)
}

func (h *DocumentHandler) ListOps(c *gin.Context) {
	docID := c.Param("docID")
	from, err := strconv.ParseUint(c.DefaultQuery("from", "0"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "BAD_REQUEST", "message": "invalid from"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"code": "BAD_REQUEST", "message": "invalid limit"})
		return
	}
	ops, err := h.svc.OpsSince(c.Request.Context(), docID, from, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	if ops == nil {
		ops = []collab.AppliedOp{}
	}
	c.JSON(http.StatusOK, gin.H{"docId": docID, "ops": ops})
}

func (h *DocumentHandler) SaveSnapshot(c *gin.Context) {
	docID := c.Param("docID")
	if err := h.svc.SaveSnapshot(c.Request.Context(), docID); err != nil {
		writeError(c, err)
		return
	}
	rev, _ := h.svc.CurrentRevision(c.Request.Context(), docID)
	c.JSON(http.StatusOK, gin.H{"docId": docID, "revision": rev})
}

// Apply 无状态地把操作应用到请求里给出的文档上，返回新文档和两段轨迹。
func (h *DocumentHandler) Apply(c *gin.Context) {
	var req applyRequest
	if !bindJSON(c, &req) {
		return
	}
	res, trace, err := apply.ApplyTraced(req.Document, req.Op)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"document": res, "trace": trace})
}
