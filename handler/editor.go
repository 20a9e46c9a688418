package handler

import (
	"io"
	"net/http"
	"road-editor/editor"
	"road-editor/model"
	"road-editor/utils"
	"strconv"

	"github.com/gin-gonic/gin"
	"seehuhn.de/go/geom/vec"
)

// PointRequest 一个本地平面坐标
type PointRequest struct {
	X *float64 `json:"x" binding:"required"`
	Y *float64 `json:"y" binding:"required"`
}

func (p PointRequest) Vec() vec.Vec2 {
	return vec.Vec2{X: *p.X, Y: *p.Y}
}

// AxisRequest 新建轴线请求
type AxisRequest struct {
	ID       string         `json:"id"`
	Vertices []PointRequest `json:"vertices" binding:"required,dive"`
}

// VertexRequest 插入顶点请求, 不指定 index 时追加到末尾
type VertexRequest struct {
	Index *int     `json:"index"`
	X     *float64 `json:"x" binding:"required"`
	Y     *float64 `json:"y" binding:"required"`
}

// RoundingRequest 圆角系数请求
type RoundingRequest struct {
	Factor *float64 `json:"factor" binding:"required"`
}

// ViewRequest 视图请求
type ViewRequest struct {
	CenterX float64 `json:"center_x"`
	CenterY float64 `json:"center_y"`
	ScaleX  float64 `json:"scale_x" binding:"required"`
	ScaleY  float64 `json:"scale_y" binding:"required"`
}

// GetEditorFeatures 立即执行等待中的重算并返回最新要素, 圆角截断以 warnings 返回
func (h *Handler) GetEditorFeatures(c *gin.Context) {
	names, err := parseLayers(c.Query("layer"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	snap := h.Session.Flush()
	resp := layerResponse(&snap.Features, names)
	resp["version"] = snap.Version
	resp["view"] = snap.View
	resp["warnings"] = snap.Warnings
	resp["roads"] = len(snap.Model.Roads)
	c.JSON(http.StatusOK, resp)
}

// ListAxes 当前所有轴线
func (h *Handler) ListAxes(c *gin.Context) {
	axes := h.Session.Axes()
	if axes == nil {
		axes = []model.EditableAxis{}
	}
	c.JSON(http.StatusOK, gin.H{"axes": axes, "version": h.Session.Version()})
}

// CreateAxis 新建轴线
func (h *Handler) CreateAxis(c *gin.Context) {
	var req AxisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误: " + err.Error()})
		return
	}
	vertices := make([]vec.Vec2, len(req.Vertices))
	for i, p := range req.Vertices {
		vertices[i] = p.Vec()
	}
	axis, err := h.Session.AddAxis(req.ID, vertices)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"axis": axis, "version": h.Session.Version()})
}

// DeleteAxis 删除轴线
func (h *Handler) DeleteAxis(c *gin.Context) {
	h.mutated(c, h.Session.DeleteAxis(c.Param("id")))
}

// InsertVertex 插入顶点
func (h *Handler) InsertVertex(c *gin.Context) {
	var req VertexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误: " + err.Error()})
		return
	}
	p := vec.Vec2{X: *req.X, Y: *req.Y}
	if req.Index == nil {
		h.mutated(c, h.Session.AppendVertex(c.Param("id"), p))
		return
	}
	h.mutated(c, h.Session.InsertVertex(c.Param("id"), *req.Index, p))
}

// MoveVertex 移动顶点
func (h *Handler) MoveVertex(c *gin.Context) {
	idx, ok := vertexIndex(c)
	if !ok {
		return
	}
	var req PointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误: " + err.Error()})
		return
	}
	h.mutated(c, h.Session.MoveVertex(c.Param("id"), idx, req.Vec()))
}

// DeleteVertex 删除顶点
func (h *Handler) DeleteVertex(c *gin.Context) {
	idx, ok := vertexIndex(c)
	if !ok {
		return
	}
	h.mutated(c, h.Session.DeleteVertex(c.Param("id"), idx))
}

// SetRounding 设置圆角系数
func (h *Handler) SetRounding(c *gin.Context) {
	idx, ok := vertexIndex(c)
	if !ok {
		return
	}
	var req RoundingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误: " + err.Error()})
		return
	}
	h.mutated(c, h.Session.SetRoundingFactor(c.Param("id"), idx, *req.Factor))
}

// SetView 更新视图 (屏幕空间容差随之变化)
func (h *Handler) SetView(c *gin.Context) {
	var req ViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误: " + err.Error()})
		return
	}
	h.mutated(c, h.Session.SetView(editor.View{
		CenterX: req.CenterX,
		CenterY: req.CenterY,
		ScaleX:  req.ScaleX,
		ScaleY:  req.ScaleY,
	}))
}

// Reset 清空所有轴线
func (h *Handler) Reset(c *gin.Context) {
	h.mutated(c, h.Session.Reset())
}

// Export 导出 XML. lat/lon 同时给出时作为导出原点.
func (h *Handler) Export(c *gin.Context) {
	var center *model.Origin
	latRaw, lonRaw := c.Query("lat"), c.Query("lon")
	if latRaw != "" || lonRaw != "" {
		lat, err1 := strconv.ParseFloat(latRaw, 64)
		lon, err2 := strconv.ParseFloat(lonRaw, 64)
		if err1 != nil || err2 != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "lat/lon 必须同时给出且在有效范围内"})
			return
		}
		center = &model.Origin{Lat: lat, Lon: lon}
	}

	data, err := h.Session.Export(center)
	if err != nil {
		utils.LogError("export: %v", err)
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="road-editor.xodr"`)
	c.Data(http.StatusOK, "application/xml; charset=utf-8", data)
}

// Import 导入 XML, 替换当前所有轴线
func (h *Handler) Import(c *gin.Context) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxDocumentSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "读取请求体失败"})
		return
	}
	if len(data) > maxDocumentSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "文档过大"})
		return
	}
	if err := h.Session.Import(data); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"axes": len(h.Session.Axes()), "version": h.Session.Version()})
}

// mutated 修改类接口的统一响应. 重算是延迟执行的, 这里只返回新的版本号.
func (h *Handler) mutated(c *gin.Context, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"version": h.Session.Version()})
}

func vertexIndex(c *gin.Context) (int, bool) {
	idx, err := strconv.Atoi(c.Param("idx"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "顶点下标必须是整数"})
		return 0, false
	}
	return idx, true
}
