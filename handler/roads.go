package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"road-editor/algo"
	"road-editor/model"
	"road-editor/opendrive"
	"road-editor/utils"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"seehuhn.de/go/geom/rect"
)

// maxDocumentSize 上传文档大小上限
const maxDocumentSize = 32 << 20

// roadFeatures 一个文档的解析结果与要素
type roadFeatures struct {
	model    *model.RoadModel
	features model.FeatureSet
}

// layers 可按 ?layer= 选择的要素图层
var layers = map[string]func(fs *model.FeatureSet) any{
	"centerlines":   func(fs *model.FeatureSet) any { return fs.Centerlines },
	"lane_polygons": func(fs *model.FeatureSet) any { return fs.LanePolygons },
	"markings":      func(fs *model.FeatureSet) any { return fs.Markings },
	"edges":         func(fs *model.FeatureSet) any { return fs.Edges },
	"intersections": func(fs *model.FeatureSet) any { return fs.Intersections },
}

var layerOrder = []string{"centerlines", "lane_polygons", "markings", "edges", "intersections"}

// parseLayers 解析逗号分隔的图层名, 为空时返回全部图层
func parseLayers(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return layerOrder, nil
	}
	var out []string
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if _, ok := layers[name]; !ok {
			return nil, fmt.Errorf("unknown layer %q", name)
		}
		out = append(out, name)
	}
	return out, nil
}

// layerResponse 按图层组装响应, 空集合输出为 []
func layerResponse(fs *model.FeatureSet, names []string) gin.H {
	resp := gin.H{"bounds": fs.Bounds}
	for _, name := range names {
		v := layers[name](fs)
		if isNilSlice(v) {
			v = []struct{}{}
		}
		resp[name] = v
	}
	return resp
}

func isNilSlice(v any) bool {
	switch s := v.(type) {
	case []model.Centerline:
		return s == nil
	case []model.LaneRun:
		return s == nil
	case []model.Marking:
		return s == nil
	case []model.Edge:
		return s == nil
	case []model.IntersectionPoint:
		return s == nil
	}
	return false
}

// geoBounds 包围盒两个角点的经纬度
func geoBounds(origin model.Origin, b rect.Rect) gin.H {
	return gin.H{
		"min": utils.LocalToGeo(origin, b.LLx, b.LLy),
		"max": utils.LocalToGeo(origin, b.URx, b.URy),
	}
}

// UploadRoad 上传路网文档 (请求体为 XML)
func (h *Handler) UploadRoad(c *gin.Context) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxDocumentSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "读取请求体失败"})
		return
	}
	if len(data) > maxDocumentSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "文档过大"})
		return
	}

	rm, err := opendrive.Parse(data, h.Origin)
	if err != nil {
		respondError(c, err)
		return
	}

	doc := &model.RoadDocument{
		ID:      uuid.NewString(),
		Name:    c.DefaultQuery("name", "untitled"),
		Content: string(data),
	}
	if err := h.Documents.Save(c.Request.Context(), doc); err != nil {
		utils.LogError("saving document: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "保存文档失败"})
		return
	}

	rf := h.buildFeatures(rm)
	h.mu.Lock()
	h.features[doc.ID] = rf
	h.mu.Unlock()

	skipped := rm.Skipped
	if skipped == nil {
		skipped = []model.SkippedRoad{}
	}
	utils.LogInfo("document %s: %d roads, %d skipped", doc.ID, len(rm.Roads), len(skipped))
	c.JSON(http.StatusCreated, gin.H{
		"id":      doc.ID,
		"name":    doc.Name,
		"roads":   len(rm.Roads),
		"skipped": skipped,
		"bounds":  rf.features.Bounds,
		"origin":  rm.Header.Origin,
	})
}

// ListRoads 列出已上传的文档
func (h *Handler) ListRoads(c *gin.Context) {
	docs, err := h.Documents.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]gin.H, 0, len(docs))
	for _, d := range docs {
		out = append(out, gin.H{"id": d.ID, "name": d.Name, "created_at": d.CreatedAt})
	}
	c.JSON(http.StatusOK, gin.H{"documents": out, "count": len(out)})
}

// GetRoadFeatures 返回文档的要素集合, ?layer= 可选择部分图层
func (h *Handler) GetRoadFeatures(c *gin.Context) {
	names, err := parseLayers(c.Query("layer"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rf, err := h.loadFeatures(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := layerResponse(&rf.features, names)
	resp["id"] = c.Param("id")
	resp["origin"] = rf.model.Header.Origin
	resp["geo_bounds"] = geoBounds(rf.model.Header.Origin, rf.features.Bounds)
	c.JSON(http.StatusOK, resp)
}

// loadFeatures 优先使用缓存, 否则从存储中读出文档重新构建
func (h *Handler) loadFeatures(ctx context.Context, id string) (*roadFeatures, error) {
	h.mu.Lock()
	rf, ok := h.features[id]
	h.mu.Unlock()
	if ok {
		return rf, nil
	}

	doc, err := h.Documents.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rm, err := opendrive.Parse([]byte(doc.Content), h.Origin)
	if err != nil {
		return nil, fmt.Errorf("stored document %s: %w", id, err)
	}
	rf = h.buildFeatures(rm)

	h.mu.Lock()
	h.features[id] = rf
	h.mu.Unlock()
	return rf, nil
}

func (h *Handler) buildFeatures(rm *model.RoadModel) *roadFeatures {
	return &roadFeatures{model: rm, features: algo.BuildModel(rm, h.Build)}
}
