package handler

import (
	"net/http"
	"road-editor/model"
	"road-editor/utils"

	"github.com/gin-gonic/gin"
)

// RouteRequest 路径规划请求: 给出节点 ID, 或给出坐标后吸附到最近的节点
type RouteRequest struct {
	StartID string        `json:"start_id"`
	EndID   string        `json:"end_id"`
	Start   *PointRequest `json:"start,omitempty"`
	End     *PointRequest `json:"end,omitempty"`
}

// RouteResponse 路径规划响应
type RouteResponse struct {
	Found       bool        `json:"found"`
	Path        []RouteNode `json:"path,omitempty"`
	Roads       []string    `json:"roads,omitempty"`
	Distance    float64     `json:"distance,omitempty"`     // 米, 局部平面坐标
	GeoDistance float64     `json:"geo_distance,omitempty"` // 米, 经纬度大圆距离
	Message     string      `json:"message,omitempty"`
}

// RouteNode 路径节点信息
type RouteNode struct {
	ID   string  `json:"id"`
	Kind string  `json:"kind"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// GetNodes 当前路网的所有节点
func (h *Handler) GetNodes(c *gin.Context) {
	snap := h.Session.Flush()
	nodes := make([]RouteNode, 0, len(snap.Network.NodeList))
	for _, n := range snap.Network.NodeList {
		nodes = append(nodes, h.routeNode(n))
	}
	c.JSON(http.StatusOK, gin.H{
		"nodes": nodes,
		"count": len(nodes),
	})
}

// FindRoute 在编辑器路网中规划最短路径
func (h *Handler) FindRoute(c *gin.Context) {
	var req RouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误: " + err.Error()})
		return
	}

	snap := h.Session.Flush()
	network := snap.Network

	// 如果提供了坐标，找到最近的节点
	startID, endID := req.StartID, req.EndID
	if req.Start != nil {
		if n := network.FindNearestNode(req.Start.Vec()); n != nil {
			startID = n.ID
		}
	}
	if req.End != nil {
		if n := network.FindNearestNode(req.End.Vec()); n != nil {
			endID = n.ID
		}
	}

	// 验证起点和终点
	if startID == "" || endID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "起点或终点未指定"})
		return
	}
	if network.Nodes[startID] == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "起点不存在: " + startID})
		return
	}
	if network.Nodes[endID] == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "终点不存在: " + endID})
		return
	}

	route := network.ShortestPath(startID, endID)
	if !route.Found {
		c.JSON(http.StatusOK, RouteResponse{
			Found:   false,
			Message: "未找到可达的路径",
		})
		return
	}

	resp := RouteResponse{Found: true, Roads: route.Roads, Distance: route.Distance}
	for i, id := range route.Path {
		n := h.routeNode(*network.Nodes[id])
		if i > 0 {
			prev := resp.Path[i-1]
			resp.GeoDistance += utils.HaversineDistance(
				model.Origin{Lat: prev.Lat, Lon: prev.Lon},
				model.Origin{Lat: n.Lat, Lon: n.Lon},
			)
		}
		resp.Path = append(resp.Path, n)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) routeNode(n model.NetworkNode) RouteNode {
	geo := utils.LocalToGeo(h.Origin, n.Position.X, n.Position.Y)
	return RouteNode{ID: n.ID, Kind: n.Kind, X: n.Position.X, Y: n.Position.Y, Lat: geo.Lat, Lon: geo.Lon}
}
