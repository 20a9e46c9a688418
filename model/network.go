package model

import "seehuhn.de/go/geom/vec"

// 路网节点类型
const (
	NodeJunction = "junction" // 多条轴线的交点
	NodeEnd      = "end"      // 轴线的自由端点
)

// NetworkNode 导出路网中的一个节点 (路口或道路端点)
type NetworkNode struct {
	ID       string   `json:"id"`
	Kind     string   `json:"kind"`
	Position vec.Vec2 `json:"position"`
}

// NetworkEdge 两个节点之间的一条道路. 每条道路正反两个方向各存一条边.
type NetworkEdge struct {
	From    string  `json:"from"`
	To      string  `json:"to"`
	RoadID  string  `json:"road_id"`
	Length  float64 `json:"length"` // 米
	Reverse bool    `json:"reverse,omitempty"`
}

// Route 两个节点之间的最短路径
type Route struct {
	Path     []string `json:"path"`  // 节点 ID 序列
	Roads    []string `json:"roads"` // 依次经过的道路
	Distance float64  `json:"distance"`
	Found    bool     `json:"found"`
}
