package algo

import (
	"container/heap"
	"fmt"
	"math"
	"road-editor/model"
	"slices"

	"seehuhn.de/go/geom/vec"
)

// RoadSpan 导出为一条道路的轴线分段
type RoadSpan struct {
	RoadID  string
	Segment AxisSegment
}

// Network 路网拓扑: 节点为路口和道路端点, 边为道路
type Network struct {
	Nodes    map[string]*model.NetworkNode  // 节点字典 (ID -> Node)
	AdjList  map[string][]*model.NetworkEdge // 邻接表 (ID -> 边列表)
	NodeList []model.NetworkNode             // 节点列表 (按加入顺序)

	roads map[string]*model.NetworkEdge // 道路 ID -> 正向边
}

// NewNetwork 创建一个空的路网
func NewNetwork() *Network {
	return &Network{
		Nodes:   make(map[string]*model.NetworkNode),
		AdjList: make(map[string][]*model.NetworkEdge),
		roads:   make(map[string]*model.NetworkEdge),
	}
}

// BuildNetwork 由求交结果和导出的道路分段构建路网.
// 分段端点落在交点上时连到对应的路口节点, 否则为该轴线自己的端点节点.
func BuildNetwork(xs []model.IntersectionPoint, spans []RoadSpan) *Network {
	n := NewNetwork()
	for i, x := range xs {
		n.addNode(model.NetworkNode{ID: junctionID(i), Kind: model.NodeJunction, Position: x.Position})
	}

	for _, span := range spans {
		seg := span.Segment
		if len(seg.Points) < 2 {
			continue
		}
		from := n.endpointNode(seg.AxisID, "start", seg.StartJunction, seg.Points[0])
		to := n.endpointNode(seg.AxisID, "end", seg.EndJunction, seg.Points[len(seg.Points)-1])
		length := polylineLength(seg.Points)

		fwd := &model.NetworkEdge{From: from, To: to, RoadID: span.RoadID, Length: length}
		n.roads[span.RoadID] = fwd
		n.AdjList[from] = append(n.AdjList[from], fwd)
		n.AdjList[to] = append(n.AdjList[to], &model.NetworkEdge{From: to, To: from, RoadID: span.RoadID, Length: length, Reverse: true})
	}
	return n
}

func junctionID(i int) string {
	return fmt.Sprintf("J%d", i)
}

func (n *Network) addNode(node model.NetworkNode) {
	if _, ok := n.Nodes[node.ID]; ok {
		return
	}
	n.NodeList = append(n.NodeList, node)
	n.Nodes[node.ID] = &node
}

// endpointNode 分段端点对应的节点 ID, 不存在时创建.
// 中间分段的非路口端点不会出现, 只有轴线首尾可能是自由端点.
func (n *Network) endpointNode(axisID, end string, junction int, pos vec.Vec2) string {
	if junction >= 0 {
		return junctionID(junction)
	}
	id := axisID + "/" + end
	n.addNode(model.NetworkNode{ID: id, Kind: model.NodeEnd, Position: pos})
	return id
}

// GetNeighbors 获取节点出发的所有边
func (n *Network) GetNeighbors(nodeID string) []*model.NetworkEdge {
	return n.AdjList[nodeID]
}

// FindNearestNode 找到离给定坐标最近的节点
func (n *Network) FindNearestNode(p vec.Vec2) *model.NetworkNode {
	var nearest *model.NetworkNode
	minDist := -1.0
	for i := range n.NodeList {
		node := &n.NodeList[i]
		dist := node.Position.Sub(p).Length()
		if minDist < 0 || dist < minDist {
			minDist = dist
			nearest = node
		}
	}
	return nearest
}

// RoadLinks 道路两端的连接关系. 端点只连着另一条道路时链接到该道路,
// 连着两条以上时链接到路口, 自由端点没有链接.
func (n *Network) RoadLinks(roadID string) (pred, succ *model.RoadLink) {
	fwd, ok := n.roads[roadID]
	if !ok {
		return nil, nil
	}
	return n.linkAt(fwd.From, roadID), n.linkAt(fwd.To, roadID)
}

func (n *Network) linkAt(nodeID, roadID string) *model.RoadLink {
	var others []*model.NetworkEdge
	for _, e := range n.AdjList[nodeID] {
		if e.RoadID != roadID {
			others = append(others, e)
		}
	}
	switch len(others) {
	case 0:
		return nil
	case 1:
		contact := "start"
		if others[0].Reverse {
			contact = "end"
		}
		return &model.RoadLink{ElementType: "road", ElementID: others[0].RoadID, ContactPoint: contact}
	default:
		return &model.RoadLink{ElementType: "junction", ElementID: nodeID}
	}
}

// routeItem 优先队列中的元素
type routeItem struct {
	nodeID string
	cost   float64
	index  int
}

// routeQueue 实现 heap.Interface 接口的优先队列
type routeQueue []*routeItem

func (pq routeQueue) Len() int { return len(pq) }

func (pq routeQueue) Less(i, j int) bool {
	return pq[i].cost < pq[j].cost
}

func (pq routeQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *routeQueue) Push(x any) {
	item := x.(*routeItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}

func (pq *routeQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}

// ShortestPath Dijkstra 最短路径, 代价为道路长度
func (n *Network) ShortestPath(startID, endID string) model.Route {
	if n.Nodes[startID] == nil || n.Nodes[endID] == nil {
		return model.Route{}
	}

	dist := make(map[string]float64, len(n.Nodes))
	prev := make(map[string]*model.NetworkEdge)
	visited := make(map[string]bool)
	for id := range n.Nodes {
		dist[id] = math.Inf(1)
	}
	dist[startID] = 0

	pq := routeQueue{}
	heap.Push(&pq, &routeItem{nodeID: startID})
	for pq.Len() > 0 {
		cur := heap.Pop(&pq).(*routeItem)
		if visited[cur.nodeID] {
			continue
		}
		visited[cur.nodeID] = true
		if cur.nodeID == endID {
			break
		}
		for _, e := range n.GetNeighbors(cur.nodeID) {
			if d := dist[cur.nodeID] + e.Length; d < dist[e.To] {
				dist[e.To] = d
				prev[e.To] = e
				heap.Push(&pq, &routeItem{nodeID: e.To, cost: d})
			}
		}
	}
	if math.IsInf(dist[endID], 1) {
		return model.Route{}
	}

	route := model.Route{Distance: dist[endID], Found: true, Path: []string{endID}}
	for at := endID; at != startID; {
		e := prev[at]
		route.Roads = append(route.Roads, e.RoadID)
		route.Path = append(route.Path, e.From)
		at = e.From
	}
	slices.Reverse(route.Path)
	slices.Reverse(route.Roads)
	return route
}
