// Package opendrive 读写 OpenDRIVE 风格的 XML 路网描述
package opendrive

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"road-editor/model"
	"road-editor/utils"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrMalformedDocument 文档无法解析, 不返回部分结果
	ErrMalformedDocument = errors.New("malformed document")
	// ErrMissingRequiredField 道路缺少 id / length / 几何等必填字段, 该道路被跳过
	ErrMissingRequiredField = errors.New("missing required field")
)

var (
	latRe = regexp.MustCompile(`\+lat_0=([-+]?[0-9]*\.?[0-9]+(?:[eE][-+]?[0-9]+)?)`)
	lonRe = regexp.MustCompile(`\+lon_0=([-+]?[0-9]*\.?[0-9]+(?:[eE][-+]?[0-9]+)?)`)
)

// 以下结构只用于 XML 解码, 数值属性先按字符串读取, 再按宽松策略转换

type xmlDocument struct {
	XMLName xml.Name  `xml:"OpenDRIVE"`
	Header  xmlHeader `xml:"header"`
	Roads   []xmlRoad `xml:"road"`
	User    []xmlUser `xml:"userData"`
}

type xmlHeader struct {
	GeoReference string `xml:"geoReference"`
}

type xmlUser struct {
	Code  string `xml:"code,attr"`
	Value string `xml:",chardata"`
}

type xmlRoad struct {
	ID       string        `xml:"id,attr"`
	Name     string        `xml:"name,attr"`
	Length   string        `xml:"length,attr"`
	Link     xmlRoadLinks  `xml:"link"`
	Geometry []xmlGeometry `xml:"planView>geometry"`
	Offsets  []xmlPoly     `xml:"lanes>laneOffset"`
	Sections []xmlSection  `xml:"lanes>laneSection"`
}

type xmlRoadLinks struct {
	Predecessor *xmlRoadLink `xml:"predecessor"`
	Successor   *xmlRoadLink `xml:"successor"`
}

type xmlRoadLink struct {
	ElementType  string `xml:"elementType,attr"`
	ElementID    string `xml:"elementId,attr"`
	ContactPoint string `xml:"contactPoint,attr,omitempty"`
}

type xmlGeometry struct {
	S      string         `xml:"s,attr"`
	X      string         `xml:"x,attr"`
	Y      string         `xml:"y,attr"`
	Hdg    string         `xml:"hdg,attr"`
	Length string         `xml:"length,attr"`
	Line   *struct{}      `xml:"line"`
	Arc    *xmlArc        `xml:"arc"`
	Spiral *xmlSpiral     `xml:"spiral"`
	Poly3  *xmlParamPoly3 `xml:"paramPoly3"`
}

type xmlArc struct {
	Curvature string `xml:"curvature,attr"`
}

type xmlSpiral struct {
	CurvStart      string `xml:"curvStart,attr"`
	CurvatureStart string `xml:"curvatureStart,attr"`
	CurvEnd        string `xml:"curvEnd,attr"`
	CurvatureEnd   string `xml:"curvatureEnd,attr"`
}

type xmlParamPoly3 struct {
	AU     string `xml:"aU,attr"`
	BU     string `xml:"bU,attr"`
	CU     string `xml:"cU,attr"`
	DU     string `xml:"dU,attr"`
	AV     string `xml:"aV,attr"`
	BV     string `xml:"bV,attr"`
	CV     string `xml:"cV,attr"`
	DV     string `xml:"dV,attr"`
	PRange string `xml:"pRange,attr"`
}

type xmlPoly struct {
	S       string `xml:"s,attr"`
	SOffset string `xml:"sOffset,attr"`
	A       string `xml:"a,attr"`
	B       string `xml:"b,attr"`
	C       string `xml:"c,attr"`
	D       string `xml:"d,attr"`
}

type xmlSection struct {
	S      string    `xml:"s,attr"`
	Left   []xmlLane `xml:"left>lane"`
	Center []xmlLane `xml:"center>lane"`
	Right  []xmlLane `xml:"right>lane"`
}

type xmlLane struct {
	ID          string        `xml:"id,attr"`
	Type        string        `xml:"type,attr"`
	Predecessor *xmlLink      `xml:"link>predecessor"`
	Successor   *xmlLink      `xml:"link>successor"`
	Widths      []xmlPoly     `xml:"width"`
	RoadMarks   []xmlRoadMark `xml:"roadMark"`
}

type xmlLink struct {
	ID string `xml:"id,attr"`
}

type xmlRoadMark struct {
	SOffset    string `xml:"sOffset,attr"`
	Type       string `xml:"type,attr"`
	Color      string `xml:"color,attr"`
	Width      string `xml:"width,attr"`
	Material   string `xml:"material,attr"`
	LaneChange string `xml:"laneChange,attr"`
	Weight     string `xml:"weight,attr"`
	Height     string `xml:"height,attr"`
	Rule       string `xml:"rule,attr"`
}

// Parse 把 XML 文本解析为路网模型, 不计算任何几何.
// 文档无法解析时返回 ErrMalformedDocument; 缺少必填字段的道路被跳过并记录在 Skipped 中.
// header 中没有地理参考时使用 fallback 原点.
func Parse(data []byte, fallback model.Origin) (*model.RoadModel, error) {
	var doc xmlDocument
	dec := xml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	rm := &model.RoadModel{Header: parseHeader(doc.Header, fallback)}
	for _, xr := range doc.Roads {
		road, err := parseRoad(xr)
		if err != nil {
			utils.LogWarn("skipping road %q: %v", xr.ID, err)
			rm.Skipped = append(rm.Skipped, model.SkippedRoad{ID: xr.ID, Reason: err.Error()})
			continue
		}
		rm.Roads = append(rm.Roads, road)
	}
	for _, u := range doc.User {
		if u.Code == PayloadCode {
			rm.EditorPayload = strings.TrimSpace(u.Value)
		}
	}
	return rm, nil
}

// ParseReader 从 io.Reader 读取后解析
func ParseReader(r io.Reader, fallback model.Origin) (*model.RoadModel, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("读取文档失败: %w", err)
	}
	return Parse(data, fallback)
}

func parseHeader(h xmlHeader, fallback model.Origin) model.Header {
	header := model.Header{Origin: fallback, GeoReference: strings.TrimSpace(h.GeoReference)}
	if m := latRe.FindStringSubmatch(header.GeoReference); m != nil {
		if v, ok := parseFloat(m[1]); ok {
			header.Origin.Lat = v
		}
	}
	if m := lonRe.FindStringSubmatch(header.GeoReference); m != nil {
		if v, ok := parseFloat(m[1]); ok {
			header.Origin.Lon = v
		}
	}
	return header
}

func parseRoad(xr xmlRoad) (model.Road, error) {
	road := model.Road{ID: strings.TrimSpace(xr.ID), Name: xr.Name}
	if road.ID == "" {
		return road, fmt.Errorf("%w: road id", ErrMissingRequiredField)
	}
	length, ok := parseFloat(xr.Length)
	if !ok {
		return road, fmt.Errorf("%w: road %s length", ErrMissingRequiredField, road.ID)
	}
	road.Length = length
	road.Predecessor = parseRoadLink(xr.Link.Predecessor)
	road.Successor = parseRoadLink(xr.Link.Successor)
	if len(xr.Geometry) == 0 {
		return road, fmt.Errorf("%w: road %s planView geometry", ErrMissingRequiredField, road.ID)
	}

	for i, xg := range xr.Geometry {
		g, err := parseGeometry(xg)
		if err != nil {
			return road, fmt.Errorf("road %s geometry %d: %w", road.ID, i, err)
		}
		road.PlanView = append(road.PlanView, g)
	}
	sort.SliceStable(road.PlanView, func(i, j int) bool { return road.PlanView[i].S < road.PlanView[j].S })

	for _, xo := range xr.Offsets {
		road.LaneOffsets = append(road.LaneOffsets, parsePoly(xo.S, xo))
	}
	sort.SliceStable(road.LaneOffsets, func(i, j int) bool { return road.LaneOffsets[i].SOffset < road.LaneOffsets[j].SOffset })

	for _, xs := range xr.Sections {
		road.LaneSections = append(road.LaneSections, parseSection(xs))
	}
	sort.SliceStable(road.LaneSections, func(i, j int) bool { return road.LaneSections[i].S < road.LaneSections[j].S })
	return road, nil
}

func parseRoadLink(xl *xmlRoadLink) *model.RoadLink {
	if xl == nil || xl.ElementID == "" {
		return nil
	}
	return &model.RoadLink{ElementType: xl.ElementType, ElementID: xl.ElementID, ContactPoint: xl.ContactPoint}
}

func parseGeometry(xg xmlGeometry) (model.GeometryPrimitive, error) {
	var g model.GeometryPrimitive
	var ok bool
	if g.S, ok = parseFloat(xg.S); !ok {
		return g, fmt.Errorf("%w: geometry s", ErrMissingRequiredField)
	}
	if g.Length, ok = parseFloat(xg.Length); !ok {
		return g, fmt.Errorf("%w: geometry length", ErrMissingRequiredField)
	}
	g.X = floatOrZero(xg.X)
	g.Y = floatOrZero(xg.Y)
	g.Heading = floatOrZero(xg.Hdg)

	switch {
	case xg.Arc != nil:
		g.Kind = model.PrimitiveArc
		g.Curvature = floatOrZero(xg.Arc.Curvature)
	case xg.Spiral != nil:
		g.Kind = model.PrimitiveSpiral
		g.CurvStart = floatOrZero(firstNonEmpty(xg.Spiral.CurvStart, xg.Spiral.CurvatureStart))
		g.CurvEnd = floatOrZero(firstNonEmpty(xg.Spiral.CurvEnd, xg.Spiral.CurvatureEnd))
	case xg.Poly3 != nil:
		p := xg.Poly3
		g.Kind = model.PrimitiveParamPoly3
		g.U = [4]float64{floatOrZero(p.AU), floatOrZero(p.BU), floatOrZero(p.CU), floatOrZero(p.DU)}
		g.V = [4]float64{floatOrZero(p.AV), floatOrZero(p.BV), floatOrZero(p.CV), floatOrZero(p.DV)}
		g.Normalized = strings.EqualFold(strings.TrimSpace(p.PRange), "normalized")
	default:
		g.Kind = model.PrimitiveLine
	}
	return g, nil
}

func parseSection(xs xmlSection) model.LaneSection {
	ls := model.LaneSection{S: floatOrZero(xs.S)}
	ls.Left = parseLanes(xs.Left)
	ls.Center = parseLanes(xs.Center)
	ls.Right = parseLanes(xs.Right)
	sort.SliceStable(ls.Left, func(i, j int) bool { return ls.Left[i].ID < ls.Left[j].ID })
	sort.SliceStable(ls.Right, func(i, j int) bool { return ls.Right[i].ID > ls.Right[j].ID })
	return ls
}

func parseLanes(xls []xmlLane) []model.Lane {
	var lanes []model.Lane
	for _, xl := range xls {
		id, err := strconv.Atoi(strings.TrimSpace(xl.ID))
		if err != nil {
			utils.LogWarn("ignoring lane with invalid id %q", xl.ID)
			continue
		}
		lane := model.Lane{ID: id, Type: xl.Type}
		if xl.Predecessor != nil {
			lane.PredecessorID = parseIntPtr(xl.Predecessor.ID)
		}
		if xl.Successor != nil {
			lane.SuccessorID = parseIntPtr(xl.Successor.ID)
		}
		for _, xw := range xl.Widths {
			lane.Widths = append(lane.Widths, parsePoly(xw.SOffset, xw))
		}
		sort.SliceStable(lane.Widths, func(i, j int) bool { return lane.Widths[i].SOffset < lane.Widths[j].SOffset })
		for _, xm := range xl.RoadMarks {
			lane.RoadMarks = append(lane.RoadMarks, model.RoadMark{
				SOffset:    floatOrZero(xm.SOffset),
				Type:       xm.Type,
				Color:      xm.Color,
				Width:      floatOrZero(xm.Width),
				Material:   xm.Material,
				LaneChange: xm.LaneChange,
				Weight:     xm.Weight,
				Height:     floatOrZero(xm.Height),
				Rule:       xm.Rule,
			})
		}
		lanes = append(lanes, lane)
	}
	return lanes
}

func parsePoly(offset string, xp xmlPoly) model.PolySegment {
	return model.PolySegment{
		SOffset: floatOrZero(offset),
		A:       floatOrZero(xp.A),
		B:       floatOrZero(xp.B),
		C:       floatOrZero(xp.C),
		D:       floatOrZero(xp.D),
	}
}

// parseFloat 宽松解析: 空串或非数值返回 ok=false
func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// floatOrZero 非必填数值: 无法解析时视为缺省 (0)
func floatOrZero(s string) float64 {
	v, _ := parseFloat(s)
	return v
}

func parseIntPtr(s string) *int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
