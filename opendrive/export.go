package opendrive

import (
	"encoding/xml"
	"fmt"
	"io"
	"road-editor/model"
	"strconv"
)

// 以下结构只用于 XML 编码, 数值统一格式化为最短可精确还原的十进制

type outDocument struct {
	XMLName xml.Name  `xml:"OpenDRIVE"`
	Header  outHeader `xml:"header"`
	Roads   []outRoad `xml:"road"`
	User    *outUser  `xml:"userData,omitempty"`
}

type outHeader struct {
	RevMajor     int    `xml:"revMajor,attr"`
	RevMinor     int    `xml:"revMinor,attr"`
	Name         string `xml:"name,attr,omitempty"`
	GeoReference *cdata `xml:"geoReference,omitempty"`
}

type cdata struct {
	Value string `xml:",cdata"`
}

type outUser struct {
	Code  string `xml:"code,attr"`
	Value string `xml:",cdata"`
}

type outRoad struct {
	ID       string        `xml:"id,attr"`
	Name     string        `xml:"name,attr"`
	Length   string        `xml:"length,attr"`
	Junction string        `xml:"junction,attr"`
	Link     *outRoadLinks `xml:"link,omitempty"`
	Geometry []outGeometry `xml:"planView>geometry"`
	Lanes    outLanes      `xml:"lanes"`
}

type outRoadLinks struct {
	Predecessor *xmlRoadLink `xml:"predecessor,omitempty"`
	Successor   *xmlRoadLink `xml:"successor,omitempty"`
}

type outGeometry struct {
	S      string         `xml:"s,attr"`
	X      string         `xml:"x,attr"`
	Y      string         `xml:"y,attr"`
	Hdg    string         `xml:"hdg,attr"`
	Length string         `xml:"length,attr"`
	Line   *struct{}      `xml:"line,omitempty"`
	Arc    *xmlArc        `xml:"arc,omitempty"`
	Spiral *outSpiral     `xml:"spiral,omitempty"`
	Poly3  *xmlParamPoly3 `xml:"paramPoly3,omitempty"`
}

type outSpiral struct {
	CurvStart string `xml:"curvStart,attr"`
	CurvEnd   string `xml:"curvEnd,attr"`
}

type outLanes struct {
	Offsets  []outPoly    `xml:"laneOffset"`
	Sections []outSection `xml:"laneSection"`
}

type outPoly struct {
	S       string `xml:"s,attr,omitempty"`
	SOffset string `xml:"sOffset,attr,omitempty"`
	A       string `xml:"a,attr"`
	B       string `xml:"b,attr"`
	C       string `xml:"c,attr"`
	D       string `xml:"d,attr"`
}

type outSection struct {
	S      string   `xml:"s,attr"`
	Left   *outSide `xml:"left,omitempty"`
	Center *outSide `xml:"center,omitempty"`
	Right  *outSide `xml:"right,omitempty"`
}

type outSide struct {
	Lanes []outLane `xml:"lane"`
}

type outLane struct {
	ID        string        `xml:"id,attr"`
	Type      string        `xml:"type,attr"`
	Level     string        `xml:"level,attr"`
	Link      *outLaneLinks `xml:"link,omitempty"`
	Widths    []outPoly     `xml:"width"`
	RoadMarks []outRoadMark `xml:"roadMark"`
}

type outLaneLinks struct {
	Predecessor *xmlLink `xml:"predecessor,omitempty"`
	Successor   *xmlLink `xml:"successor,omitempty"`
}

type outRoadMark struct {
	SOffset    string `xml:"sOffset,attr"`
	Type       string `xml:"type,attr"`
	Color      string `xml:"color,attr,omitempty"`
	Width      string `xml:"width,attr,omitempty"`
	Material   string `xml:"material,attr,omitempty"`
	LaneChange string `xml:"laneChange,attr,omitempty"`
	Weight     string `xml:"weight,attr,omitempty"`
	Height     string `xml:"height,attr,omitempty"`
	Rule       string `xml:"rule,attr,omitempty"`
}

// Write 把路网模型写为 XML. payload 非空时写入编辑器扩展块.
func Write(w io.Writer, rm *model.RoadModel, payload string) error {
	doc := outDocument{Header: outHeader{RevMajor: 1, RevMinor: 6, Name: "road-editor"}}
	if rm.Header.GeoReference != "" {
		doc.Header.GeoReference = &cdata{Value: rm.Header.GeoReference}
	}
	for i := range rm.Roads {
		doc.Roads = append(doc.Roads, toOutRoad(&rm.Roads[i]))
	}
	if payload != "" {
		doc.User = &outUser{Code: PayloadCode, Value: payload}
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("写入 XML 头失败: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("编码 XML 失败: %w", err)
	}
	return enc.Flush()
}

func toOutRoad(r *model.Road) outRoad {
	out := outRoad{ID: r.ID, Name: r.Name, Length: ftoa(r.Length), Junction: "-1"}
	if r.Predecessor != nil || r.Successor != nil {
		out.Link = &outRoadLinks{Predecessor: toOutRoadLink(r.Predecessor), Successor: toOutRoadLink(r.Successor)}
	}
	for _, g := range r.PlanView {
		out.Geometry = append(out.Geometry, toOutGeometry(g))
	}
	for _, o := range r.LaneOffsets {
		out.Lanes.Offsets = append(out.Lanes.Offsets, outPoly{S: ftoa(o.SOffset), A: ftoa(o.A), B: ftoa(o.B), C: ftoa(o.C), D: ftoa(o.D)})
	}
	for i := range r.LaneSections {
		ls := &r.LaneSections[i]
		out.Lanes.Sections = append(out.Lanes.Sections, outSection{
			S:      ftoa(ls.S),
			Left:   toOutSide(ls.Left),
			Center: toOutSide(ls.Center),
			Right:  toOutSide(ls.Right),
		})
	}
	return out
}

func toOutRoadLink(l *model.RoadLink) *xmlRoadLink {
	if l == nil {
		return nil
	}
	return &xmlRoadLink{ElementType: l.ElementType, ElementID: l.ElementID, ContactPoint: l.ContactPoint}
}

func toOutGeometry(g model.GeometryPrimitive) outGeometry {
	out := outGeometry{S: ftoa(g.S), X: ftoa(g.X), Y: ftoa(g.Y), Hdg: ftoa(g.Heading), Length: ftoa(g.Length)}
	switch g.Kind {
	case model.PrimitiveArc:
		out.Arc = &xmlArc{Curvature: ftoa(g.Curvature)}
	case model.PrimitiveSpiral:
		out.Spiral = &outSpiral{CurvStart: ftoa(g.CurvStart), CurvEnd: ftoa(g.CurvEnd)}
	case model.PrimitiveParamPoly3:
		p := &xmlParamPoly3{
			AU: ftoa(g.U[0]), BU: ftoa(g.U[1]), CU: ftoa(g.U[2]), DU: ftoa(g.U[3]),
			AV: ftoa(g.V[0]), BV: ftoa(g.V[1]), CV: ftoa(g.V[2]), DV: ftoa(g.V[3]),
			PRange: "arcLength",
		}
		if g.Normalized {
			p.PRange = "normalized"
		}
		out.Poly3 = p
	default:
		out.Line = &struct{}{}
	}
	return out
}

func toOutSide(lanes []model.Lane) *outSide {
	if len(lanes) == 0 {
		return nil
	}
	side := &outSide{}
	for _, l := range lanes {
		ol := outLane{ID: strconv.Itoa(l.ID), Type: l.Type, Level: "false"}
		if l.PredecessorID != nil || l.SuccessorID != nil {
			ol.Link = &outLaneLinks{}
			if l.PredecessorID != nil {
				ol.Link.Predecessor = &xmlLink{ID: strconv.Itoa(*l.PredecessorID)}
			}
			if l.SuccessorID != nil {
				ol.Link.Successor = &xmlLink{ID: strconv.Itoa(*l.SuccessorID)}
			}
		}
		for _, w := range l.Widths {
			ol.Widths = append(ol.Widths, outPoly{SOffset: ftoa(w.SOffset), A: ftoa(w.A), B: ftoa(w.B), C: ftoa(w.C), D: ftoa(w.D)})
		}
		for _, m := range l.RoadMarks {
			om := outRoadMark{
				SOffset:    ftoa(m.SOffset),
				Type:       m.Type,
				Color:      m.Color,
				Material:   m.Material,
				LaneChange: m.LaneChange,
				Weight:     m.Weight,
				Rule:       m.Rule,
			}
			if m.Width != 0 {
				om.Width = ftoa(m.Width)
			}
			if m.Height != 0 {
				om.Height = ftoa(m.Height)
			}
			ol.RoadMarks = append(ol.RoadMarks, om)
		}
		side.Lanes = append(side.Lanes, ol)
	}
	return side
}

// ftoa 最短的可精确还原的十进制表示
func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
