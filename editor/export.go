package editor

import (
	"bytes"
	"errors"
	"fmt"
	"road-editor/algo"
	"road-editor/model"
	"road-editor/opendrive"
	"road-editor/utils"
)

// Export 导出当前路网. 坐标以视图中心为原点, 地理参考为以视图中心为中心的横轴墨卡托;
// center 非空时改用该经纬度作为导出原点.
// 轴线原样写入扩展块, 导入后可以逐位恢复编辑状态.
func (s *Session) Export(center *model.Origin) ([]byte, error) {
	snap := s.Flush()

	cx, cy := snap.View.CenterX, snap.View.CenterY
	if center != nil {
		cx, cy = utils.GeoToLocal(s.opts.Origin, *center)
	}
	geo := utils.LocalToGeo(s.opts.Origin, cx, cy)

	rm := translated(snap.Model, -cx, -cy)
	rm.Header = model.Header{Origin: geo, GeoReference: utils.TransverseMercator(geo)}

	payload, err := opendrive.EncodePayload(snap.Axes)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := opendrive.Write(&buf, rm, payload); err != nil {
		return nil, err
	}
	utils.LogInfo("session %s: exported %d roads", s.ID, len(rm.Roads))
	return buf.Bytes(), nil
}

// importSampler 普通文档导入时参考线的采样精度, 比预览粗一些以减少顶点数
var importSampler = algo.SamplerOptions{ChordLength: 2, AngleStep: 0.05}

// Import 用文档中的轴线替换当前全部轴线.
// 有编辑器扩展块时按原样恢复; 否则把每条道路的参考线转为一条不倒圆角的轴线,
// 文档中没有任何道路时返回 ErrNoPayload.
func (s *Session) Import(data []byte) error {
	rm, err := opendrive.Parse(data, s.opts.Origin)
	if err != nil {
		return err
	}
	axes, err := opendrive.DecodePayload(rm.EditorPayload)
	if errors.Is(err, ErrNoPayload) && len(rm.Roads) > 0 {
		axes = axesFromRoads(rm)
		utils.LogWarn("session %s: document has no editor payload, converted %d roads", s.ID, len(axes))
	} else if err != nil {
		return err
	}
	seen := make(map[string]bool, len(axes))
	for _, a := range axes {
		if a.ID == "" {
			return fmt.Errorf("%w: axis without id", opendrive.ErrMalformedDocument)
		}
		if seen[a.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateAxis, a.ID)
		}
		seen[a.ID] = true
		if len(a.Vertices) < 2 {
			return fmt.Errorf("%w: axis %s", ErrTooFewVertices, a.ID)
		}
	}

	err = s.mutate(func() error {
		s.replaceLocked(axes)
		return nil
	})
	if err != nil {
		return err
	}
	utils.LogInfo("session %s: imported %d axes", s.ID, len(axes))
	return nil
}

// axesFromRoads 由道路参考线生成轴线, 内部顶点的圆角系数为 0 以保持原有形状
func axesFromRoads(rm *model.RoadModel) []model.EditableAxis {
	var axes []model.EditableAxis
	seen := make(map[string]bool)
	for i := range rm.Roads {
		road := &rm.Roads[i]
		if seen[road.ID] {
			utils.LogWarn("duplicate road id %q, skipped", road.ID)
			continue
		}
		seen[road.ID] = true

		samples := algo.SampleRoad(road, importSampler)
		axis := model.EditableAxis{ID: road.ID}
		for _, smp := range samples {
			if n := len(axis.Vertices); n > 0 && axis.Vertices[n-1].Sub(smp.Pos).Length() < minChord {
				continue
			}
			axis.Vertices = append(axis.Vertices, smp.Pos)
		}
		if len(axis.Vertices) < 2 {
			continue
		}
		axis.Rounding = make(map[int]float64, len(axis.Vertices)-2)
		for j := 1; j < len(axis.Vertices)-1; j++ {
			axis.Rounding[j] = 0
		}
		axes = append(axes, axis)
	}
	return axes
}

// IsClientError 判断错误是否由请求内容引起
func IsClientError(err error) bool {
	for _, target := range []error{
		ErrAxisNotFound, ErrDuplicateAxis, ErrVertexIndex, ErrTooFewVertices,
		ErrInvalidFactor, ErrInvalidView, ErrNoPayload,
		opendrive.ErrMalformedDocument, opendrive.ErrMissingRequiredField,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
