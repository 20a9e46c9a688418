package opendrive

import (
	"encoding/json"
	"errors"
	"fmt"
	"road-editor/model"
)

// PayloadCode 编辑器扩展块的 code 属性
const PayloadCode = "roadEditorAxes"

// PayloadVersion 当前扩展块格式版本
const PayloadVersion = 1

// ErrNoPayload 文档中没有编辑器扩展块
var ErrNoPayload = errors.New("document has no editor payload")

// Payload 编辑器轴线的完整状态. 导出时嵌入 XML, 导入时按原样恢复.
type Payload struct {
	Version int                  `json:"version"`
	Axes    []model.EditableAxis `json:"axes"`
}

// EncodePayload 序列化轴线. encoding/json 使用最短可还原的浮点表示, 往返后数值逐位一致.
func EncodePayload(axes []model.EditableAxis) (string, error) {
	data, err := json.Marshal(Payload{Version: PayloadVersion, Axes: axes})
	if err != nil {
		return "", fmt.Errorf("序列化编辑器数据失败: %w", err)
	}
	return string(data), nil
}

// DecodePayload 解析扩展块内容
func DecodePayload(raw string) ([]model.EditableAxis, error) {
	if raw == "" {
		return nil, ErrNoPayload
	}
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("%w: editor payload: %v", ErrMalformedDocument, err)
	}
	if p.Version > PayloadVersion {
		return nil, fmt.Errorf("%w: unsupported editor payload version %d", ErrMalformedDocument, p.Version)
	}
	return p.Axes, nil
}
