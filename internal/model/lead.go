// Package model 包含了应用的数据模型定义。
package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// 线索中约定俗成的字段名，与前端表单保持一致。
const (
	LeadFieldName         = "name"
	LeadFieldEmail        = "email"
	LeadFieldCompanyName  = "companyName"
	LeadFieldMobileNumber = "mobileNumber"
	LeadFieldService      = "service"
	LeadFieldTimestamp    = "timestamp"
)

// leadTimestampLayout 与 JavaScript Date.toISOString() 的输出格式一致。
const leadTimestampLayout = "2006-01-02T15:04:05.000Z"

// Lead 是一条半结构化的销售线索。除约定字段外，允许携带任意自定义字段。
type Lead map[string]any

// Field 以字符串形式返回字段值；缺失或为空时返回空串。
func (l Lead) Field(name string) string {
	v, ok := l[name]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	case float64:
		// JSON 数字解码为 float64，手机号等整数值不应带小数点
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%v", val)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", val))
	}
}

func (l Lead) Name() string         { return l.Field(LeadFieldName) }
func (l Lead) Email() string        { return l.Field(LeadFieldEmail) }
func (l Lead) CompanyName() string  { return l.Field(LeadFieldCompanyName) }
func (l Lead) MobileNumber() string { return l.Field(LeadFieldMobileNumber) }
func (l Lead) Service() string      { return l.Field(LeadFieldService) }
func (l Lead) Timestamp() string    { return l.Field(LeadFieldTimestamp) }

// Stamped 返回一份带服务端时间戳的副本，原记录保持不变。
func (l Lead) Stamped(now time.Time) Lead {
	out := make(Lead, len(l)+1)
	for k, v := range l {
		out[k] = v
	}
	out[LeadFieldTimestamp] = now.UTC().Format(leadTimestampLayout)
	return out
}

// IsBlankValue 判断字段值是否视为“未填写”：nil、空串、false、0、空集合。
func IsBlankValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case bool:
		return !val
	case float64:
		return val == 0
	case json.Number:
		f, err := val.Float64()
		return err == nil && f == 0
	case int:
		return val == 0
	case []any:
		return false
	case map[string]any:
		return false
	default:
		return false
	}
}

// MissingFields 按 required 的顺序返回缺失或为空的字段名。
func (l Lead) MissingFields(required []string) []string {
	var missing []string
	for _, f := range required {
		if IsBlankValue(l[f]) {
			missing = append(missing, f)
		}
	}
	return missing
}
