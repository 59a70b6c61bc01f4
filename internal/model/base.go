package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ── PostgreSQL JSONB 自定义类型 ──

// JSONPayload 对应 PostgreSQL JSONB 列，实现 GORM Scanner/Valuer 接口。
type JSONPayload json.RawMessage

// Scan 将数据库返回的 JSONB 内容读入原始字节。
func (p *JSONPayload) Scan(src interface{}) error {
	if src == nil {
		*p = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		*p = append((*p)[0:0], v...)
	case string:
		*p = JSONPayload(v)
	default:
		return fmt.Errorf("JSONPayload.Scan: unsupported type %T", src)
	}
	return nil
}

// Value 将原始字节作为 JSONB 写入。
func (p JSONPayload) Value() (driver.Value, error) {
	if len(p) == 0 {
		return "[]", nil
	}
	return string(p), nil
}

// MarshalJSON 保持原始内容透传。
func (p JSONPayload) MarshalJSON() ([]byte, error) {
	if len(p) == 0 {
		return []byte("null"), nil
	}
	return p, nil
}

// UnmarshalJSON 保持原始内容透传。
func (p *JSONPayload) UnmarshalJSON(data []byte) error {
	*p = append((*p)[0:0], data...)
	return nil
}

// BaseModel 通用审计字段（数据库侧模型嵌入）
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}
