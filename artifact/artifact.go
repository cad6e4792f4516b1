// Package artifact 定义任务结果产物的存储接口与落盘格式。
package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dustin/go-humanize"
)

// ErrNotFound 产物不存在。
var ErrNotFound = errors.New("artifact: not found")

// UnknownSize 无法获取大小时的展示值。
const UnknownSize = "Unknown"

// Info 产物的来源信息。
type Info struct {
	JobID      string    `json:"job_id"`
	WrittenAt  time.Time `json:"written_at"`
	APIVersion string    `json:"api_version,omitempty"`
}

// Artifact 单个产物文档：来源信息 + 处理器原样输出。
type Artifact struct {
	JobInfo Info            `json:"job_info"`
	Payload json.RawMessage `json:"payload"`
}

// Decode 将 Payload 解码到 v。
func (a *Artifact) Decode(v any) error { return json.Unmarshal(a.Payload, v) }

// Store 产物存储接口（可由宿主实现或使用 storage/* 下的内置实现）。
type Store interface {
	// Write 序列化 payload 与来源信息，返回用于后续读取/删除的引用。
	Write(ctx context.Context, jobID string, payload any) (ref string, err error)
	// Read 按引用读取产物。
	Read(ctx context.Context, ref string) (*Artifact, error)
	// Size 返回产物字节数。
	Size(ctx context.Context, ref string) (int64, error)
	// Exists 判断产物是否存在。
	Exists(ctx context.Context, ref string) bool
	// Delete 删除产物；不存在时不报错。
	Delete(ctx context.Context, ref string) error
}

// HumanSize 返回产物的可读大小，如 "1.2 KiB"；失败时返回 UnknownSize。
func HumanSize(ctx context.Context, s Store, ref string) string {
	if ref == "" {
		return UnknownSize
	}
	n, err := s.Size(ctx, ref)
	if err != nil || n < 0 {
		return UnknownSize
	}
	return humanize.IBytes(uint64(n))
}

// FileName 产物的确定性文件名。
func FileName(jobID string) string { return jobID + ".json" }

// Marshal 生成产物文档字节（缩进 JSON，不转义 HTML 与非 ASCII 字符）。
func Marshal(info Info, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	doc := Artifact{JobInfo: info, Payload: raw}
	return marshalIndent(doc)
}

// Unmarshal 解析产物文档。
func Unmarshal(b []byte) (*Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, err
	}
	return &a, nil
}
