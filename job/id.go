package job

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultTag = "job"

// NewID 生成任务ID：{类型标签}_{YYYYMMDD_HHMMSS}_{8位随机十六进制}。
func NewID(kind string, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return tag(kind) + "_" + now.Format("20060102_150405") + "_" + suffix
}

// tag 将 kind 规整为只含 [a-z0-9] 的标签。
func tag(kind string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(kind) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
		if b.Len() >= 32 {
			break
		}
	}
	if b.Len() == 0 {
		return defaultTag
	}
	return b.String()
}
