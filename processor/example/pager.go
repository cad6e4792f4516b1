package example

import (
	"context"
	"fmt"
	"time"

	"github.com/mengeric/extractjob-go/processor"
)

// PagerInput 示例抽取参数。
type PagerInput struct {
	Pages        int           `json:"pages"`
	ItemsPerPage int           `json:"items_per_page"`
	Delay        time.Duration `json:"delay"`
}

// Pager 一个示例处理器：逐页"抓取"固定数量的条目并上报进度。
// 分页等待期间响应 ctx 取消。
func Pager(ctx context.Context, jobID string, report processor.Reporter, input any) (processor.Payload, error) {
	in, err := pagerInput(input)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, in.Pages*in.ItemsPerPage)
	for page := 1; page <= in.Pages; page++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("stopped at page %d: %w", page, ctx.Err())
		case <-time.After(in.Delay):
		}
		for i := 0; i < in.ItemsPerPage; i++ {
			items = append(items, map[string]any{"page": page, "index": i})
		}
		pct := 10 + page*80/in.Pages
		report(pct, fmt.Sprintf("page %d/%d", page, in.Pages), map[string]any{
			"current_page":    page,
			"items_scraped":   len(items),
			"estimated_total": in.Pages * in.ItemsPerPage,
		})
	}
	return processor.Payload{
		"count":         len(items),
		"pages_scraped": in.Pages,
		"items":         items,
	}, nil
}

// Failing 返回带显式错误标记的结果，用于演示"结果内报错"的失败路径。
func Failing(ctx context.Context, jobID string, report processor.Reporter, input any) (processor.Payload, error) {
	report(20, "loading session", nil)
	msg, _ := input.(string)
	if msg == "" {
		msg = "failed to extract tokens"
	}
	return processor.Payload{processor.ErrorKey: msg, "items": []any{}}, nil
}

// Register 将示例处理器注册到目录。
func Register(c *processor.Catalog) {
	c.Register("pager", Pager)
	c.Register("failing", Failing)
}

func pagerInput(input any) (PagerInput, error) {
	in := PagerInput{Pages: 3, ItemsPerPage: 5}
	switch v := input.(type) {
	case nil:
	case PagerInput:
		in = v
	case *PagerInput:
		if v != nil {
			in = *v
		}
	case map[string]any:
		if n, ok := v["pages"].(float64); ok {
			in.Pages = int(n)
		}
		if n, ok := v["items_per_page"].(float64); ok {
			in.ItemsPerPage = int(n)
		}
		if ms, ok := v["delay_ms"].(float64); ok {
			in.Delay = time.Duration(ms) * time.Millisecond
		}
	default:
		return in, fmt.Errorf("pager: unsupported input %T", input)
	}
	if in.Pages <= 0 {
		return in, fmt.Errorf("pager: pages must be positive, got %d", in.Pages)
	}
	if in.ItemsPerPage < 0 {
		in.ItemsPerPage = 0
	}
	return in, nil
}
