// Package client 是任务编排服务 HTTP 接口的客户端。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mengeric/extractjob-go/artifact"
	"github.com/mengeric/extractjob-go/job"
	"github.com/mengeric/extractjob-go/logging"
)

// API 定义与任务编排服务的交互接口，便于 gomock 打桩。
type API interface {
	Submit(ctx context.Context, kind string, req SubmitRequest) (SubmitResponse, error)
	Status(ctx context.Context, id string) (job.Job, error)
	Cancel(ctx context.Context, id string) error
	Download(ctx context.Context, id string) (*artifact.Artifact, error)
	Summary(ctx context.Context) (Summary, error)
	Health(ctx context.Context) (Health, error)
}

// httpAPI 实现 API。
type httpAPI struct {
	hc      *http.Client
	base    string
	version string
}

// Option httpAPI 可选项。
type Option func(*httpAPI)

// WithHTTPClient 替换底层 http.Client。
func WithHTTPClient(hc *http.Client) Option { return func(h *httpAPI) { h.hc = hc } }

// WithAPIVersion 接口版本，默认 v1。
func WithAPIVersion(v string) Option { return func(h *httpAPI) { h.version = v } }

// NewHTTPAPI 构造 HTTP 实现。baseURL 形如 http://127.0.0.1:8091。
func NewHTTPAPI(baseURL string, opts ...Option) API {
	h := &httpAPI{
		hc:      &http.Client{Timeout: 8 * time.Second},
		base:    strings.TrimRight(baseURL, "/"),
		version: "v1",
	}
	for _, fn := range opts {
		fn(h)
	}
	return h
}

// Submit 发起 POST /api/{v}/{kind}/jobs。
// 名额已满时返回 *StatusError（IsCapacity 为 true），RetryAfter 给出建议等待时间。
func (h *httpAPI) Submit(ctx context.Context, kind string, req SubmitRequest) (SubmitResponse, error) {
	var out SubmitResponse
	err := h.do(ctx, http.MethodPost, h.api(url.PathEscape(kind), "jobs"), req, &out)
	return out, err
}

// Status 查询任务快照。
func (h *httpAPI) Status(ctx context.Context, id string) (job.Job, error) {
	var out job.Job
	err := h.do(ctx, http.MethodGet, h.api("jobs", url.PathEscape(id)), nil, &out)
	return out, err
}

// Cancel 取消 queued 任务；不可取消时返回 409 的 *StatusError。
func (h *httpAPI) Cancel(ctx context.Context, id string) error {
	return h.do(ctx, http.MethodDelete, h.api("jobs", url.PathEscape(id)), nil, nil)
}

// Download 下载并解析产物。
func (h *httpAPI) Download(ctx context.Context, id string) (*artifact.Artifact, error) {
	var out artifact.Artifact
	if err := h.do(ctx, http.MethodGet, h.api("jobs", url.PathEscape(id), "download"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Summary 查询 /jobs。
func (h *httpAPI) Summary(ctx context.Context) (Summary, error) {
	var out Summary
	err := h.do(ctx, http.MethodGet, h.base+"/jobs", nil, &out)
	return out, err
}

// Health 查询 /health。
func (h *httpAPI) Health(ctx context.Context) (Health, error) {
	var out Health
	err := h.do(ctx, http.MethodGet, h.base+"/health", nil, &out)
	return out, err
}

func (h *httpAPI) api(parts ...string) string {
	return h.base + "/api/" + h.version + "/" + strings.Join(parts, "/")
}

// do 执行请求并可选解码 JSON 响应；非 2xx 转为 *StatusError。
func (h *httpAPI) do(ctx context.Context, method, u string, body any, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := h.hc.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(res.Body)
		se := &StatusError{Method: method, URL: u, Code: res.StatusCode, Raw: string(raw)}
		_ = json.Unmarshal(raw, &se.Body)
		logging.L().Debug(ctx, "request rejected", "method", method, "url", u, "code", res.StatusCode)
		return se
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, u, err)
	}
	return nil
}
