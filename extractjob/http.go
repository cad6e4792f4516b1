package extractjob

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mengeric/extractjob-go/artifact"
	"github.com/mengeric/extractjob-go/job"
	"github.com/mengeric/extractjob-go/scheduler"
)

// RetryAfterSeconds 名额已满时建议客户端等待的秒数。
const RetryAfterSeconds = 300

// SubmitRequest 提交任务请求体。
type SubmitRequest struct {
	Subject string         `json:"subject"`
	Params  map[string]any `json:"params,omitempty"`
}

// SubmitResponse 提交成功响应。
type SubmitResponse struct {
	JobID     string     `json:"job_id"`
	Status    job.Status `json:"status"`
	CreatedAt string     `json:"created_at"`
	Message   string     `json:"message"`
}

// ErrorResponse 错误响应。ActiveJobs/RetryAfter 仅在 429 时出现。
type ErrorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message,omitempty"`
	ActiveJobs *int   `json:"active_jobs,omitempty"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

// CancelResponse 取消成功响应。
type CancelResponse struct {
	JobID     string `json:"job_id"`
	Cancelled bool   `json:"cancelled"`
}

func (e *Engine) newEcho() *echo.Echo {
	ec := echo.New()
	ec.HideBanner = true
	ec.HidePort = true
	ec.Use(middleware.Recover())
	ec.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			e.log.Debug(c.Request().Context(), "http request",
				"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))

	api := ec.Group(e.cfg.APIPrefix())
	api.POST("/:kind/jobs", e.handleSubmit)
	api.GET("/jobs/:id", e.handleStatus)
	api.GET("/jobs/:id/download", e.handleDownload)
	api.DELETE("/jobs/:id", e.handleCancel)

	ec.GET("/jobs", e.handleSummary)
	ec.GET("/health", e.handleHealth)
	return ec
}

// handleSubmit 创建并启动任务。
func (e *Engine) handleSubmit(c echo.Context) error {
	kind := c.Param("kind")
	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: err.Error()})
	}
	var input any
	if req.Params != nil {
		input = req.Params
	}

	id, err := e.Submit(c.Request().Context(), kind, req.Subject, input)
	switch {
	case err == nil:
	case errors.Is(err, ErrUnknownKind):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "unknown_job_type", Message: err.Error()})
	case errors.Is(err, scheduler.ErrCapacity):
		active := e.ActiveCount()
		var rej *scheduler.RejectedError
		if errors.As(err, &rej) {
			active = rej.Active
		}
		c.Response().Header().Set("Retry-After", fmt.Sprint(RetryAfterSeconds))
		return c.JSON(http.StatusTooManyRequests, ErrorResponse{
			Error:      "too_many_requests",
			Message:    fmt.Sprintf("maximum concurrent jobs (%d) reached, try again later", e.launcher.MaxConcurrent()),
			ActiveJobs: &active,
			RetryAfter: RetryAfterSeconds,
		})
	case errors.Is(err, scheduler.ErrStopped):
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "shutting_down", Message: err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "start_failed", Message: err.Error()})
	}

	j, _ := e.GetStatus(id)
	return c.JSON(http.StatusAccepted, SubmitResponse{
		JobID:     id,
		Status:    j.Status,
		CreatedAt: j.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"),
		Message:   fmt.Sprintf("%s job started", kind),
	})
}

// handleStatus 返回任务快照。
func (e *Engine) handleStatus(c echo.Context) error {
	j, ok := e.GetStatus(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "job_not_found", Message: "job not found"})
	}
	return c.JSON(http.StatusOK, j)
}

// handleDownload 以附件形式返回产物。
func (e *Engine) handleDownload(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	j, ok := e.GetStatus(id)
	if !ok {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "job_not_found", Message: "job not found"})
	}
	if j.Status != job.StatusCompleted {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "job_not_completed",
			Message: fmt.Sprintf("job is %s, results are only available for completed jobs", j.Status),
		})
	}
	ref, ok := e.GetArtifactLocation(ctx, id)
	if !ok {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "file_not_found", Message: "result file not found or expired"})
	}
	a, err := e.store.Read(ctx, ref)
	if errors.Is(err, artifact.ErrNotFound) {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "file_not_found", Message: "result file not found or expired"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "read_failed", Message: err.Error()})
	}
	b, err := artifact.Marshal(a.JobInfo, a.Payload)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "read_failed", Message: err.Error()})
	}
	name := fmt.Sprintf("%s_%s", j.Kind, artifact.FileName(id))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.JSONBlob(http.StatusOK, b)
}

// handleCancel 取消 queued 任务。
func (e *Engine) handleCancel(c echo.Context) error {
	id := c.Param("id")
	if _, ok := e.GetStatus(id); !ok {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "job_not_found", Message: "job not found"})
	}
	if !e.CancelJob(id) {
		return c.JSON(http.StatusConflict, ErrorResponse{Error: "not_cancellable", Message: "only queued jobs can be cancelled"})
	}
	return c.JSON(http.StatusOK, CancelResponse{JobID: id, Cancelled: true})
}

func (e *Engine) handleSummary(c echo.Context) error {
	return c.JSON(http.StatusOK, e.Summary())
}

func (e *Engine) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, e.Health(c.Request().Context()))
}
