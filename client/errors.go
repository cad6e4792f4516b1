package client

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// StatusError 非 2xx 响应。
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   ErrorBody
	Raw    string
}

func (e *StatusError) Error() string {
	if e.Body.Error != "" {
		return fmt.Sprintf("%s %s => %d: %s: %s", e.Method, e.URL, e.Code, e.Body.Error, e.Body.Message)
	}
	return fmt.Sprintf("%s %s => %d: %s", e.Method, e.URL, e.Code, e.Raw)
}

// IsCapacity 判断是否因并发名额已满被拒绝（HTTP 429）。
func IsCapacity(err error) bool { return hasCode(err, http.StatusTooManyRequests) }

// IsNotFound 判断任务或产物不存在（HTTP 404）。
func IsNotFound(err error) bool { return hasCode(err, http.StatusNotFound) }

// RetryAfter 返回 429 响应建议的等待时间，其他错误返回 0。
func RetryAfter(err error) time.Duration {
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusTooManyRequests {
		return time.Duration(se.Body.RetryAfter) * time.Second
	}
	return 0
}

func hasCode(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
