package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/mengeric/extractjob-go/artifact"
)

// Store 基于本地目录的 artifact.Store 实现，每个任务一个 <jobID>.json 文件。
// 引用即文件路径。
type Store struct {
	dir        string
	apiVersion string
	now        func() time.Time
}

// Option Store 可选项。
type Option func(*Store)

// WithAPIVersion 写入产物 job_info.api_version。
func WithAPIVersion(v string) Option { return func(s *Store) { s.apiVersion = v } }

// WithClock 替换时间源（测试用）。
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// New 创建 Store，目录不存在时自动创建。
func New(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}
	s := &Store{dir: dir, now: time.Now}
	for _, fn := range opts {
		fn(s)
	}
	return s, nil
}

// Dir 返回结果目录。
func (s *Store) Dir() string { return s.dir }

// Write 实现 artifact.Store.Write：先写临时文件再 rename，避免读到半截文件。
func (s *Store) Write(ctx context.Context, jobID string, payload any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b, err := artifact.Marshal(artifact.Info{JobID: jobID, WrittenAt: s.now(), APIVersion: s.apiVersion}, payload)
	if err != nil {
		return "", fmt.Errorf("encode artifact %s: %w", jobID, err)
	}
	path := filepath.Join(s.dir, artifact.FileName(jobID))
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	return path, nil
}

// Read 实现 artifact.Store.Read。
func (s *Store) Read(ctx context.Context, ref string) (*artifact.Artifact, error) {
	b, err := os.ReadFile(ref)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, artifact.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return artifact.Unmarshal(b)
}

// Size 实现 artifact.Store.Size。
func (s *Store) Size(ctx context.Context, ref string) (int64, error) {
	fi, err := os.Stat(ref)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, artifact.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// Exists 实现 artifact.Store.Exists。
func (s *Store) Exists(ctx context.Context, ref string) bool {
	if ref == "" {
		return false
	}
	fi, err := os.Stat(ref)
	return err == nil && fi.Mode().IsRegular()
}

// Delete 实现 artifact.Store.Delete。
func (s *Store) Delete(ctx context.Context, ref string) error {
	if ref == "" {
		return nil
	}
	err := os.Remove(ref)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
