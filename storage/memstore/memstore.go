package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/mengeric/extractjob-go/artifact"
)

// Store 是一个线程安全的内存实现，仅用于开发/轻量场景；进程退出即丢失。
type Store struct {
	mu sync.RWMutex
	m  map[string][]byte
}

// New 创建内存存储。
func New() *Store { return &Store{m: map[string][]byte{}} }

func (s *Store) Write(ctx context.Context, jobID string, payload any) (string, error) {
	b, err := artifact.Marshal(artifact.Info{JobID: jobID, WrittenAt: time.Now()}, payload)
	if err != nil {
		return "", err
	}
	ref := "mem:" + artifact.FileName(jobID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[ref] = b
	return ref, nil
}

func (s *Store) Read(ctx context.Context, ref string) (*artifact.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.m[ref]
	if !ok {
		return nil, artifact.ErrNotFound
	}
	return artifact.Unmarshal(b)
}

func (s *Store) Size(ctx context.Context, ref string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.m[ref]
	if !ok {
		return 0, artifact.ErrNotFound
	}
	return int64(len(b)), nil
}

func (s *Store) Exists(ctx context.Context, ref string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.m[ref]
	return ok
}

func (s *Store) Delete(ctx context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, ref)
	return nil
}

// Len 返回当前产物数量。
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
