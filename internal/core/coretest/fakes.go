package coretest

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/corpora-app/corpora/internal/core"
)

// FakeObjectStore keeps blobs in a map. DeleteCalls records every key a
// delete was attempted on, including misses.
type FakeObjectStore struct {
	mu          sync.Mutex
	blobs       map[string][]byte
	DeleteCalls []string
	FailFetch   error
	FailDelete  error
}

var _ core.ObjectClient = (*FakeObjectStore)(nil)

func NewFakeObjectStore() *FakeObjectStore {
	return &FakeObjectStore{blobs: map[string][]byte{}}
}

func (f *FakeObjectStore) Put(key string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[key] = data
}

func (f *FakeObjectStore) Has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.blobs[key]
	return ok
}

func (f *FakeObjectStore) Upload(_ context.Context, key string, data io.Reader, _ string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.Put(key, b)
	return nil
}

func (f *FakeObjectStore) FetchBytes(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailFetch != nil {
		return nil, f.FailFetch
	}
	b, ok := f.blobs[key]
	if !ok {
		return nil, fmt.Errorf("blob %s not found", key)
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (f *FakeObjectStore) DeleteBlob(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DeleteCalls = append(f.DeleteCalls, key)
	if f.FailDelete != nil {
		return f.FailDelete
	}
	delete(f.blobs, key)
	return nil
}

// FakeEmbedder produces deterministic vectors, or delegates to EmbedFunc
// when a test needs custom behavior such as transient failures.
type FakeEmbedder struct {
	Dimensions int
	EmbedFunc  func(ctx context.Context, texts []string) ([][]float32, error)

	mu    sync.Mutex
	Calls [][]string
}

var _ core.EmbeddingProvider = (*FakeEmbedder)(nil)

func (f *FakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, append([]string(nil), texts...))
	f.mu.Unlock()

	if f.EmbedFunc != nil {
		return f.EmbedFunc(ctx, texts)
	}

	dims := f.Dimensions
	if dims == 0 {
		dims = 4
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = DeterministicVector(t, dims)
	}
	return out, nil
}

// DeterministicVector hashes text into a unit-length vector so equal
// inputs always embed identically.
func DeterministicVector(text string, dims int) []float32 {
	v := make([]float32, dims)
	var h uint32 = 2166136261
	for _, b := range []byte(text) {
		h ^= uint32(b)
		h *= 16777619
	}
	var norm float64
	for i := range v {
		h ^= h << 13
		h ^= h >> 17
		h ^= h << 5
		v[i] = float32(h%1000)/1000.0 + 0.001
		norm += float64(v[i]) * float64(v[i])
	}
	if norm > 0 {
		scale := float32(1.0 / math.Sqrt(norm))
		for i := range v {
			v[i] *= scale
		}
	}
	return v
}
