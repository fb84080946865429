package memory_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"

	"github.com/launchsentinel/core/memory"
)

type failingProvider struct{ name string }

func (f failingProvider) Name() string { return f.name }
func (f failingProvider) Embed(context.Context, string) ([]float64, error) {
	return nil, errors.New("provider unavailable")
}

type staticProvider struct {
	name string
	vec  []float64
}

func (s staticProvider) Name() string { return s.name }
func (s staticProvider) Embed(context.Context, string) ([]float64, error) {
	return s.vec, nil
}

func TestResilientEmbedderFallsBackOnFailure(t *testing.T) {
	primary := failingProvider{name: "primary"}
	fallback := staticProvider{name: "fallback", vec: []float64{1, 2, 3}}
	r := memory.NewResilientEmbedder(primary, fallback, zerolog.New(io.Discard))

	vec, err := r.Embed(context.Background(), "content")
	if err != nil {
		t.Fatalf("expected fallback to succeed, got error: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("expected fallback vector, got %v", vec)
	}
}

func TestResilientEmbedderNoFallbackPropagatesError(t *testing.T) {
	primary := failingProvider{name: "primary"}
	r := memory.NewResilientEmbedder(primary, nil, zerolog.New(io.Discard))

	_, err := r.Embed(context.Background(), "content")
	if err == nil {
		t.Fatalf("expected error with no fallback configured")
	}
}

func TestResilientEmbedderUsesPrimaryWhenHealthy(t *testing.T) {
	primary := staticProvider{name: "primary", vec: []float64{4, 5, 6}}
	fallback := staticProvider{name: "fallback", vec: []float64{1, 2, 3}}
	r := memory.NewResilientEmbedder(primary, fallback, zerolog.New(io.Discard))

	vec, err := r.Embed(context.Background(), "content")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vec[0] != 4 {
		t.Fatalf("expected primary vector, got %v", vec)
	}
	if r.Name() != "primary" {
		t.Fatalf("expected primary name, got %s", r.Name())
	}
}
