package memory_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/launchsentinel/core/memory"
)

// hashEmbedder is a deterministic stand-in for a real embedding API: it
// derives a small vector from character counts so near-identical strings
// produce near-identical vectors without any network dependency.
type hashEmbedder struct{ name string }

func (h hashEmbedder) Name() string { return h.name }

func (h hashEmbedder) Embed(_ context.Context, content string) ([]float64, error) {
	vec := make([]float64, 26)
	lower := strings.ToLower(content)
	for _, r := range lower {
		if r >= 'a' && r <= 'z' {
			vec[r-'a']++
		}
	}
	return vec, nil
}

func waitForOutcome(t *testing.T, e *memory.Engine, pendingID string) memory.IndexOutcome {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if o, ok := e.Outcome(pendingID); ok {
			return o
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for index outcome %s", pendingID)
	return memory.IndexOutcome{}
}

func newTestEngine() *memory.Engine {
	e := memory.NewEngine(hashEmbedder{name: "test-embedder"}, zerolog.New(io.Discard))
	e.Start(context.Background())
	return e
}

func TestIndexAndFindSimilar(t *testing.T) {
	e := newTestEngine()
	defer e.Stop()

	receipt := e.Index("Strong liquidity added to the new token pool", memory.IndexMetadata{
		Source:      memory.SourceNews,
		Tickers:     []string{"MOON"},
		ContentTime: time.Now().UTC(),
	})
	if !receipt.Accepted {
		t.Fatalf("expected index to be accepted")
	}
	outcome := waitForOutcome(t, e, receipt.PendingID)
	if outcome.Err != nil {
		t.Fatalf("unexpected index error: %v", outcome.Err)
	}
	if outcome.IsDuplicate {
		t.Fatalf("expected first insert to not be a duplicate")
	}

	result, err := e.FindSimilar(context.Background(), memory.SimilarityQuery{
		Text:  "Strong liquidity added to the new token pool",
		Limit: 5,
	})
	if err != nil {
		t.Fatalf("FindSimilar error: %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected 1 result, got %d", len(result.Items))
	}
	if result.Items[0].Score < 0.99 {
		t.Fatalf("expected near-1.0 score for identical text, got %f", result.Items[0].Score)
	}
}

func TestDuplicateContentIsDeduped(t *testing.T) {
	e := newTestEngine()
	defer e.Stop()

	meta := memory.IndexMetadata{Source: memory.SourceSocial, ContentTime: time.Now().UTC()}
	first := e.Index("identical content for dedup test", meta)
	waitForOutcome(t, e, first.PendingID)

	second := e.Index("identical content for dedup test", meta)
	outcome := waitForOutcome(t, e, second.PendingID)
	if !outcome.IsDuplicate {
		t.Fatalf("expected exact repeat to be marked duplicate")
	}
}

func TestIndexNeverBlocksCaller(t *testing.T) {
	e := newTestEngine()
	defer e.Stop()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			e.Index("flood content", memory.IndexMetadata{Source: memory.SourceQuery})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("Index calls blocked under load")
	}
}

func TestFindSimilarFilterBySource(t *testing.T) {
	e := newTestEngine()
	defer e.Stop()

	r1 := e.Index("news about a fresh launch", memory.IndexMetadata{Source: memory.SourceNews})
	r2 := e.Index("social chatter about a fresh launch", memory.IndexMetadata{Source: memory.SourceSocial})
	waitForOutcome(t, e, r1.PendingID)
	waitForOutcome(t, e, r2.PendingID)

	result, err := e.FindSimilar(context.Background(), memory.SimilarityQuery{
		Text:  "fresh launch",
		Limit: 10,
		Filter: &memory.SimilarityFilter{Source: memory.SourceNews},
	})
	if err != nil {
		t.Fatalf("FindSimilar error: %v", err)
	}
	for _, item := range result.Items {
		if item.Item.Source != memory.SourceNews {
			t.Fatalf("expected only news-source items, got %s", item.Item.Source)
		}
	}
}
