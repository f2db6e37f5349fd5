package contextconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetReturnsExactRecordForKnownIntent(t *testing.T) {
	cfg := Get("documents")
	assert.Equal(t, ModeSpecific, cfg.Mode)
	assert.Equal(t, 2, cfg.Chunks)
	assert.Equal(t, 5, cfg.MaxDescendants)
	assert.Equal(t, 2, cfg.MaxSiblings)
	assert.True(t, cfg.IncludeParents)
	assert.True(t, cfg.EnableStructuredOutput)
}

func TestGetFallsBackToOverviewForUnknownIntent(t *testing.T) {
	cfg := Get("some_unrecognized_intent")
	assert.Equal(t, Table[FallbackIntent], cfg)
}

func TestGetOverviewDisablesStructuredOutput(t *testing.T) {
	cfg := Get("overview")
	assert.False(t, cfg.EnableStructuredOutput)
}

func TestEstimateTokensDocumentsIntentIsWellUnderUnscopedAverage(t *testing.T) {
	cfg := Get("documents")
	tokens := EstimateTokens(cfg, AvgChunkTokens)
	assert.Less(t, tokens, 5350)
	assert.Equal(t, 2*428+2*5*440+2*440, tokens)
}

func TestEstimateTokensExcludesParentsWhenNotIncluded(t *testing.T) {
	cfg := Config{Chunks: 2, MaxDescendants: 1, MaxSiblings: 0, IncludeParents: false}
	assert.Equal(t, 2*1*AvgChunkTokens, EstimateTokens(cfg, AvgChunkTokens))
}

func TestValidateBoundsChunksDescendantsSiblings(t *testing.T) {
	assert.True(t, Validate(Config{Chunks: 1, MaxDescendants: 0, MaxSiblings: 0}))
	assert.True(t, Validate(Config{Chunks: 10, MaxDescendants: 100, MaxSiblings: 20}))
	assert.False(t, Validate(Config{Chunks: 0, MaxDescendants: 0, MaxSiblings: 0}))
	assert.False(t, Validate(Config{Chunks: 11, MaxDescendants: 0, MaxSiblings: 0}))
	assert.False(t, Validate(Config{Chunks: 1, MaxDescendants: 101, MaxSiblings: 0}))
	assert.False(t, Validate(Config{Chunks: 1, MaxDescendants: 0, MaxSiblings: 21}))
}

func TestAllIntentsCoversEveryTableEntry(t *testing.T) {
	intents := AllIntents()
	assert.Len(t, intents, len(Table))
	for intent := range Table {
		assert.Contains(t, intents, intent)
	}
}

func TestAllStatsReportsOneEntryPerIntent(t *testing.T) {
	stats := AllStats()
	assert.Len(t, stats, len(Table))
	for intent, cfg := range Table {
		s, ok := stats[intent]
		assert.True(t, ok)
		assert.Equal(t, cfg.Mode, s.Mode)
		assert.Equal(t, cfg.Chunks, s.Chunks)
	}
}

func TestEveryTableEntryIsValid(t *testing.T) {
	for intent, cfg := range Table {
		assert.True(t, Validate(cfg), "intent %q should satisfy Validate bounds", intent)
	}
}
