// Package contextconfig is the C6 context configurator: an immutable
// intent-to-settings table controlling how much and what shape of context
// the pipeline assembles for a given query intent.
package contextconfig

// Mode is the semantic category a context configuration belongs to.
type Mode string

const (
	ModeSpecific    Mode = "specific"
	ModeComparison  Mode = "comparison"
	ModeList        Mode = "list"
	ModeExplanation Mode = "explanation"
	ModeGeneral     Mode = "general"
)

// Config controls context assembly for one intent.
type Config struct {
	Mode                   Mode
	Chunks                 int // number of top parent procedures to include
	MaxDescendants         int // max child chunks per parent procedure
	MaxSiblings            int // max child chunks from other procedures
	IncludeParents         bool
	EnableStructuredOutput bool
}

// FallbackIntent is the intent every unrecognized intent resolves to.
const FallbackIntent = "overview"

// Table maps query intent (from internal/queryenhancer) to its context
// configuration. Ported unchanged from the mapping this module was
// distilled from: per-intent chunk/descendant/sibling budgets tuned to
// keep assembled context in the 2,000-4,400 token range rather than the
// ~5,350-token average an intent-agnostic assembly produces.
var Table = map[string]Config{
	"documents": {
		Mode: ModeSpecific, Chunks: 2, MaxDescendants: 5, MaxSiblings: 2,
		IncludeParents: true, EnableStructuredOutput: true,
	},
	"fees": {
		Mode: ModeSpecific, Chunks: 2, MaxDescendants: 3, MaxSiblings: 1,
		IncludeParents: true, EnableStructuredOutput: true,
	},
	"location": {
		Mode: ModeSpecific, Chunks: 2, MaxDescendants: 3, MaxSiblings: 1,
		IncludeParents: true, EnableStructuredOutput: true,
	},
	"requirements": {
		Mode: ModeComparison, Chunks: 2, MaxDescendants: 2, MaxSiblings: 3,
		IncludeParents: true, EnableStructuredOutput: true,
	},
	"process": {
		Mode: ModeList, Chunks: 2, MaxDescendants: 40, MaxSiblings: 5,
		IncludeParents: true, EnableStructuredOutput: true,
	},
	"legal": {
		Mode: ModeExplanation, Chunks: 3, MaxDescendants: 4, MaxSiblings: 3,
		IncludeParents: true, EnableStructuredOutput: true,
	},
	"timeline": {
		Mode: ModeExplanation, Chunks: 3, MaxDescendants: 4, MaxSiblings: 3,
		IncludeParents: true, EnableStructuredOutput: true,
	},
	"overview": {
		Mode: ModeGeneral, Chunks: 3, MaxDescendants: 5, MaxSiblings: 2,
		IncludeParents: true, EnableStructuredOutput: false,
	},
}

// Get returns the context configuration for intent, falling back to the
// overview record for any intent the table doesn't recognize.
func Get(intent string) Config {
	if cfg, ok := Table[intent]; ok {
		return cfg
	}
	return Table[FallbackIntent]
}

// AvgChunkTokens is the default per-chunk token estimate used by
// EstimateTokens, drawn from the corpus's own chunk-size statistics.
const AvgChunkTokens = 440

const avgParentTokens = 428

// EstimateTokens estimates the total context token budget a configuration
// will produce: parent overviews (if included) at a fixed 428 tokens each,
// plus descendant chunks plus sibling chunks at avgChunkTokens each (pass
// AvgChunkTokens for the default).
func EstimateTokens(cfg Config, avgChunkTokens int) int {
	var parentTokens int
	if cfg.IncludeParents {
		parentTokens = cfg.Chunks * avgParentTokens
	}
	descendantTokens := cfg.Chunks * cfg.MaxDescendants * avgChunkTokens
	siblingTokens := cfg.MaxSiblings * avgChunkTokens
	return parentTokens + descendantTokens + siblingTokens
}

// Validate reports whether cfg's fields fall within the bounds the
// configurator enforces: chunks in [1,10], max_descendants in [0,100],
// max_siblings in [0,20].
func Validate(cfg Config) bool {
	if cfg.Chunks < 1 || cfg.Chunks > 10 {
		return false
	}
	if cfg.MaxDescendants < 0 || cfg.MaxDescendants > 100 {
		return false
	}
	if cfg.MaxSiblings < 0 || cfg.MaxSiblings > 20 {
		return false
	}
	return true
}

// AllIntents returns every intent the table recognizes.
func AllIntents() []string {
	out := make([]string, 0, len(Table))
	for intent := range Table {
		out = append(out, intent)
	}
	return out
}

// Stats summarizes one intent's configuration for monitoring/introspection.
type Stats struct {
	Mode             Mode
	EstimatedTokens  int
	Chunks           int
	MaxDescendants   int
	StructuredOutput bool
}

// AllStats returns per-intent Stats for every entry in Table.
func AllStats() map[string]Stats {
	out := make(map[string]Stats, len(Table))
	for intent, cfg := range Table {
		out[intent] = Stats{
			Mode:             cfg.Mode,
			EstimatedTokens:  EstimateTokens(cfg, AvgChunkTokens),
			Chunks:           cfg.Chunks,
			MaxDescendants:   cfg.MaxDescendants,
			StructuredOutput: cfg.EnableStructuredOutput,
		}
	}
	return out
}
