// Package queryenhancer is the C5 query understanding stage: procedure-code
// detection, query rewriting, intent classification, entity extraction, and
// query-variation generation ahead of retrieval.
package queryenhancer

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

// ProcedureCodePattern matches administrative procedure codes such as
// "1.013133" or "2.002767".
var ProcedureCodePattern = regexp.MustCompile(`\b\d+\.\d{5,6}\b`)

// IntentKeywords maps an intent to the Vietnamese phrases whose presence in
// a question votes for that intent.
var IntentKeywords = map[string][]string{
	"documents":    {"giấy tờ cần nộp", "hồ sơ bao gồm", "văn bản nộp", "tài liệu cần", "nộp gì"},
	"requirements": {"điều kiện", "yêu cầu", "ai được", "đối tượng", "được làm", "được phép"},
	"process":      {"trình tự", "các bước", "làm thế nào", "quy trình", "cách thức"},
	"legal":        {"căn cứ", "pháp lý", "luật", "nghị định", "thông tư", "quy định"},
	"timeline":     {"thời gian", "bao lâu", "thời hạn", "mất bao lâu", "trong vòng", "ngày làm việc"},
	"fees":         {"phí", "lệ phí", "chi phí", "tốn", "giá", "mất bao nhiêu"},
	"location":     {"ở đâu", "địa chỉ", "nơi", "cơ quan nào", "đến đâu"},
}

// intentOrder fixes the tie-break order DetectIntent scores intents in:
// the first intent to reach the high score wins a tie, matching the
// original implementation's insertion-ordered dict traversal. Keep this in
// sync with IntentKeywords's key set.
var intentOrder = []string{"documents", "requirements", "process", "legal", "timeline", "fees", "location"}

// IntentExclusions disqualifies an intent's keyword score to zero when one
// of its exclusion phrases is also present — handles compound queries where
// a documents keyword co-occurs with what is really a timing question.
var IntentExclusions = map[string][]string{
	"documents": {"thời gian", "bao lâu", "thời hạn", "hình thức thông báo", "thông báo"},
}

// FilterTable maps a non-overview intent to the child chunk type(s) its
// vector-store filter should restrict to. fees and location have no entry
// and so get no chunk_type filter.
var FilterTable = map[string]any{
	"documents":    "child_documents",
	"requirements": "child_requirements",
	"process":      "child_process",
	"timeline":     []string{"child_process", "child_fees_timing"},
	"legal":        "child_legal",
}

// DefaultIntent is what detection falls back to once both the keyword
// scorer and the LLM fail to produce a valid intent.
const DefaultIntent = "overview"

// Outcome tags how QueryInfo.Intent was actually resolved, so callers (and
// metrics) can distinguish a confident keyword match from a cold default.
type Outcome int

const (
	// PrimaryOK means the keyword scorer found a winner (a tie goes to the
	// intent earliest in intentOrder).
	PrimaryOK Outcome = iota
	// FallbackLLM means no keyword matched and the LLM classified the query.
	FallbackLLM
	// FallbackDefault means neither the keyword scorer nor the LLM (or no
	// LLM was configured) produced a usable intent; DefaultIntent was used.
	FallbackDefault
)

func (o Outcome) String() string {
	switch o {
	case PrimaryOK:
		return "primary_ok"
	case FallbackLLM:
		return "fallback_llm"
	default:
		return "fallback_default"
	}
}

// QueryInfo is the fully-enhanced view of a user question.
type QueryInfo struct {
	OriginalQuery   string
	Intent          string
	IntentOutcome   Outcome
	QueryVariations []string
	Entities        Entities
	Filters         map[string]any
	ExactCode       string // "" when no procedure code was detected
}

// Entities is the structured extraction result for a question.
type Entities struct {
	ProcedureName string   `json:"thu_tuc_name"`
	Field         string   `json:"linh_vuc"`
	Keywords      []string `json:"keywords"`
}

// LLM is the minimal completion backend queryenhancer needs: a single
// system+prompt turn returning raw text. OllamaLLM and AnthropicLLM both
// satisfy it.
type LLM interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Enhancer runs query enhancement. A nil LLM degrades gracefully: intent
// detection falls back to DefaultIntent instead of calling out, and entity
// extraction/variation generation return their static fallbacks.
type Enhancer struct {
	LLM LLM
}

// New constructs an Enhancer. llm may be nil to run keyword-only, LLM-free.
func New(llm LLM) *Enhancer {
	return &Enhancer{LLM: llm}
}

var fillerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^nếu\s+(tôi|mình|em)\s+`),
	regexp.MustCompile(`\s+thì\s+`),
	regexp.MustCompile(`\s+có\s+`),
	regexp.MustCompile(`(khác\s+gì|khác\s+nhau\s+như\s+thế\s+nào|sự\s+khác\s+biệt)`),
	regexp.MustCompile(`(so\s+với|với)`),
	regexp.MustCompile(`(bằng\s+cách\s+nào|như\s+thế\s+nào)`),
	regexp.MustCompile(`\?$`),
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// RewriteQuery strips filler words and question-phrasing patterns to
// produce a denser retrieval query. Returns the original question unchanged
// if stripping leaves fewer than 3 words.
func RewriteQuery(question string) string {
	simplified := strings.ToLower(question)
	for _, p := range fillerPatterns {
		simplified = p.ReplaceAllString(simplified, " ")
	}
	simplified = strings.TrimSpace(whitespaceRun.ReplaceAllString(simplified, " "))
	if len(strings.Fields(simplified)) < 3 {
		return question
	}
	return simplified
}

// ExtractProcedureCode returns the first administrative procedure code
// found in question, and whether one was found.
func ExtractProcedureCode(question string) (string, bool) {
	match := ProcedureCodePattern.FindString(question)
	return match, match != ""
}

// DetectIntent classifies question by counting matched keywords, falling
// back to the LLM (if configured) and finally to DefaultIntent.
func (e *Enhancer) DetectIntent(ctx context.Context, question string) (string, Outcome) {
	lower := strings.ToLower(question)

	best := ""
	bestScore := 0
	for _, intent := range intentOrder {
		keywords := IntentKeywords[intent]
		score := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if exclusions, ok := IntentExclusions[intent]; ok {
			for _, excl := range exclusions {
				if strings.Contains(lower, excl) {
					score = 0
					break
				}
			}
		}
		if score > bestScore {
			bestScore = score
			best = intent
		}
	}
	if best != "" {
		return best, PrimaryOK
	}

	if e.LLM == nil {
		return DefaultIntent, FallbackDefault
	}

	prompt := intentPrompt(question)
	raw, err := e.LLM.Complete(ctx, "", prompt)
	if err != nil {
		log.Debug().Err(err).Msg("queryenhancer_intent_llm_error")
		return DefaultIntent, FallbackDefault
	}
	intent := strings.ToLower(strings.TrimSpace(raw))
	if _, ok := IntentKeywords[intent]; ok {
		return intent, FallbackLLM
	}
	if intent == DefaultIntent {
		return DefaultIntent, FallbackLLM
	}
	return DefaultIntent, FallbackDefault
}

func intentPrompt(question string) string {
	return `Câu hỏi của người dùng: "` + question + `"

Xác định intent (mục đích) của câu hỏi. Chọn MỘT trong các intent sau:
- documents: Hỏi về giấy tờ, hồ sơ cần nộp
- requirements: Hỏi về điều kiện, yêu cầu, đối tượng được làm
- process: Hỏi về quy trình, trình tự, các bước thực hiện
- legal: Hỏi về căn cứ pháp lý
- timeline: Hỏi về thời gian, thời hạn
- fees: Hỏi về phí, lệ phí
- location: Hỏi về địa chỉ, địa điểm
- overview: Hỏi tổng quan về thủ tục

Chỉ trả về TÊN INTENT, không giải thích.
Intent:`
}

// ExtractEntities asks the LLM to pull a procedure name, field, and keyword
// list out of question. Returns the zero-value Entities when no LLM is
// configured or the call/parse fails.
func (e *Enhancer) ExtractEntities(ctx context.Context, question string) Entities {
	if e.LLM == nil {
		return Entities{}
	}
	prompt := `Trích xuất thông tin từ câu hỏi sau:
"` + question + `"

Hãy trích xuất:
1. thu_tuc_name: Tên thủ tục hành chính (nếu có)
2. linh_vuc: Lĩnh vực (VD: hộ tịch, đăng ký kinh doanh, xây dựng...)
3. keywords: Từ khóa chính

Trả về JSON với format:
{
  "thu_tuc_name": "...",
  "linh_vuc": "...",
  "keywords": ["...", "..."]
}

Chỉ trả về JSON, không giải thích.`

	raw, err := e.LLM.Complete(ctx, "", prompt)
	if err != nil {
		log.Debug().Err(err).Msg("queryenhancer_entities_llm_error")
		return Entities{}
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		return Entities{}
	}
	var entities Entities
	if err := json.Unmarshal([]byte(raw[start:end+1]), &entities); err != nil {
		log.Debug().Err(err).Msg("queryenhancer_entities_parse_error")
		return Entities{}
	}
	return entities
}

// GenerateVariations asks the LLM for numVariations alternate phrasings of
// question tailored to intent, falling back to mechanical substitutions
// when no LLM is configured or the call/parse fails.
func (e *Enhancer) GenerateVariations(ctx context.Context, question, intent string, numVariations int) []string {
	if e.LLM != nil {
		prompt := variationsPrompt(question, intent, numVariations)
		raw, err := e.LLM.Complete(ctx, "", prompt)
		if err == nil {
			start := strings.Index(raw, "[")
			end := strings.LastIndex(raw, "]")
			if start != -1 && end > start {
				var variations []string
				if err := json.Unmarshal([]byte(raw[start:end+1]), &variations); err == nil {
					if len(variations) > numVariations {
						variations = variations[:numVariations]
					}
					return variations
				}
			}
		} else {
			log.Debug().Err(err).Msg("queryenhancer_variations_llm_error")
		}
	}

	fallback := []string{
		question,
		strings.ReplaceAll(question, "cần gì", "bao gồm những gì"),
		strings.ReplaceAll(question, "làm thế nào", "quy trình"),
	}
	if numVariations < len(fallback) {
		return fallback[:numVariations]
	}
	return fallback
}

func variationsPrompt(question, intent string, numVariations int) string {
	return `Câu hỏi gốc: "` + question + `"
Intent: ` + intent + `

Hãy tạo ` + itoa(numVariations) + ` variations (cách diễn đạt khác) của câu hỏi này để tìm kiếm hiệu quả hơn.

Yêu cầu:
1. Giữ nguyên ý nghĩa của câu hỏi gốc
2. Sử dụng từ đồng nghĩa
3. Thay đổi cấu trúc câu
4. Tập trung vào intent "` + intent + `"

Trả về JSON array:
["variation 1", "variation 2", "variation 3"]

Chỉ trả về JSON array, không giải thích.`
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}

// BuildFilters returns the vector-store filter set appropriate for intent.
// Overview (and any intent without a chunk-type mapping) gets no filter.
func BuildFilters(intent string) map[string]any {
	filters := map[string]any{}
	if intent == DefaultIntent {
		return filters
	}
	if chunkType, ok := FilterTable[intent]; ok {
		filters["chunk_type"] = chunkType
	}
	return filters
}

// Enhance runs the full enhancement pipeline: exact-code extraction, query
// rewriting, intent detection, entity extraction, variation generation, and
// filter construction.
func (e *Enhancer) Enhance(ctx context.Context, question string) QueryInfo {
	exactCode, _ := ExtractProcedureCode(question)
	rewritten := RewriteQuery(question)

	intent, outcome := e.DetectIntent(ctx, question)
	log.Debug().Str("intent", intent).Str("intent_outcome", outcome.String()).Msg("queryenhancer_intent_resolved")
	entities := e.ExtractEntities(ctx, question)

	var variations []string
	if !strings.EqualFold(rewritten, question) {
		variations = append([]string{rewritten}, e.GenerateVariations(ctx, question, intent, 2)...)
	} else {
		variations = e.GenerateVariations(ctx, question, intent, 3)
	}

	return QueryInfo{
		OriginalQuery:   question,
		Intent:          intent,
		IntentOutcome:   outcome,
		QueryVariations: variations,
		Entities:        entities,
		Filters:         BuildFilters(intent),
		ExactCode:       exactCode,
	}
}
