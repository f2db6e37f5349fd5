package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"retrievalcore/internal/chunk"
	"retrievalcore/internal/contextconfig"
	"retrievalcore/internal/procgraph"
	"retrievalcore/internal/vectorstore"
)

const (
	truncateWordThreshold = 1200
	truncateKeepWords     = 600
	elisionMarker         = "\n[... content truncated ...]\n"
)

// truncateContent applies the content-safety net: text longer than
// truncateWordThreshold words is reduced to its first and last
// truncateKeepWords words, joined by an elision marker, so one oversized
// chunk can never blow the assembled context's token budget.
func truncateContent(text string) (string, bool) {
	words := strings.Fields(text)
	if len(words) <= truncateWordThreshold {
		return text, false
	}
	head := strings.Join(words[:truncateKeepWords], " ")
	tail := strings.Join(words[len(words)-truncateKeepWords:], " ")
	return head + elisionMarker + tail, true
}

type assembledContext struct {
	context    string
	confidence float64
}

// assembleContext groups scored child/parent candidates by procedure,
// picks the top procedures and the top descendants within each, resolves
// and prepends parent overview content, appends a bounded number of
// sibling chunks from other procedures, and formats the result as
// citation-ready text blocks.
func assembleContext(scored []CandidateChunk, parentMatches []vectorstore.Match, cfg contextconfig.Config, graph *procgraph.Graph, logger Logger) assembledContext {
	if len(scored) == 0 {
		return assembledContext{context: "", confidence: 0.0}
	}

	parentByProcedure := make(map[string]chunk.Chunk, len(parentMatches))
	parentByChunkID := make(map[string]chunk.Chunk, len(parentMatches))
	for _, m := range parentMatches {
		parentByProcedure[m.Chunk.ProcedureID] = m.Chunk
		parentByChunkID[m.Chunk.ChunkID] = m.Chunk
	}

	byProcedure := make(map[string][]CandidateChunk)
	procedureOrder := make([]string, 0)
	for _, c := range scored {
		if c.Chunk.IsParent() {
			continue
		}
		if _, ok := byProcedure[c.Chunk.ProcedureID]; !ok {
			procedureOrder = append(procedureOrder, c.Chunk.ProcedureID)
		}
		byProcedure[c.Chunk.ProcedureID] = append(byProcedure[c.Chunk.ProcedureID], c)
	}
	if len(byProcedure) == 0 {
		// Nothing but parent chunks survived (e.g. exact-code match with no
		// children indexed yet); treat parents as the assembly unit.
		for _, c := range scored {
			if _, ok := byProcedure[c.Chunk.ProcedureID]; !ok {
				procedureOrder = append(procedureOrder, c.Chunk.ProcedureID)
			}
			byProcedure[c.Chunk.ProcedureID] = append(byProcedure[c.Chunk.ProcedureID], c)
		}
	}

	bestScore := make(map[string]float64, len(byProcedure))
	for procID, chunks := range byProcedure {
		sort.Slice(chunks, func(i, j int) bool { return chunks[i].FinalScore > chunks[j].FinalScore })
		byProcedure[procID] = chunks
		bestScore[procID] = chunks[0].FinalScore
	}
	sort.Slice(procedureOrder, func(i, j int) bool { return bestScore[procedureOrder[i]] > bestScore[procedureOrder[j]] })

	topN := cfg.Chunks
	if topN <= 0 || topN > len(procedureOrder) {
		topN = len(procedureOrder)
	}
	topProcedures := procedureOrder[:topN]
	restProcedures := procedureOrder[topN:]

	var blocks []string
	var scoreSum float64
	var scoreCount int
	truncatedChunkIDs := make([]string, 0)

	for _, procID := range topProcedures {
		candidates := byProcedure[procID]
		maxDescendants := cfg.MaxDescendants
		if maxDescendants <= 0 || maxDescendants > len(candidates) {
			maxDescendants = len(candidates)
		}
		selected := candidates[:maxDescendants]

		var parent chunk.Chunk
		haveParent := false
		if selected[0].Chunk.ParentChunkID != "" {
			if p, ok := parentByChunkID[selected[0].Chunk.ParentChunkID]; ok {
				parent, haveParent = p, true
			}
		}
		if !haveParent {
			if p, ok := parentByProcedure[procID]; ok {
				parent, haveParent = p, true
			}
		}

		for i, cand := range selected {
			scoreSum += cand.FinalScore
			scoreCount++

			var b strings.Builder
			fmt.Fprintf(&b, "## %s (%s)\n", procedureHeading(cand.Chunk), string(cand.Chunk.ChunkType))
			if domain := cand.Chunk.MetadataValue("domain"); domain != "" {
				fmt.Fprintf(&b, "Domain: %s\n", domain)
			}
			fmt.Fprintf(&b, "Relevance: %.3f\n\n", cand.FinalScore)

			if cfg.IncludeParents && haveParent && i == 0 {
				parentContent, truncated := truncateContent(parent.Content)
				if truncated {
					truncatedChunkIDs = append(truncatedChunkIDs, parent.ChunkID)
				}
				b.WriteString(parentContent)
				b.WriteString("\n\n")
			}

			childContent, truncated := truncateContent(cand.Chunk.Content)
			if truncated {
				truncatedChunkIDs = append(truncatedChunkIDs, cand.Chunk.ChunkID)
			}
			b.WriteString(childContent)

			if related := graph.Related(procID); len(related) > 0 {
				fmt.Fprintf(&b, "\nRelated procedures: %s\n", strings.Join(related, ", "))
			}
			blocks = append(blocks, b.String())
		}
	}

	if cfg.MaxSiblings > 0 && len(restProcedures) > 0 {
		siblingCount := cfg.MaxSiblings
		if siblingCount > len(restProcedures) {
			siblingCount = len(restProcedures)
		}
		for _, procID := range restProcedures[:siblingCount] {
			best := byProcedure[procID][0]
			scoreSum += best.FinalScore
			scoreCount++

			content, truncated := truncateContent(best.Chunk.Content)
			if truncated {
				truncatedChunkIDs = append(truncatedChunkIDs, best.Chunk.ChunkID)
			}
			var b strings.Builder
			fmt.Fprintf(&b, "## Related: %s (%s)\n", procedureHeading(best.Chunk), string(best.Chunk.ChunkType))
			fmt.Fprintf(&b, "Relevance: %.3f\n\n", best.FinalScore)
			b.WriteString(content)
			blocks = append(blocks, b.String())
		}
	}

	if len(truncatedChunkIDs) > 0 {
		logger.Debug("pipeline: truncated oversized chunk content", map[string]any{"chunk_ids": truncatedChunkIDs})
	}

	confidence := 0.0
	if scoreCount > 0 {
		avg := scoreSum / float64(scoreCount)
		confidence = avg * 2
		if confidence > 1.0 {
			confidence = 1.0
		}
		if confidence < 0.0 {
			confidence = 0.0
		}
	}

	return assembledContext{context: strings.Join(blocks, "\n---\n\n"), confidence: confidence}
}

func procedureHeading(c chunk.Chunk) string {
	name := c.ProcedureName()
	code := c.ProcedureCode()
	switch {
	case name != "" && code != "":
		return fmt.Sprintf("%s (%s)", name, code)
	case name != "":
		return name
	case code != "":
		return code
	default:
		return c.ProcedureID
	}
}
