package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"retrievalcore/internal/chunk"
)

// payloadIDField stores the original chunk id in the point payload, since
// Qdrant point ids must be a UUID or a positive integer and chunk ids are
// neither.
const payloadIDField = "_chunk_id"

// payloadChunkField stores the full chunk, JSON-encoded, so Search and
// Scroll can reconstruct it without a second round trip to whatever
// system produced the chunk originally.
const payloadChunkField = "_chunk_json"

type qdrantStore struct {
	client     *qdrant.Client
	collection string
	dimension  int
}

// NewQdrant dials a Qdrant instance over its gRPC API (default port 6334)
// and returns a Store backed by the named collection. dsn may carry an
// api_key query parameter, e.g. "http://localhost:6334?api_key=...".
func NewQdrant(dsn, collection string) (Store, error) {
	if collection == "" {
		return nil, fmt.Errorf("vectorstore: collection name is required")
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: parse qdrant dsn: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsed.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: invalid port in qdrant dsn: %w", err)
	}
	cfg := &qdrant.Config{Host: host, Port: portNum}
	if parsed.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey := parsed.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: create qdrant client: %w", err)
	}
	return &qdrantStore{client: client, collection: collection}, nil
}

func (q *qdrantStore) CreateCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("vectorstore: dimension must be > 0")
	}
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("vectorstore: check collection exists: %w", err)
	}
	q.dimension = dimension
	if exists {
		return nil
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("vectorstore: create collection: %w", err)
	}
	return nil
}

func pointID(chunkID string) *qdrant.PointId {
	if _, err := uuid.Parse(chunkID); err == nil {
		return qdrant.NewIDUUID(chunkID)
	}
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String())
}

func (q *qdrantStore) Upsert(ctx context.Context, chunks []chunk.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("vectorstore: chunks and vectors length mismatch (%d vs %d)", len(chunks), len(vectors))
	}
	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for i, c := range chunks {
		encoded, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("vectorstore: encode chunk %q: %w", c.ChunkID, err)
		}
		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		// Filterable fields sit at the payload's top level so buildFilter's
		// keys match them; the fixed fields win over same-named metadata.
		payload := map[string]any{}
		for k, v := range c.Metadata {
			payload[k] = v
		}
		payload["chunk_tier"] = string(c.ChunkTier)
		payload["chunk_type"] = string(c.ChunkType)
		payload["procedure_id"] = c.ProcedureID
		payload[payloadIDField] = c.ChunkID
		payload[payloadChunkField] = string(encoded)
		points = append(points, &qdrant.PointStruct{
			Id:      pointID(c.ChunkID),
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: qdrant.NewValueMap(payload),
		})
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{CollectionName: q.collection, Points: points})
	return err
}

func (q *qdrantStore) Delete(ctx context.Context, chunkIDs []string) error {
	ids := make([]*qdrant.PointId, 0, len(chunkIDs))
	for _, id := range chunkIDs {
		ids = append(ids, pointID(id))
	}
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points:         qdrant.NewPointsSelector(ids...),
	})
	return err
}

func buildFilter(filters Filters) *qdrant.Filter {
	if len(filters) == 0 {
		return nil
	}
	must := make([]*qdrant.Condition, 0, len(filters))
	for key, want := range filters {
		switch w := want.(type) {
		case string:
			must = append(must, qdrant.NewMatch(key, w))
		case []string:
			must = append(must, qdrant.NewMatchKeywords(key, w...))
		}
	}
	return &qdrant.Filter{Must: must}
}

func decodePoint(payload map[string]*qdrant.Value) (chunk.Chunk, bool) {
	if payload == nil {
		return chunk.Chunk{}, false
	}
	raw, ok := payload[payloadChunkField]
	if !ok {
		return chunk.Chunk{}, false
	}
	var c chunk.Chunk
	if err := json.Unmarshal([]byte(raw.GetStringValue()), &c); err != nil {
		return chunk.Chunk{}, false
	}
	return c, true
}

func (q *qdrantStore) Search(ctx context.Context, vector []float32, topK int, filters Filters) ([]Match, error) {
	if topK <= 0 {
		topK = 10
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	limit := uint64(topK)
	hits, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		Filter:         buildFilter(filters),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: search: %w", err)
	}
	out := make([]Match, 0, len(hits))
	for _, hit := range hits {
		c, ok := decodePoint(hit.Payload)
		if !ok {
			continue
		}
		out = append(out, Match{Chunk: c, Score: float64(hit.Score)})
	}
	return out, nil
}

// Scroll performs an exact-match lookup via Qdrant's scroll API rather than
// a similarity query, for callers (exact-code routing) that already know
// the filter identifying the right chunk(s) and want every match, not a
// ranked top-k.
func (q *qdrantStore) Scroll(ctx context.Context, filters Filters, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = 100
	}
	lim := uint32(limit)
	points, err := q.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: q.collection,
		Filter:         buildFilter(filters),
		Limit:          &lim,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: scroll: %w", err)
	}
	out := make([]Match, 0, len(points))
	for _, p := range points {
		c, ok := decodePoint(p.Payload)
		if !ok {
			continue
		}
		out = append(out, Match{Chunk: c, Score: 1.0})
	}
	return out, nil
}
