package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/MLSAKIIT/Showcase/internal/config"
	"github.com/MLSAKIIT/Showcase/internal/models"
)

// PortfolioHit is one published portfolio matching a search.
type PortfolioHit struct {
	PortfolioID string  `json:"portfolio_id"`
	Slug        string  `json:"slug"`
	Name        string  `json:"name"`
	Score       float32 `json:"score"`
	Snippet     string  `json:"snippet"`
}

// PortfolioIndex keeps published portfolios searchable by meaning.
type PortfolioIndex interface {
	EnsureCollection(ctx context.Context) error
	Index(ctx context.Context, portfolio *models.Portfolio) error
	Remove(ctx context.Context, portfolioID uuid.UUID) error
	Search(ctx context.Context, query string, limit int) ([]PortfolioHit, error)
	Enabled() bool
}

// NewPortfolioIndex connects to qdrant. An empty URL disables indexing and
// every search returns no hits.
func NewPortfolioIndex(cfg config.QdrantConfig, model GeminiService, log *slog.Logger) (PortfolioIndex, error) {
	if cfg.URL == "" {
		return disabledIndex{}, nil
	}

	parsed, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	// gRPC port unless the URL names one.
	port := 6334
	if p := parsed.Port(); p != "" {
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   parsed.Hostname(),
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: parsed.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &qdrantIndex{
		client:     client,
		model:      model,
		collection: cfg.Collection,
		vectorSize: 768,
		log:        log.With("component", "portfolio_index"),
	}, nil
}

type qdrantIndex struct {
	client     *qdrant.Client
	model      GeminiService
	collection string
	vectorSize uint64
	log        *slog.Logger
}

func (q *qdrantIndex) Enabled() bool { return true }

func (q *qdrantIndex) EnsureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     q.vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	q.log.Info("✅ Qdrant collection created", "collection", q.collection)
	return nil
}

// Index replaces every chunk stored for the portfolio.
func (q *qdrantIndex) Index(ctx context.Context, portfolio *models.Portfolio) error {
	if err := q.Remove(ctx, portfolio.ID); err != nil {
		return err
	}

	slug := ""
	if portfolio.Slug != nil {
		slug = *portfolio.Slug
	}

	chunks := ChunkText(PortfolioText(portfolio.Data()), defaultChunkSize, defaultChunkOverlap)
	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for i, chunk := range chunks {
		embedding, err := q.model.GenerateEmbedding(ctx, chunk)
		if err != nil {
			return fmt.Errorf("failed to embed chunk %d: %w", i, err)
		}

		pointID := uuid.NewSHA1(portfolio.ID, []byte(strconv.Itoa(i)))
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(pointID.String()),
			Vectors: qdrant.NewVectors(embedding...),
			Payload: qdrant.NewValueMap(map[string]any{
				"portfolio_id": portfolio.ID.String(),
				"slug":         slug,
				"name":         portfolio.FullName,
				"text":         chunk,
			}),
		})
	}
	if len(points) == 0 {
		return nil
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	q.log.Info("📚 Portfolio indexed", "portfolio_id", portfolio.ID, "chunks", len(points))
	return nil
}

func (q *qdrantIndex) Remove(ctx context.Context, portfolioID uuid.UUID) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{
					Must: []*qdrant.Condition{
						qdrant.NewMatch("portfolio_id", portfolioID.String()),
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete portfolio points: %w", err)
	}
	return nil
}

// Search returns at most limit portfolios, best chunk per portfolio.
func (q *qdrantIndex) Search(ctx context.Context, query string, limit int) ([]PortfolioHit, error) {
	if limit <= 0 {
		limit = 10
	}

	embedding, err := q.model.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, err
	}

	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          qdrant.PtrOf(uint64(limit * 3)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	best := map[string]PortfolioHit{}
	for _, point := range points {
		hit := PortfolioHit{
			PortfolioID: payloadString(point.Payload, "portfolio_id"),
			Slug:        payloadString(point.Payload, "slug"),
			Name:        payloadString(point.Payload, "name"),
			Snippet:     excerpt(payloadString(point.Payload, "text"), 200),
			Score:       point.Score,
		}
		if prev, ok := best[hit.PortfolioID]; !ok || hit.Score > prev.Score {
			best[hit.PortfolioID] = hit
		}
	}

	return rankHits(best, limit), nil
}

func rankHits(best map[string]PortfolioHit, limit int) []PortfolioHit {
	hits := make([]PortfolioHit, 0, len(best))
	for _, hit := range best {
		hits = append(hits, hit)
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].PortfolioID < hits[j].PortfolioID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

func payloadString(payload map[string]*qdrant.Value, key string) string {
	if v, ok := payload[key]; ok {
		if s, ok := v.GetKind().(*qdrant.Value_StringValue); ok {
			return s.StringValue
		}
	}
	return ""
}

type disabledIndex struct{}

func (disabledIndex) Enabled() bool                                  { return false }
func (disabledIndex) EnsureCollection(context.Context) error         { return nil }
func (disabledIndex) Index(context.Context, *models.Portfolio) error { return nil }
func (disabledIndex) Remove(context.Context, uuid.UUID) error        { return nil }
func (disabledIndex) Search(context.Context, string, int) ([]PortfolioHit, error) {
	return []PortfolioHit{}, nil
}
