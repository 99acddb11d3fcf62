package qdrantDB

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/rag/vectorDB"
	"github.com/akolanti/docqa/pkg/logger_i"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const upsertBatchSize = 256

var logger *logger_i.Logger
var quadrantInstance *qdrant.Client
var initErr error
var once sync.Once

// ClientHolder builds one temporary collection per run on a shared qdrant connection.
type ClientHolder struct {
	QObj *qdrant.Client
}

func GetQuadrantClient(ctx context.Context, host string, port int) (*ClientHolder, error) {
	once.Do(func() {
		logger = logger_i.NewLogger("Qdrant")
		res, err := newClient(ctx, host, port)
		if err != nil {
			initErr = err
			return
		}
		quadrantInstance = res
		go closeQdrant(ctx, quadrantInstance)
	})

	if quadrantInstance == nil {
		return nil, initErr
	}
	return &ClientHolder{
		QObj: quadrantInstance,
	}, nil
}

func newClient(ctx context.Context, host string, port int) (*qdrant.Client, error) {
	if host == "" {
		host = config.QdrantHost
	}
	if port == 0 {
		port = config.QdrantGrpcPort
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:     host,
		Port:     port,
		UseTLS:   config.QdrantUseTLS,
		PoolSize: uint(config.QdrantPoolSize),
	})
	if err != nil {
		logger.Error("could not instantiate", "error", err)
		return nil, err
	}

	if _, err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, classify("health check", err)
	}
	logger.Info("Qdrant connected", "host", host, "port", port)
	return client, nil
}

func closeQdrant(ctx context.Context, qi *qdrant.Client) {
	<-ctx.Done()
	logger.Info("Shutting down Qdrant")
	if err := qi.Close(); err != nil {
		logger.Error("could not close Qdrant", "error", err)
	}
	logger.Info("Closed Qdrant")
}

func (db *ClientHolder) Name() string { return config.IndexQdrant }

func (db *ClientHolder) Build(ctx context.Context, entries []vectorDB.Entry) (vectorDB.Index, error) {
	dim, err := vectorDB.CheckDimensions(entries)
	if err != nil {
		return nil, err
	}
	idx := &collection{
		client: db.QObj,
		name:   config.QdrantCollectionPrefix + uuid.NewString(),
		size:   len(entries),
		logger: logger.With("traceId", ctx.Value(config.TRACE_ID_KEY)),
	}
	if len(entries) == 0 {
		return idx, nil
	}

	if err := createCollection(ctx, db.QObj, idx.name, uint64(dim)); err != nil {
		return nil, classify("create collection", err)
	}
	idx.created = true

	for start := 0; start < len(entries); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(entries))
		if err := idx.upsert(ctx, entries[start:end], start); err != nil {
			_ = idx.Close(context.WithoutCancel(ctx))
			return nil, classify("upsert", err)
		}
	}
	idx.logger.Debug("run collection ready", "collection", idx.name, "points", len(entries))
	return idx, nil
}

type collection struct {
	client  *qdrant.Client
	name    string
	size    int
	created bool
	logger  *logger_i.Logger
}

func (c *collection) Len() int { return c.size }

func (c *collection) upsert(ctx context.Context, entries []vectorDB.Entry, offset int) error {
	points := make([]*qdrant.PointStruct, len(entries))
	for i, e := range entries {
		order := offset + i
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(order)),
			Vectors: qdrant.NewVectors(e.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				"order":      order,
				"passage_id": e.Passage.Id,
				"content":    e.Passage.Text,
				"span_start": e.Passage.Span.Start,
				"span_end":   e.Passage.Span.End,
			}),
		}
	}

	_, err := c.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: c.name,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	return err
}

func (c *collection) Query(ctx context.Context, vector []float32, k int) ([]commonModels.Match, error) {
	if k <= 0 || c.size == 0 {
		return nil, nil
	}
	result, err := c.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: c.name,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		c.logger.Error("Error querying Qdrant", "collection", c.name, "error", err)
		return nil, classify("query", err)
	}
	return matchesFromHits(result), nil
}

func (c *collection) Close(ctx context.Context) error {
	if !c.created {
		return nil
	}
	c.created = false
	if err := c.client.DeleteCollection(ctx, c.name); err != nil {
		c.logger.Error("could not drop run collection", "collection", c.name, "error", err)
		return classify("delete collection", err)
	}
	return nil
}

// matchesFromHits restores passages from payloads. qdrant does not promise a stable
// order for equal scores, so ties are re-sorted by insertion order.
func matchesFromHits(hits []*qdrant.ScoredPoint) []commonModels.Match {
	matches := make([]commonModels.Match, 0, len(hits))
	for _, hit := range hits {
		p := hit.GetPayload()
		matches = append(matches, commonModels.Match{
			Passage: commonModels.Passage{
				Id:   p["passage_id"].GetStringValue(),
				Text: p["content"].GetStringValue(),
				Span: commonModels.TokenSpan{
					Start: int(p["span_start"].GetIntegerValue()),
					End:   int(p["span_end"].GetIntegerValue()),
				},
			},
			Score: hit.GetScore(),
			Order: int(p["order"].GetIntegerValue()),
		})
	}
	vectorDB.SortMatches(matches)
	return matches
}

func createCollection(ctx context.Context, client *qdrant.Client, collectionName string, dimension uint64) error {
	if collectionName == "" {
		return errors.New("empty collection name")
	}

	exists, err := client.CollectionExists(ctx, collectionName)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("collection %s already exists", collectionName)
	}

	return client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
}

func classify(op string, err error) error {
	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.Unavailable, codes.DeadlineExceeded:
			return fmt.Errorf("qdrant %s: unavailable: %w", op, err)
		case codes.InvalidArgument:
			return fmt.Errorf("qdrant %s: rejected: %w", op, err)
		}
	}
	return fmt.Errorf("qdrant %s: %w", op, err)
}
