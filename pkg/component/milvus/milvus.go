// Package milvus wraps the Milvus SDK client for namespaced vector collections.
package milvus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/logger"
	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	milvusopts "github.com/kart-io/rubric-grader/pkg/options/milvus"
)

// Field names of a namespaced collection.
const (
	FieldID         = "id"
	FieldNamespace  = "namespace"
	FieldChunkIndex = "chunk_index"
	FieldText       = "text"
	FieldSourceFile = "source_file"
	FieldEmbedding  = "embedding"
)

// ErrNotReady is returned when a collection does not reach the loaded state in time.
var ErrNotReady = errors.New("milvus collection not ready")

// Client wraps the Milvus SDK client.
type Client struct {
	client *milvusclient.Client
	opts   *milvusopts.Options
}

// New creates a new Milvus client.
func New(opts *milvusopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("milvus options is nil")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  opts.Address,
		Username: opts.Username,
		Password: opts.Password,
		DBName:   opts.Database,
		APIKey:   opts.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	return &Client{
		client: c,
		opts:   opts,
	}, nil
}

// Close closes the Milvus client connection.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

// DefaultMaxTextLen is the byte capacity of the text field.
const DefaultMaxTextLen = 8192

// CollectionSchema describes a namespaced collection.
type CollectionSchema struct {
	Name        string
	Description string
	Dimension   int
	// MaxTextLen bounds the text VARCHAR field in bytes. Defaults to DefaultMaxTextLen.
	MaxTextLen int
}

// EnsureCollection creates the collection with a cosine HNSW index if it is
// missing, then requests it to be loaded.
func (c *Client) EnsureCollection(ctx context.Context, schema *CollectionSchema) error {
	exists, err := c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(schema.Name))
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if !exists {
		maxText := schema.MaxTextLen
		if maxText <= 0 {
			maxText = DefaultMaxTextLen
		}

		// namespace 作为 partition key，查询时按 namespace 过滤
		collSchema := entity.NewSchema().
			WithName(schema.Name).
			WithDescription(schema.Description).
			WithAutoID(false).
			WithField(entity.NewField().
				WithName(FieldID).
				WithDataType(entity.FieldTypeVarChar).
				WithIsPrimaryKey(true).
				WithMaxLength(64)).
			WithField(entity.NewField().
				WithName(FieldNamespace).
				WithDataType(entity.FieldTypeVarChar).
				WithIsPartitionKey(true).
				WithMaxLength(256)).
			WithField(entity.NewField().
				WithName(FieldChunkIndex).
				WithDataType(entity.FieldTypeInt64)).
			WithField(entity.NewField().
				WithName(FieldText).
				WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(int64(maxText))).
			WithField(entity.NewField().
				WithName(FieldSourceFile).
				WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(1024)).
			WithField(entity.NewField().
				WithName(FieldEmbedding).
				WithDataType(entity.FieldTypeFloatVector).
				WithDim(int64(schema.Dimension)))

		if err := c.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(schema.Name, collSchema)); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}

		idx := index.NewHNSWIndex(entity.COSINE, 16, 200)
		createIdxTask, err := c.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(schema.Name, FieldEmbedding, idx))
		if err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
		if err := createIdxTask.Await(ctx); err != nil {
			return fmt.Errorf("failed to wait for index creation: %w", err)
		}

		logger.Infow("milvus collection created",
			"collection", schema.Name,
			"dimension", schema.Dimension,
		)
	}

	if _, err := c.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(schema.Name)); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	return nil
}

// WaitReady polls the load state until the collection is loaded, the timeout
// elapses, or ctx is done.
func (c *Client) WaitReady(ctx context.Context, collection string, timeout, interval time.Duration) error {
	return pollUntil(ctx, timeout, interval, func(ctx context.Context) (bool, error) {
		state, err := c.client.GetLoadState(ctx, milvusclient.NewGetLoadStateOption(collection))
		if err != nil {
			return false, err
		}
		return state.State == entity.LoadStateLoaded, nil
	})
}

func pollUntil(ctx context.Context, timeout, interval time.Duration, check func(context.Context) (bool, error)) error {
	if interval <= 0 {
		interval = time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		ok, err := check(ctx)
		if ok {
			return nil
		}
		if err != nil {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return fmt.Errorf("%w: %v", ErrNotReady, lastErr)
			}
			return ErrNotReady
		case <-ticker.C:
		}
	}
}

// Row is one stored chunk.
type Row struct {
	ID         string
	Namespace  string
	ChunkIndex int64
	Text       string
	SourceFile string
	Embedding  []float32
}

// Upsert writes rows, replacing any with the same id.
func (c *Client) Upsert(ctx context.Context, collection string, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	n := len(rows)
	ids := make([]string, n)
	namespaces := make([]string, n)
	chunkIdx := make([]int64, n)
	texts := make([]string, n)
	sources := make([]string, n)
	vectors := make([][]float32, n)
	for i, r := range rows {
		ids[i] = r.ID
		namespaces[i] = r.Namespace
		chunkIdx[i] = r.ChunkIndex
		texts[i] = r.Text
		sources[i] = r.SourceFile
		vectors[i] = r.Embedding
	}

	_, err := c.client.Upsert(ctx, milvusclient.NewColumnBasedInsertOption(collection,
		column.NewColumnVarChar(FieldID, ids),
		column.NewColumnVarChar(FieldNamespace, namespaces),
		column.NewColumnInt64(FieldChunkIndex, chunkIdx),
		column.NewColumnVarChar(FieldText, texts),
		column.NewColumnVarChar(FieldSourceFile, sources),
		column.NewColumnFloatVector(FieldEmbedding, len(vectors[0]), vectors),
	))
	if err != nil {
		return fmt.Errorf("failed to upsert data: %w", err)
	}
	return nil
}

// Hit is a single search result.
type Hit struct {
	Row
	Score float32
}

// Search runs a cosine similarity search restricted to one namespace.
func (c *Client) Search(ctx context.Context, collection, namespace string, vector []float32, topK int) ([]Hit, error) {
	results, err := c.client.Search(ctx, milvusclient.NewSearchOption(
		collection,
		topK,
		[]entity.Vector{entity.FloatVector(vector)},
	).WithANNSField(FieldEmbedding).
		WithFilter(NamespaceFilter(namespace)).
		WithConsistencyLevel(entity.ClStrong).
		WithOutputFields(FieldNamespace, FieldChunkIndex, FieldText, FieldSourceFile, FieldEmbedding))
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	if len(results) == 0 {
		return []Hit{}, nil
	}

	rs := results[0]
	hits := make([]Hit, 0, rs.ResultCount)
	for i := 0; i < rs.ResultCount; i++ {
		h := Hit{Score: rs.Scores[i]}
		if idCol, ok := rs.IDs.(*column.ColumnVarChar); ok {
			h.ID = idCol.Data()[i]
		}
		if col, ok := rs.GetColumn(FieldNamespace).(*column.ColumnVarChar); ok {
			h.Namespace = col.Data()[i]
		}
		if col, ok := rs.GetColumn(FieldChunkIndex).(*column.ColumnInt64); ok {
			h.ChunkIndex = col.Data()[i]
		}
		if col, ok := rs.GetColumn(FieldText).(*column.ColumnVarChar); ok {
			h.Text = col.Data()[i]
		}
		if col, ok := rs.GetColumn(FieldSourceFile).(*column.ColumnVarChar); ok {
			h.SourceFile = col.Data()[i]
		}
		if col, ok := rs.GetColumn(FieldEmbedding).(*column.ColumnFloatVector); ok {
			h.Embedding = col.Data()[i]
		}
		hits = append(hits, h)
	}

	return hits, nil
}

// DeleteNamespace removes every row in the namespace.
func (c *Client) DeleteNamespace(ctx context.Context, collection, namespace string) error {
	if _, err := c.client.Delete(ctx, milvusclient.NewDeleteOption(collection).WithExpr(NamespaceFilter(namespace))); err != nil {
		return fmt.Errorf("failed to delete namespace: %w", err)
	}
	return nil
}

// DeleteByIDs removes the given ids from one namespace. Unknown ids are ignored.
func (c *Client) DeleteByIDs(ctx context.Context, collection, namespace string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	expr := NamespaceFilter(namespace) + " && " + IDsFilter(ids)
	if _, err := c.client.Delete(ctx, milvusclient.NewDeleteOption(collection).WithExpr(expr)); err != nil {
		return fmt.Errorf("failed to delete by ids: %w", err)
	}
	return nil
}

// NamespaceFilter builds a boolean expression matching one namespace.
func NamespaceFilter(namespace string) string {
	return FieldNamespace + " == " + quote(namespace)
}

// IDsFilter builds an `id in [...]` expression.
func IDsFilter(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = quote(id)
	}
	return FieldID + " in [" + strings.Join(quoted, ", ") + "]"
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
