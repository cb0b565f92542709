package implementation

import (
	"context"
	"fmt"

	"ai-conversation-be/internal/model"
	"ai-conversation-be/pkg/retrieval"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// similarityThreshold drops fragments with weak cosine similarity so the
// answer prompt is not padded with noise.
const similarityThreshold = 0.3

// KnowledgeRepositoryImpl serves tenant knowledge fragments via pgvector
// cosine search.
type KnowledgeRepositoryImpl struct {
	db       *gorm.DB
	embedder retrieval.Embedder
}

func NewKnowledgeRepository(db *gorm.DB, embedder retrieval.Embedder) retrieval.Retriever {
	return &KnowledgeRepositoryImpl{
		db:       db,
		embedder: embedder,
	}
}

func (r *KnowledgeRepositoryImpl) HasKnowledgeBase(ctx context.Context, tenantId string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.KnowledgeChunk{}).
		Where("tenant_id = ?", tenantId).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

type chunkWithSimilarity struct {
	model.KnowledgeChunk
	Similarity float64
}

func (r *KnowledgeRepositoryImpl) Search(ctx context.Context, tenantId, query string, limit int) ([]retrieval.Document, error) {
	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	queryVector := pgvector.NewVector(embedding)

	var results []chunkWithSimilarity
	err = r.db.WithContext(ctx).
		Model(&model.KnowledgeChunk{}).
		Select("knowledge_chunks.*, 1 - (embedding_value <=> ?) as similarity", queryVector).
		Where("tenant_id = ?", tenantId).
		Where("1 - (embedding_value <=> ?) >= ?", queryVector, similarityThreshold).
		Order("similarity DESC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	docs := make([]retrieval.Document, len(results))
	for i, row := range results {
		docs[i] = retrieval.Document{
			Id:      row.Id.String(),
			Title:   row.Title,
			Content: row.Content,
			Score:   row.Similarity,
		}
	}
	return docs, nil
}
