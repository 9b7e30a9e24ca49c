// Package rag provides the default turn.RAGRetriever implementation,
// backed by the embedded vector store github.com/philippgille/chromem-go.
// Document ingestion/indexing is an out-of-scope external collaborator
// per §1; this package only exposes the query-time retriever
// interface plus a minimal Seed helper for pre-indexed snippets (tests,
// small static corpora), not a general ingestion pipeline.
package rag

import (
	"context"
	"fmt"
	"runtime"

	"github.com/philippgille/chromem-go"

	"github.com/turnframe/turnframe/pkg/turn"
)

// Document is one pre-chunked passage to seed the collection with.
type Document struct {
	ID      string
	Content string
}

// ChromemRetriever implements turn.RAGRetriever over a single in-process
// chromem-go collection.
type ChromemRetriever struct {
	collection *chromem.Collection
}

// New builds a ChromemRetriever. If openaiAPIKey is empty, chromem-go's
// default embedding function is used (expects OPENAI_API_KEY in the
// environment); callers that already export it can pass "".
func New(ctx context.Context, collectionName, openaiAPIKey string) (*ChromemRetriever, error) {
	db := chromem.NewDB()

	var embed chromem.EmbeddingFunc
	if openaiAPIKey != "" {
		embed = chromem.NewEmbeddingFuncOpenAI(openaiAPIKey, chromem.EmbeddingModelOpenAI3Small)
	}

	col, err := db.CreateCollection(collectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("rag: create collection: %w", err)
	}
	return &ChromemRetriever{collection: col}, nil
}

// Seed indexes a small static corpus of pre-chunked documents. Not a
// general ingestion pipeline (chunking/file upload are out of scope,
// §1) — just enough to exercise retrieval in tests and small
// deployments that keep a fixed knowledge base.
func (r *ChromemRetriever) Seed(ctx context.Context, docs []Document) error {
	chromeDocs := make([]chromem.Document, len(docs))
	for i, d := range docs {
		chromeDocs[i] = chromem.Document{ID: d.ID, Content: d.Content}
	}
	if err := r.collection.AddDocuments(ctx, chromeDocs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("rag: seed documents: %w", err)
	}
	return nil
}

// Retrieve implements turn.RAGRetriever (§4.7.2, bounded by RAG_TIMEOUT
// at the call site in pkg/turn). It returns an empty slice rather than
// an error when the collection is empty, since an empty knowledge base
// is not itself a retrieval failure.
func (r *ChromemRetriever) Retrieve(ctx context.Context, query string, topK int) ([]turn.RAGSnippet, error) {
	if r.collection.Count() == 0 {
		return nil, nil
	}
	n := topK
	if n > r.collection.Count() {
		n = r.collection.Count()
	}
	results, err := r.collection.Query(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("rag: query: %w", err)
	}
	snippets := make([]turn.RAGSnippet, len(results))
	for i, res := range results {
		snippets[i] = turn.RAGSnippet{
			Text:      res.Content,
			SourceID:  res.ID,
			Relevance: float64(res.Similarity),
		}
	}
	return snippets, nil
}

var _ turn.RAGRetriever = (*ChromemRetriever)(nil)
