package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

// Retriever runs knowledge-base queries over Postgres. Retrieval is
// best-effort: no relevant match is an empty result, never an error.
type Retriever struct {
	pool     *pgxpool.Pool
	embedder Embedder
	minScore float64
}

// NewRetriever creates a retriever. minScore is the cosine-similarity floor
// below which protocol passages are discarded.
func NewRetriever(pool *pgxpool.Pool, embedder Embedder, minScore float64) *Retriever {
	return &Retriever{pool: pool, embedder: embedder, minScore: minScore}
}

// Retrieve returns up to topK passages for the query, ranked best-first.
func (r *Retriever) Retrieve(ctx context.Context, query string, domain Domain, topK int) ([]Passage, error) {
	switch domain {
	case DomainDoctors:
		return r.searchDoctors(ctx, query, topK)
	case DomainProtocols:
		return r.searchProtocols(ctx, query, topK)
	default:
		return nil, fmt.Errorf("unknown retrieval domain %q", domain)
	}
}

func (r *Retriever) searchDoctors(ctx context.Context, query string, topK int) ([]Passage, error) {
	pattern := "%" + strings.TrimSpace(query) + "%"
	rows, err := r.pool.Query(ctx,
		`SELECT name, qualification, specialty, experience_years, branch_name, branch_area, branch_phone, timings
		 FROM doctors
		 WHERE is_active
		   AND (name ILIKE $1 OR specialty ILIKE $1 OR branch_name ILIKE $1 OR branch_area ILIKE $1)
		 ORDER BY experience_years DESC
		 LIMIT $2`,
		pattern, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("searching doctors: %w", err)
	}
	defer rows.Close()

	var passages []Passage
	rank := 0
	for rows.Next() {
		var (
			name, qualification, specialty    string
			branchName, branchArea, branchTel string
			years                             int
			timings                           []byte
		)
		if err := rows.Scan(&name, &qualification, &specialty, &years, &branchName, &branchArea, &branchTel, &timings); err != nil {
			return nil, fmt.Errorf("scanning doctor row: %w", err)
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "%s (%s), %s, %d years experience. Branch: %s, %s",
			name, qualification, specialty, years, branchName, branchArea)
		if branchTel != "" {
			fmt.Fprintf(&sb, ", phone %s", branchTel)
		}
		if len(timings) > 0 && string(timings) != "{}" {
			fmt.Fprintf(&sb, ". Timings: %s", string(timings))
		}

		passages = append(passages, Passage{
			Title:   name,
			Content: sb.String(),
			Source:  string(DomainDoctors),
			// Directory hits are exact keyword matches; rank order is
			// the only score signal available.
			Score: 1.0 - float64(rank)*0.01,
		})
		rank++
	}
	return passages, rows.Err()
}

func (r *Retriever) searchProtocols(ctx context.Context, query string, topK int) ([]Passage, error) {
	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	vec := pgvector.NewVector(embedding)
	rows, err := r.pool.Query(ctx,
		`SELECT title, content, category, 1 - (embedding <=> $1) AS score
		 FROM treatment_protocols
		 WHERE embedding IS NOT NULL
		   AND 1 - (embedding <=> $1) >= $2
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		vec, r.minScore, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("searching protocols: %w", err)
	}
	defer rows.Close()

	var passages []Passage
	for rows.Next() {
		var p Passage
		var category string
		if err := rows.Scan(&p.Title, &p.Content, &category, &p.Score); err != nil {
			return nil, fmt.Errorf("scanning protocol row: %w", err)
		}
		p.Source = string(DomainProtocols)
		if category != "" {
			p.Title = p.Title + " (" + category + ")"
		}
		passages = append(passages, p)
	}
	return passages, rows.Err()
}
