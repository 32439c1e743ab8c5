package dbutil

import (
	"database/sql"
	"strconv"
	"strings"

	_ "github.com/lib/pq" // registers the "postgres" driver
)

// OpenPostgres opens dsn and sets pool limits sized for the embedding
// pipeline's bounded concurrency (§5: batches of 4 concurrent img2vec
// calls, each needing a connection to persist its Page row).
func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	if err := db.Ping(); err != nil {
		return nil, Error.Wrap(err)
	}
	return db, nil
}

// EncodeVector renders a float embedding as a pgvector-style literal,
// e.g. "[0.1,0.2,0.3]". The corpus ships no pgvector Go client (see
// DESIGN.md), so Satellite speaks the wire format directly as a string
// bound through a parameterized query.
func EncodeVector(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// DecodeVector parses a pgvector literal back into a float slice.
func DecodeVector(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float32, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		out = append(out, float32(f))
	}
	return out, nil
}
