// Package vectorsql builds the DuckDB array literals and
// array_cosine_similarity expressions the indexing pipeline and search
// dispatcher need. DuckDB's FLOAT[n] columns aren't addressable through
// database/sql placeholder binding, so embeddings are rendered as array
// literals (shortest float32 round-trip form) and spliced into the
// statement text directly — safe here because every value comes from a
// []float32 this process itself produced, never from request input.
package vectorsql

import (
	"strconv"
	"strings"
)

// Literal renders v as a DuckDB array literal, e.g. "[0.125,-0.5]".
func Literal(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// CastLiteral renders v as a DuckDB array literal cast to FLOAT[dim],
// the form needed on the right-hand side of an INSERT ... VALUES list.
func CastLiteral(v []float32, dim int) string {
	return Literal(v) + "::FLOAT[" + strconv.Itoa(dim) + "]"
}

// CosineSimilarity builds an array_cosine_similarity(column, query)
// expression against a query vector rendered with CastLiteral.
func CosineSimilarity(column string, query []float32, dim int) string {
	return "array_cosine_similarity(" + column + ", " + CastLiteral(query, dim) + ")"
}
