// Package search implements the Search Dispatcher (spec.md §4.7): one
// nearest-neighbor or exact-match operation per modality, plus a
// combined visual+caption fusion, each logged to search_queries without
// ever recording IP or user agent.
package search

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/opentestimony/internal/config"
	"github.com/tomtom215/opentestimony/internal/metrics"
	"github.com/tomtom215/opentestimony/internal/modelclient"
	"github.com/tomtom215/opentestimony/internal/store"
	"github.com/tomtom215/opentestimony/internal/vectorsql"
)

// Timing breaks a query's latency into its encode and search phases so
// API responses can show where the time went (spec.md §4.7 response
// envelope: "timing: {encode_ms, search_ms, total_ms}").
type Timing struct {
	EncodeMS int64 `json:"encode_ms"`
	SearchMS int64 `json:"search_ms"`
	TotalMS  int64 `json:"total_ms"`
}

// Dispatcher runs one search operation per call and records it.
type Dispatcher struct {
	db     *store.DB
	vision *modelclient.VisionClient
	text   *modelclient.TextClient
	dbCfg  config.DatabaseConfig
}

func New(db *store.DB, vision *modelclient.VisionClient, text *modelclient.TextClient, dbCfg config.DatabaseConfig) *Dispatcher {
	return &Dispatcher{db: db, vision: vision, text: text, dbCfg: dbCfg}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}

func ms(d time.Duration) int64 { return d.Milliseconds() }

// logQuery records one search_queries row. It deliberately takes no
// caller-identifying fields (spec.md §4.7 privacy invariant: "Do not log
// IP or user-agent").
func (d *Dispatcher) logQuery(ctx context.Context, queryText, mode string, resultCount int, duration time.Duration) {
	metrics.RecordSearchQuery(mode, duration)
	_, _ = d.db.Conn().ExecContext(ctx,
		`INSERT INTO search_queries (id, query_text, mode, result_count, duration_ms) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), queryText, mode, resultCount, duration.Milliseconds(),
	)
}

// ModeCount is one row of the analytics mode breakdown.
type ModeCount struct {
	Mode  string `json:"mode"`
	Count int64  `json:"count"`
}

// DailyCount is one row of the analytics daily-volume breakdown.
type DailyCount struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}

// TopTerm is one row of the analytics top-search-terms breakdown.
type TopTerm struct {
	QueryText       string  `json:"query_text"`
	Count           int64   `json:"count"`
	AvgResultCount  float64 `json:"avg_result_count"`
	AvgDurationMS   float64 `json:"avg_duration_ms"`
}

// Analytics is the aggregate summary original_source's
// scripts/search-analytics.py computed from search_queries by hand with
// raw SQL and a CLI; this is the same aggregation, reused generically
// over the same table (spec.md §3 "Search Query Log"), exposed as an
// admin HTTP endpoint instead of a one-off script.
type Analytics struct {
	TotalSearches int64        `json:"total_searches"`
	ZeroResults   int64        `json:"zero_result_queries"`
	Modes         []ModeCount  `json:"modes"`
	TopTerms      []TopTerm    `json:"top_terms"`
	DailyVolume   []DailyCount `json:"daily_volume"`
}

// Analytics summarizes search_queries over the trailing `days` days: per
// search-mode counts, top search terms (case-insensitive), the
// zero-result count, and daily query volume. It never reads IP or
// user-agent columns because the table has none (spec.md §4.7 "Do not
// log IP or user-agent").
func (d *Dispatcher) Analytics(ctx context.Context, days, topN int) (*Analytics, error) {
	if days <= 0 {
		days = 14
	}
	if topN <= 0 {
		topN = 10
	}
	since := fmt.Sprintf("CURRENT_TIMESTAMP - INTERVAL '%d days'", days)

	a := &Analytics{Modes: []ModeCount{}, TopTerms: []TopTerm{}, DailyVolume: []DailyCount{}}

	if err := d.db.Conn().QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM search_queries WHERE created_at >= %s`, since),
	).Scan(&a.TotalSearches); err != nil {
		return nil, fmt.Errorf("search: count total: %w", err)
	}

	if err := d.db.Conn().QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM search_queries WHERE created_at >= %s AND result_count = 0`, since),
	).Scan(&a.ZeroResults); err != nil {
		return nil, fmt.Errorf("search: count zero-result: %w", err)
	}

	modeRows, err := d.db.Conn().QueryContext(ctx,
		fmt.Sprintf(`SELECT mode, COUNT(*) FROM search_queries WHERE created_at >= %s GROUP BY mode ORDER BY COUNT(*) DESC`, since),
	)
	if err != nil {
		return nil, fmt.Errorf("search: mode breakdown: %w", err)
	}
	for modeRows.Next() {
		var mc ModeCount
		if err := modeRows.Scan(&mc.Mode, &mc.Count); err != nil {
			modeRows.Close()
			return nil, fmt.Errorf("search: scan mode row: %w", err)
		}
		a.Modes = append(a.Modes, mc)
	}
	if err := rowsToErr(modeRows); err != nil {
		modeRows.Close()
		return nil, err
	}
	modeRows.Close()

	termRows, err := d.db.Conn().QueryContext(ctx,
		fmt.Sprintf(`SELECT LOWER(query_text), COUNT(*), AVG(result_count), AVG(duration_ms)
		 FROM search_queries WHERE created_at >= %s GROUP BY LOWER(query_text)
		 ORDER BY COUNT(*) DESC LIMIT %d`, since, topN),
	)
	if err != nil {
		return nil, fmt.Errorf("search: top terms: %w", err)
	}
	for termRows.Next() {
		var t TopTerm
		if err := termRows.Scan(&t.QueryText, &t.Count, &t.AvgResultCount, &t.AvgDurationMS); err != nil {
			termRows.Close()
			return nil, fmt.Errorf("search: scan top term row: %w", err)
		}
		a.TopTerms = append(a.TopTerms, t)
	}
	if err := rowsToErr(termRows); err != nil {
		termRows.Close()
		return nil, err
	}
	termRows.Close()

	dailyRows, err := d.db.Conn().QueryContext(ctx,
		fmt.Sprintf(`SELECT CAST(created_at AS DATE), COUNT(*) FROM search_queries
		 WHERE created_at >= %s GROUP BY CAST(created_at AS DATE) ORDER BY 1 ASC`, since),
	)
	if err != nil {
		return nil, fmt.Errorf("search: daily volume: %w", err)
	}
	for dailyRows.Next() {
		var dc DailyCount
		if err := dailyRows.Scan(&dc.Day, &dc.Count); err != nil {
			dailyRows.Close()
			return nil, fmt.Errorf("search: scan daily row: %w", err)
		}
		a.DailyVolume = append(a.DailyVolume, dc)
	}
	if err := rowsToErr(dailyRows); err != nil {
		dailyRows.Close()
		return nil, err
	}
	dailyRows.Close()

	return a, nil
}

func rowsToErr(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		return fmt.Errorf("search: scan rows: %w", err)
	}
	return nil
}

// nnQuery builds a "nearest neighbor by cosine similarity" SELECT:
// selectCols is the list of result columns (not including the score),
// column/query/dim describe the embedding column being matched against.
func nnQuery(selectCols, table, column string, query []float32, dim, limit int) string {
	scoreExpr := vectorsql.CosineSimilarity(column, query, dim)
	return fmt.Sprintf(
		"SELECT %s, %s AS score FROM %s ORDER BY score DESC LIMIT %d",
		selectCols, scoreExpr, table, limit,
	)
}
