package indexing

import (
	"context"
	"fmt"
	"math"

	"github.com/tomtom215/opentestimony/internal/metrics"
	"github.com/tomtom215/opentestimony/internal/store"
	"github.com/tomtom215/opentestimony/internal/vectorsql"
)

// Reclusterer runs the admin-triggered full face re-cluster (spec.md
// §4.6). No Go clustering library in the corpus or a realistic
// ecosystem search offers HDBSCAN, so this approximates it with a
// density-reachability clustering (DBSCAN) over the same
// L2-normalized-embeddings-under-Euclidean-distance space the original
// HDBSCAN call uses — same noise convention (label -1), same
// min-cluster-size floor, same "closest to centroid is representative"
// post-processing. It does not reproduce HDBSCAN's variable-density
// Excess-of-Mass cluster selection.
type Reclusterer struct {
	db        *store.DB
	minPoints int
	eps       float64
}

// NewReclusterer builds a Reclusterer. similarityThreshold is the same
// cosine-distance threshold FaceAssigner uses, converted to a Euclidean
// epsilon for unit vectors (eps = sqrt(2 * threshold), since
// ||a-b||^2 = 2 - 2*cos(a,b) when both are unit length).
func NewReclusterer(db *store.DB, minClusterSize int, similarityThreshold float64) *Reclusterer {
	return &Reclusterer{
		db:        db,
		minPoints: minClusterSize,
		eps:       math.Sqrt(2 * similarityThreshold),
	}
}

// Run loads every face embedding, clusters them, and rebuilds
// face_clusters from scratch.
func (r *Reclusterer) Run(ctx context.Context) (numClusters, numNoise int, err error) {
	rows, err := r.db.Conn().QueryContext(ctx, `SELECT id, media_id, embedding FROM face_detections`)
	if err != nil {
		return 0, 0, fmt.Errorf("recluster: query faces: %w", err)
	}
	type face struct {
		id      string
		mediaID string
		emb     []float32
	}
	var faces []face
	for rows.Next() {
		var f face
		if err := rows.Scan(&f.id, &f.mediaID, &f.emb); err != nil {
			rows.Close()
			return 0, 0, fmt.Errorf("recluster: scan face: %w", err)
		}
		faces = append(faces, f)
	}
	rows.Close()

	if len(faces) < r.minPoints {
		metrics.UpdateFaceClusterCounts(0, int64(len(faces)))
		return 0, len(faces), nil
	}

	points := make([][]float32, len(faces))
	for i, f := range faces {
		points[i] = append([]float32(nil), f.emb...)
		normalize(points[i])
	}

	labels := dbscan(points, r.eps, r.minPoints)

	tx, err := r.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("recluster: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE face_detections SET cluster_id = NULL`); err != nil {
		return 0, 0, fmt.Errorf("recluster: clear assignments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM face_clusters`); err != nil {
		return 0, 0, fmt.Errorf("recluster: clear clusters: %w", err)
	}

	byLabel := map[int][]int{}
	for i, label := range labels {
		if label < 0 {
			numNoise++
			continue
		}
		byLabel[label] = append(byLabel[label], i)
	}

	for label, memberIdx := range byLabel {
		centroid := meanVector(points, memberIdx)
		normalize(centroid)

		videos := map[string]struct{}{}
		bestIdx, bestSim := memberIdx[0], -2.0
		for _, idx := range memberIdx {
			videos[faces[idx].mediaID] = struct{}{}
			sim := dot(points[idx], centroid)
			if sim > bestSim {
				bestSim = sim
				bestIdx = idx
			}
		}

		stmt := fmt.Sprintf(
			`INSERT INTO face_clusters (id, face_count, video_count, centroid, representative_face_id) VALUES (?, ?, ?, %s, ?)`,
			vectorsql.CastLiteral(centroid, 512),
		)
		if _, err := tx.ExecContext(ctx, stmt, label, len(memberIdx), len(videos), faces[bestIdx].id); err != nil {
			return 0, 0, fmt.Errorf("recluster: insert cluster %d: %w", label, err)
		}
		for _, idx := range memberIdx {
			if _, err := tx.ExecContext(ctx, `UPDATE face_detections SET cluster_id = ? WHERE id = ?`, label, faces[idx].id); err != nil {
				return 0, 0, fmt.Errorf("recluster: assign cluster %d: %w", label, err)
			}
		}
		numClusters++
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("recluster: commit: %w", err)
	}
	metrics.UpdateFaceClusterCounts(int64(numClusters), int64(numNoise))
	return numClusters, numNoise, nil
}

func meanVector(points [][]float32, idx []int) []float32 {
	dim := len(points[idx[0]])
	sum := make([]float32, dim)
	for _, i := range idx {
		for d := 0; d < dim; d++ {
			sum[d] += points[i][d]
		}
	}
	n := float32(len(idx))
	for d := range sum {
		sum[d] /= n
	}
	return sum
}

// dbscan clusters points by Euclidean distance, returning a label per
// point: -1 for noise, otherwise a dense 0-based cluster id.
func dbscan(points [][]float32, eps float64, minPts int) []int {
	n := len(points)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -2 // unvisited
	}

	neighbors := func(i int) []int {
		var out []int
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			if euclidean(points[i], points[j]) <= eps {
				out = append(out, j)
			}
		}
		return out
	}

	nextLabel := 0
	for i := 0; i < n; i++ {
		if labels[i] != -2 {
			continue
		}
		nbrs := neighbors(i)
		if len(nbrs) < minPts-1 {
			labels[i] = -1
			continue
		}

		label := nextLabel
		nextLabel++
		labels[i] = label

		queue := append([]int(nil), nbrs...)
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]
			if labels[j] == -1 {
				labels[j] = label
			}
			if labels[j] != -2 {
				continue
			}
			labels[j] = label
			jNbrs := neighbors(j)
			if len(jNbrs) >= minPts-1 {
				queue = append(queue, jNbrs...)
			}
		}
	}

	return labels
}

func euclidean(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
