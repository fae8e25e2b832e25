package indexing

import (
	"context"
	"fmt"
	"math"

	"github.com/tomtom215/opentestimony/internal/store"
)

// FaceAssigner performs incremental cluster assignment: a freshly
// detected face is compared against every existing cluster centroid and
// joined to the best match if it clears the similarity threshold, rather
// than waiting for the next full re-cluster (spec.md §4.5 step J).
type FaceAssigner struct {
	db        *store.DB
	threshold float64
}

// NewFaceAssigner builds a FaceAssigner. threshold is a cosine-distance
// threshold: a face is assigned when its cosine similarity to a
// centroid exceeds 1-threshold.
func NewFaceAssigner(db *store.DB, threshold float64) *FaceAssigner {
	return &FaceAssigner{db: db, threshold: threshold}
}

type centroidRow struct {
	id       int
	centroid []float32
}

// AssignForMedia assigns every unassigned face belonging to mediaID to
// the nearest existing cluster centroid, if any clears the threshold.
func (a *FaceAssigner) AssignForMedia(ctx context.Context, mediaID string) error {
	faceRows, err := a.db.Conn().QueryContext(ctx,
		`SELECT id, embedding FROM face_detections WHERE media_id = ? AND cluster_id IS NULL`, mediaID)
	if err != nil {
		return fmt.Errorf("faceassign: query unassigned: %w", err)
	}
	type face struct {
		id  string
		emb []float32
	}
	var faces []face
	for faceRows.Next() {
		var f face
		if err := faceRows.Scan(&f.id, &f.emb); err != nil {
			faceRows.Close()
			return fmt.Errorf("faceassign: scan face: %w", err)
		}
		faces = append(faces, f)
	}
	faceRows.Close()
	if len(faces) == 0 {
		return nil
	}

	centroids, err := a.loadCentroids(ctx)
	if err != nil {
		return err
	}
	if len(centroids) == 0 {
		return nil
	}

	for _, c := range centroids {
		normalize(c.centroid)
	}

	for _, f := range faces {
		emb := append([]float32(nil), f.emb...)
		normalize(emb)

		bestID := -1
		bestSim := -2.0
		for _, c := range centroids {
			sim := dot(emb, c.centroid)
			if sim > bestSim {
				bestSim = sim
				bestID = c.id
			}
		}

		if bestID >= 0 && bestSim > (1.0-a.threshold) {
			if _, err := a.db.Conn().ExecContext(ctx,
				`UPDATE face_detections SET cluster_id = ? WHERE id = ?`, bestID, f.id); err != nil {
				return fmt.Errorf("faceassign: assign %s: %w", f.id, err)
			}
		}
	}
	return nil
}

func (a *FaceAssigner) loadCentroids(ctx context.Context) ([]centroidRow, error) {
	rows, err := a.db.Conn().QueryContext(ctx, `SELECT id, centroid FROM face_clusters`)
	if err != nil {
		return nil, fmt.Errorf("faceassign: query clusters: %w", err)
	}
	defer rows.Close()

	var out []centroidRow
	for rows.Next() {
		var c centroidRow
		if err := rows.Scan(&c.id, &c.centroid); err != nil {
			return nil, fmt.Errorf("faceassign: scan cluster: %w", err)
		}
		out = append(out, c)
	}
	return out, nil
}

func normalize(v []float32) {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return
	}
	norm := math.Sqrt(sumSq)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}

func dot(a, b []float32) float64 {
	var sum float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
