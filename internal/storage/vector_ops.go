package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// Neighbor is one nearest-neighbour hit, closest first
type Neighbor struct {
	ID       string
	Distance float64
}

// NearestNeighbors returns up to k ids from post_embeddings closest to target
// by L2 distance, excluding excludeID. Ties are broken by id.
func NearestNeighbors(ctx context.Context, conn *sql.Conn, target []byte, excludeID string, k int) ([]Neighbor, error) {
	if k <= 0 {
		return []Neighbor{}, nil
	}
	// Use sqlite-vec's KNN when it is compiled in
	if VectorExtensionAvailable {
		return nearestNeighborsOptimized(ctx, conn, target, excludeID, k)
	}
	// Fall back to Go-based computation for purego builds
	return nearestNeighborsFallback(ctx, conn, target, excludeID, k)
}

// nearestNeighborsOptimized asks vec0 for one extra row so the excluded id can
// be dropped without a constraint the KNN planner cannot push down.
func nearestNeighborsOptimized(ctx context.Context, conn *sql.Conn, target []byte, excludeID string, k int) ([]Neighbor, error) {
	rows, err := conn.QueryContext(ctx, `
		SELECT id, distance
		FROM post_embeddings
		WHERE embedding MATCH ? AND k = ?
		ORDER BY distance
	`, target, k+1)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]Neighbor, 0, k)
	for rows.Next() {
		var n Neighbor
		if err := rows.Scan(&n.ID, &n.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan neighbor: %w", err)
		}
		if n.ID == excludeID {
			continue
		}
		results = append(results, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortNeighbors(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// nearestNeighborsFallback scans every stored embedding and ranks in Go
func nearestNeighborsFallback(ctx context.Context, conn *sql.Conn, target []byte, excludeID string, k int) ([]Neighbor, error) {
	query, err := DeserializeVector(target)
	if err != nil {
		return nil, fmt.Errorf("invalid target embedding: %w", err)
	}

	rows, err := conn.QueryContext(ctx, "SELECT id, embedding FROM post_embeddings WHERE id != ?", excludeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var candidates []Neighbor
	for rows.Next() {
		var (
			id   string
			blob []byte
		)
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}

		vec, err := DeserializeVector(blob)
		if err != nil || len(vec) != len(query) {
			continue
		}
		candidates = append(candidates, Neighbor{ID: id, Distance: l2Distance(query, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortNeighbors(candidates)
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	if candidates == nil {
		candidates = []Neighbor{}
	}
	return candidates, nil
}

func sortNeighbors(ns []Neighbor) {
	sort.SliceStable(ns, func(i, j int) bool {
		if ns[i].Distance != ns[j].Distance {
			return ns[i].Distance < ns[j].Distance
		}
		return ns[i].ID < ns[j].ID
	})
}

// l2Distance is the Euclidean distance used by vec0 by default
func l2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// SerializeVector converts a float32 slice to the little-endian blob layout
// shared by sqlite-vec and the fallback table
func SerializeVector(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// DeserializeVector converts a little-endian blob back to float32 values
func DeserializeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid vector data length: %d", len(data))
	}

	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
