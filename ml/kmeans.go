package ml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// KMeans assigns each row to the nearest centroid by Euclidean distance.
type KMeans struct {
	encoder   *Encoder
	centroids [][]float64
}

type kmeansParams struct {
	Centroids [][]float64 `json:"centroids"`
}

func newKMeans(encoder *Encoder, raw json.RawMessage) (*KMeans, error) {
	var params kmeansParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("decode centroids: %w", err)
	}
	if len(params.Centroids) == 0 {
		return nil, errors.New("no centroids")
	}
	width := encoder.Width()
	for i, centroid := range params.Centroids {
		if len(centroid) != width {
			return nil, fmt.Errorf("centroid %d: expected %d dimensions, got %d", i, width, len(centroid))
		}
	}
	return &KMeans{encoder: encoder, centroids: params.Centroids}, nil
}

func (km *KMeans) Kind() string { return KindKMeans }

func (km *KMeans) Predict(ctx context.Context, frame Frame) ([]float64, error) {
	return predictRows(ctx, frame, km.encoder, func(vector []float64) (float64, error) {
		return float64(km.nearest(vector)), nil
	})
}

// nearest breaks ties toward the lower cluster id.
func (km *KMeans) nearest(vector []float64) int {
	best := 0
	bestDistance := math.MaxFloat64
	for i, centroid := range km.centroids {
		distance := floats.Distance(vector, centroid, 2)
		if distance < bestDistance {
			bestDistance = distance
			best = i
		}
	}
	return best
}
