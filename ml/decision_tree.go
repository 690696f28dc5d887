package ml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// DecisionTree is a fitted binary tree classifier stored as a flat node array.
// Node 0 is the root.
type DecisionTree struct {
	encoder *Encoder
	nodes   []TreeNode
}

type TreeNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	ClassLabel int     `json:"class_label"`
	IsLeaf     bool    `json:"is_leaf"`
}

type treeParams struct {
	Nodes []TreeNode `json:"nodes"`
}

func newDecisionTree(encoder *Encoder, raw json.RawMessage) (*DecisionTree, error) {
	var params treeParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("decode tree: %w", err)
	}
	if len(params.Nodes) == 0 {
		return nil, errors.New("tree has no nodes")
	}
	width := encoder.Width()
	for i, node := range params.Nodes {
		if node.IsLeaf {
			continue
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= width {
			return nil, fmt.Errorf("node %d: feature index %d out of range", i, node.FeatureIdx)
		}
		if !validChild(node.LeftChild, len(params.Nodes)) || !validChild(node.RightChild, len(params.Nodes)) {
			return nil, fmt.Errorf("node %d: child out of range", i)
		}
	}
	return &DecisionTree{encoder: encoder, nodes: params.Nodes}, nil
}

func (dt *DecisionTree) Kind() string { return KindDecisionTree }

func (dt *DecisionTree) Predict(ctx context.Context, frame Frame) ([]float64, error) {
	return predictRows(ctx, frame, dt.encoder, func(vector []float64) (float64, error) {
		label, err := dt.classify(vector)
		return float64(label), err
	})
}

func (dt *DecisionTree) classify(features []float64) (int, error) {
	idx := 0
	// A well-formed tree reaches a leaf in fewer steps than it has nodes.
	for steps := 0; steps <= len(dt.nodes); steps++ {
		node := dt.nodes[idx]
		if node.IsLeaf {
			return node.ClassLabel, nil
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
	}
	return 0, errors.New("invalid tree state")
}

func validChild(idx, count int) bool {
	return idx > 0 && idx < count
}
