// Package distance holds the metrics a collection can rank features by.
// Smaller is always closer: MetricL2 is the squared Euclidean distance used
// by default, MetricCosine is one minus the cosine similarity.
package distance
