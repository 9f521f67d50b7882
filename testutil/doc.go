// Package testutil holds helpers shared by the package tests: seeded
// feature vectors, exact k-NN ground truth and tiny encoded images.
//
//	vecs := testutil.NewRNG(7).UniformVectors(100, 16)
//	truth := testutil.BruteForceSearch(vecs, testutil.Labels(0, 100), vecs[0], 10)
//	img := testutil.GrayPNG(8, 8, 200)
package testutil
