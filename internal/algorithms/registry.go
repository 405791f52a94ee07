// Package algorithms assembles the catalogue of gocv algorithms, grouped into the
// categories a pipeline step can take.
package algorithms

import (
	"nefi-engine/internal/algorithms/graphdetection"
	"nefi-engine/internal/algorithms/graphfiltering"
	"nefi-engine/internal/algorithms/preprocessing"
	"nefi-engine/internal/algorithms/segmentation"
	"nefi-engine/internal/category"
)

// NewRegistry returns the categories in pipeline order, each listing its algorithms in
// the order they are offered.
func NewRegistry() *category.Registry {
	return category.NewRegistry(
		category.NewDefinition(preprocessing.Category).
			Register("Gaussian blur", preprocessing.NewGaussianBlur).
			Register("Median blur", preprocessing.NewMedianBlur).
			Register("Bilateral filter", preprocessing.NewBilateral).
			Register("Non-local means", preprocessing.NewDenoise).
			Register("Histogram equalization", preprocessing.NewEqualize).
			Register("Invert", preprocessing.NewInvert),
		category.NewDefinition(segmentation.Category).
			Register("Otsu threshold", segmentation.NewOtsu).
			Register("Adaptive threshold", segmentation.NewAdaptive).
			Register("Fixed threshold", segmentation.NewFixed).
			Register("Otsu 2D", segmentation.NewOtsu2D).
			Register("Iterative triclass", segmentation.NewTriclass),
		category.NewDefinition(graphdetection.Category).
			Register("Skeleton graph", graphdetection.NewSkeleton),
		category.NewDefinition(graphfiltering.Category).
			Register("Remove small components", graphfiltering.NewSmallComponents).
			Register("Morphological cleanup", graphfiltering.NewMorphology),
	)
}
