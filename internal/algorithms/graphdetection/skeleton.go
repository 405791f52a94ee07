// Package graphdetection extracts a node/edge network from a segmented image.
package graphdetection

import (
	"context"
	"image"
	"image/color"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"nefi-engine/internal/algorithm"
	"nefi-engine/internal/algorithms/matutil"
	"nefi-engine/internal/netgraph"
)

const Category = "Graph detection"

var (
	edgeColor = color.RGBA{R: 0, G: 200, B: 255, A: 255}
	nodeColor = color.RGBA{R: 255, G: 60, B: 60, A: 255}
)

// Skeleton thins the foreground to one-pixel lines, extracts the junction/endpoint
// graph and draws it on a black canvas.
type Skeleton struct {
	*algorithm.Base
}

func NewSkeleton() algorithm.Algorithm {
	return &Skeleton{algorithm.NewBase("Skeleton graph", Category,
		algorithm.BoolParam("draw_nodes", true),
		algorithm.IntParam("node_radius", 1, 10, 1, 3),
		algorithm.IntParam("min_edge_length", 0, 1000, 1, 0).WithDescription("Shorter edges are dropped"),
	)}
}

func (a *Skeleton) Run(ctx context.Context, img image.Image) (image.Image, error) {
	drawNodes, radius, minLength := a.Bool("draw_nodes"), a.Int("node_radius"), a.Int("min_edge_length")

	return matutil.Apply(ctx, img, func(src gocv.Mat) (gocv.Mat, error) {
		bin, err := matutil.Binary(src)
		if err != nil {
			return bin, err
		}
		defer bin.Close()

		skel, err := skeletonize(ctx, bin)
		if err != nil {
			return skel, err
		}
		defer skel.Close()

		thin, err := matutil.ToImage(skel)
		if err != nil {
			return gocv.NewMat(), err
		}
		gray, ok := thin.(*image.Gray)
		if !ok {
			return gocv.NewMat(), errors.Errorf("skeleton is %T, want *image.Gray", thin)
		}

		g, err := netgraph.Extract(gray)
		if err != nil {
			return gocv.NewMat(), err
		}
		if err := netgraph.Prune(g, minLength); err != nil {
			return gocv.NewMat(), err
		}

		return render(g, src.Rows(), src.Cols(), drawNodes, radius)
	})
}

// skeletonize computes the morphological skeleton: the union over successive
// erosions of what an opening removes.
func skeletonize(ctx context.Context, bin gocv.Mat) (gocv.Mat, error) {
	kernel := gocv.GetStructuringElement(gocv.MorphCross, image.Pt(3, 3))
	defer kernel.Close()

	skel := gocv.Zeros(bin.Rows(), bin.Cols(), gocv.MatTypeCV8UC1)
	work := bin.Clone()
	defer work.Close()
	eroded := gocv.NewMat()
	defer eroded.Close()
	opened := gocv.NewMat()
	defer opened.Close()
	residue := gocv.NewMat()
	defer residue.Close()

	for gocv.CountNonZero(work) > 0 {
		if err := ctx.Err(); err != nil {
			skel.Close()
			return gocv.NewMat(), err
		}

		gocv.Erode(work, &eroded, kernel)
		gocv.Dilate(eroded, &opened, kernel)
		gocv.Subtract(work, opened, &residue)
		gocv.BitwiseOr(skel, residue, &skel)
		eroded.CopyTo(&work)
	}
	return skel, nil
}

func render(g netgraph.Graph, rows, cols int, drawNodes bool, radius int) (gocv.Mat, error) {
	canvas := gocv.Zeros(rows, cols, gocv.MatTypeCV8UC3)

	segments, err := netgraph.Segments(g)
	if err != nil {
		canvas.Close()
		return gocv.NewMat(), err
	}
	for _, s := range segments {
		gocv.Line(&canvas, s.From, s.To, edgeColor, 1)
	}

	if drawNodes {
		nodes, err := netgraph.Nodes(g)
		if err != nil {
			canvas.Close()
			return gocv.NewMat(), err
		}
		for _, n := range nodes {
			gocv.Circle(&canvas, n.Point, radius, nodeColor, -1)
		}
	}
	return canvas, nil
}
