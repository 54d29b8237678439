/*
Copyright © 2021 the BioMosaic authors.
This file is part of BioMosaic.

BioMosaic is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

BioMosaic is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with BioMosaic.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package voidfill fills small gaps in rasters by extrapolating from
// nearby valid pixels along cost-distance paths.
//
// Three cumulative cost fields are accumulated along every path that
// starts at a valid pixel and runs through masked pixels. Each step
// from pixel p to pixel q costs L/2·(c(p)+c(q)), where L is the step
// length in meters and c is the per-pixel cost of the field:
//
//	cost0: 0 at the source pixel, CostFillValue elsewhere
//	cost1: 1 at the source pixel, CostFillValue elsewhere
//	cost2: the source value at the source pixel, CostFillValue elsewhere
//
// Only the first step touches the source pixel, so the source value is
// recovered at any point along the path as (cost2−cost0)/(cost1−cost0).
// Each void keeps the paths from its two nearest distinct sources and
// takes the inverse-path-length weighted mean of their values.
package voidfill

import (
	"container/heap"
	"context"
	"fmt"
	"math"

	"github.com/spatialmodel/biomosaic/raster"
)

// CostFillValue is the per-pixel cost of masked pixels.
const CostFillValue = 10000.

// maxSources is the number of distinct sources kept for each void.
const maxSources = 2

// checkEvery is how many path labels are processed between checks for
// cancellation.
const checkEvery = 1 << 14

// label is a path from a source pixel to a pixel.
type label struct {
	node, source int
	length       float64 // path length in meters

	// cost0, cost1 and cost2 are the accumulated cost fields;
	// cost2 has one value per band.
	cost0, cost1 float64
	cost2        []float64
}

// value returns the source value of band b carried by the path.
func (lb *label) value(b int) float64 {
	return (lb.cost2[b] - lb.cost0) / (lb.cost1 - lb.cost0)
}

type labelHeap []*label

func (h labelHeap) Len() int            { return len(h) }
func (h labelHeap) Less(i, j int) bool  { return h[i].length < h[j].length }
func (h labelHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *labelHeap) Push(x interface{}) { *h = append(*h, x.(*label)) }
func (h *labelHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return x
}

// neighbors are the offsets of the 8-connected neighborhood as (row, col).
var neighbors = [8][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}

// Fill returns a copy of l where masked pixels within distance meters
// of a valid pixel, measured along paths through masked pixels, are
// filled. Pixels that are valid in l are copied unchanged, and masked
// pixels farther than distance from any valid pixel stay masked. All
// bands are filled along the same paths, so a filled pixel is valid in
// every band.
func Fill(ctx context.Context, l *raster.Layer, distance float64) (*raster.Layer, error) {
	if !(distance > 0) || math.IsInf(distance, 1) {
		return nil, fmt.Errorf("voidfill: fill distance is %g but should be a finite value >0", distance)
	}
	g := l.Grid
	nb := l.NumBands()
	o := l.Copy()
	if nb == 0 {
		return o, nil
	}

	// Cell sizes in meters for every row.
	dx := make([]float64, g.Ny)
	dy := make([]float64, g.Ny)
	for r := range dx {
		dx[r], dy[r] = g.CellSizeMeters(r)
	}

	valid := make([]bool, g.Len())
	for i := range valid {
		valid[i] = l.Valid(i)
	}

	h := new(labelHeap)
	for i, v := range valid {
		if v && hasVoidNeighbor(g, valid, i) {
			src := &label{node: i, source: i, cost2: make([]float64, nb)}
			heap.Push(h, src)
		}
	}

	// done holds the finalized paths of each pixel that has been reached.
	done := make(map[int][]*label)
	var n int
	for h.Len() > 0 {
		if n++; n%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		lb := heap.Pop(h).(*label)
		if !accept(done[lb.node], lb.source) {
			continue
		}
		done[lb.node] = append(done[lb.node], lb)

		row, col := g.RowCol(lb.node)
		for _, d := range neighbors {
			r, c := row+d[0], col+d[1]
			if r < 0 || r >= g.Ny || c < 0 || c >= g.Nx {
				continue
			}
			j := g.Index(r, c)
			if valid[j] || !accept(done[j], lb.source) {
				continue
			}
			step := math.Hypot(float64(d[1])*(dx[row]+dx[r])/2, float64(d[0])*(dy[row]+dy[r])/2)
			if lb.length+step > distance {
				continue
			}
			heap.Push(h, extend(l, lb, j, step))
		}
	}

	for i, paths := range done {
		if valid[i] {
			continue
		}
		var wsum float64
		vals := make([]float64, nb)
		for _, p := range paths {
			w := 1 / p.length
			wsum += w
			for b := range vals {
				vals[b] += w * p.value(b)
			}
		}
		for b, v := range vals {
			o.BandAt(b).Elements[i] = v / wsum
		}
	}
	return o, nil
}

// accept returns whether a pixel with the given finalized paths can
// take a path from source.
func accept(paths []*label, source int) bool {
	if len(paths) >= maxSources {
		return false
	}
	for _, p := range paths {
		if p.source == source {
			return false
		}
	}
	return true
}

// extend returns the path lb extended by one step of the given length
// to the masked pixel j.
func extend(l *raster.Layer, lb *label, j int, step float64) *label {
	o := &label{
		node:   j,
		source: lb.source,
		length: lb.length + step,
		cost2:  make([]float64, len(lb.cost2)),
	}
	if lb.node == lb.source {
		// First step: half of the step is over the source pixel.
		o.cost0 = step / 2 * (0 + CostFillValue)
		o.cost1 = step / 2 * (1 + CostFillValue)
		for b := range o.cost2 {
			o.cost2[b] = step / 2 * (l.At(b, lb.source) + CostFillValue)
		}
		return o
	}
	c := step * CostFillValue
	o.cost0 = lb.cost0 + c
	o.cost1 = lb.cost1 + c
	for b, v := range lb.cost2 {
		o.cost2[b] = v + c
	}
	return o
}

func hasVoidNeighbor(g *raster.Grid, valid []bool, i int) bool {
	row, col := g.RowCol(i)
	for _, d := range neighbors {
		r, c := row+d[0], col+d[1]
		if r < 0 || r >= g.Ny || c < 0 || c >= g.Nx {
			continue
		}
		if !valid[g.Index(r, c)] {
			return true
		}
	}
	return false
}
