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

package raster

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// TileRows is the number of grid rows processed together by one worker.
var TileRows = 64

// Tiles splits the rows [0, ny) into tiles and calls f for each tile
// concurrently, using up to GOMAXPROCS workers. It returns the first
// error returned by f, or ctx.Err() if ctx is cancelled before all
// tiles have been scheduled.
func Tiles(ctx context.Context, ny int, f func(rowStart, rowEnd int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for start := 0; start < ny; start += TileRows {
		if gctx.Err() != nil {
			break
		}
		start, end := start, start+TileRows
		if end > ny {
			end = ny
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return f(start, end)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
