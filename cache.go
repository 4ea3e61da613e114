/*
Copyright © 2019 the PSCF authors.
This file is part of PSCF.

PSCF is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

PSCF is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with PSCF.  If not, see <http://www.gnu.org/licenses/>.
*/

package pscf

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/ctessum/requestcache"
	"github.com/golang/groupcache/lru"
)

// DefaultCacheSize is the default number of trajectories held in memory
// by NewCachedDecoder.
const DefaultCacheSize = 10000

type decodeRequest struct {
	station string
	t       time.Time
}

// decodeResult lets missing trajectories be cached along with
// decoded ones.
type decodeResult struct {
	tr  *Trajectory
	err error
}

// cachedDecoder decodes trajectories through a bounded pool of
// processors and keeps the results in a least-recently-used cache.
type cachedDecoder struct {
	pool *requestcache.Cache

	mu    sync.Mutex
	cache *lru.Cache
}

// NewCachedDecoder wraps d so that repeated requests for the same
// trajectory are only decoded once, holding up to maxEntries results in
// memory. This is useful when several species are analyzed for the same
// station. Missing trajectories are cached; other errors are not, so
// they can be retried. Returned trajectories are shared and must not be
// modified. At most runtime.GOMAXPROCS(-1) decodes run at once.
func NewCachedDecoder(d Decoder, maxEntries int) Decoder {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheSize
	}
	return &cachedDecoder{
		pool: requestcache.NewCache(func(ctx context.Context, payload interface{}) (interface{}, error) {
			r := payload.(decodeRequest)
			tr, err := d.Decode(ctx, r.station, r.t)
			if err != nil {
				if errors.Is(err, ErrMissingTrajectory) {
					return decodeResult{err: err}, nil
				}
				return nil, err
			}
			return decodeResult{tr: tr}, nil
		}, runtime.GOMAXPROCS(-1)),
		cache: lru.New(maxEntries),
	}
}

func (c *cachedDecoder) Decode(ctx context.Context, station string, t time.Time) (*Trajectory, error) {
	key := fmt.Sprintf("%s_%s", station, t.UTC().Format(time.RFC3339))
	c.mu.Lock()
	v, ok := c.cache.Get(key)
	c.mu.Unlock()
	if ok {
		res := v.(decodeResult)
		return res.tr, res.err
	}

	r, err := c.pool.NewRequest(ctx, decodeRequest{station: station, t: t}, key).Result()
	if err != nil {
		return nil, err
	}
	res := r.(decodeResult)
	c.mu.Lock()
	c.cache.Add(key, res)
	c.mu.Unlock()
	return res.tr, res.err
}
