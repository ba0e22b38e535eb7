/*
 * This file is part of Koemaki (https://github.com/koemaki/koemaki).
 * Copyright (C) 2026 Koemaki Authors
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// BatchResult pairs one request with its outcome. Index refers back to the
// request slice passed to RunBatch.
type BatchResult struct {
	Index  int
	Result *Result
	Err    error
}

// RunBatch synthesizes requests concurrently, at most o.cfg.MaxConcurrent
// at a time, and returns results in request order. Individual failures do
// not stop the batch; each request carries its own error.
func (o *Orchestrator) RunBatch(ctx context.Context, requests []Request) []BatchResult {
	results := make([]BatchResult, len(requests))

	limit := int64(o.cfg.MaxConcurrent)
	if limit <= 0 {
		limit = 1
	}
	sem := semaphore.NewWeighted(limit)

	var wg sync.WaitGroup
	for i, req := range requests {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = BatchResult{Index: i, Err: err}
			continue
		}
		wg.Add(1)
		go func(i int, req Request) {
			defer wg.Done()
			defer sem.Release(1)
			res, err := o.Synthesize(ctx, req)
			results[i] = BatchResult{Index: i, Result: res, Err: err}
		}(i, req)
	}
	wg.Wait()
	return results
}
