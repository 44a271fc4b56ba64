// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cf

import (
	"context"
	"fmt"
	"math"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/als/common/floats"
	"github.com/gorse-io/als/common/heap"
	"github.com/gorse-io/als/common/parallel"
	"github.com/gorse-io/als/sparse"
	"github.com/juju/errors"
)

// Metric is used by evaluators in personalized ranking tasks.
type Metric func(targetSet mapset.Set[int32], rankList []int32) float64

// Scorer is a named metric reported in the convergence trace.
type Scorer struct {
	Name   string
	Metric Metric
}

// DefaultScorers returns MAP@k and NDCG@k.
func DefaultScorers(k int) []Scorer {
	return []Scorer{
		{Name: fmt.Sprintf("map@%d", k), Metric: MAP},
		{Name: fmt.Sprintf("ndcg@%d", k), Metric: NDCG},
	}
}

// Targets converts held-out interactions into per-user sets of relevant
// item indices.
func Targets[T floats.Float](test *sparse.CSR[T]) [][]int32 {
	targets := make([][]int32, test.Rows())
	for i := range targets {
		indices, values := test.Row(i)
		for k, j := range indices {
			if values[k] > 0 {
				targets[i] = append(targets[i], j)
			}
		}
	}
	return targets
}

// Evaluate ranks all items unseen in train for every user with targets and
// returns the mean of each scorer.
func Evaluate[T floats.Float](ctx context.Context, users, items floats.Matrix[T], train *sparse.CSR[T], targets [][]int32, topK, jobs int, scorers []Scorer) ([]float64, error) {
	jobs = max(jobs, 1)
	partSum := make([][]float64, jobs)
	partCount := make([]float64, jobs)
	for i := range partSum {
		partSum[i] = make([]float64, len(scorers))
	}
	nUsers := min(len(targets), users.Rows)
	err := parallel.Parallel(ctx, nUsers, jobs, func(workerId, userIndex int) error {
		if len(targets[userIndex]) == 0 {
			return nil
		}
		targetSet := mapset.NewThreadUnsafeSet(targets[userIndex]...)
		var seen []int32
		if userIndex < train.Rows() {
			seen, _ = train.Row(userIndex)
		}
		rankList := rank(users.Row(userIndex), items, seen, topK)
		partCount[workerId]++
		for i, scorer := range scorers {
			partSum[workerId][i] += scorer.Metric(targetSet, rankList)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	sum := make([]float64, len(scorers))
	var count float64
	for i := range partSum {
		floats.Add(sum, partSum[i])
		count += partCount[i]
	}
	if count > 0 {
		floats.MulConst(sum, 1/count)
	}
	return sum, nil
}

// rank returns the top k items by xᵀy, skipping the sorted indices in seen.
func rank[T floats.Float](x []T, items floats.Matrix[T], seen []int32, topK int) []int32 {
	filter := heap.NewTopKFilter[int32, T](topK)
	k := 0
	for i := 0; i < items.Rows; i++ {
		for k < len(seen) && int(seen[k]) < i {
			k++
		}
		if k < len(seen) && int(seen[k]) == i {
			continue
		}
		filter.Push(int32(i), floats.Dot(x, items.Row(i)))
	}
	return filter.PopAllValues()
}

// NDCG means Normalized Discounted Cumulative Gain.
func NDCG(targetSet mapset.Set[int32], rankList []int32) float64 {
	// IDCG = \sum^{|REL|}_{i=1} \frac {1} {\log_2(i+1)}
	idcg := 0.0
	for i := 0; i < targetSet.Cardinality() && i < len(rankList); i++ {
		idcg += 1.0 / math.Log2(float64(i)+2.0)
	}
	if idcg == 0 {
		return 0
	}
	// DCG = \sum^{N}_{i=1} \frac {2^{rel_i}-1} {\log_2(i+1)}
	dcg := 0.0
	for i, itemId := range rankList {
		if targetSet.Contains(itemId) {
			dcg += 1.0 / math.Log2(float64(i)+2.0)
		}
	}
	return dcg / idcg
}

// MAP means Mean Average Precision. The average precision is normalized by
// min(|targets|, |rankList|).
func MAP(targetSet mapset.Set[int32], rankList []int32) float64 {
	sumPrecision := 0.0
	hit := 0
	for i, itemId := range rankList {
		if targetSet.Contains(itemId) {
			hit++
			sumPrecision += float64(hit) / float64(i+1)
		}
	}
	n := min(targetSet.Cardinality(), len(rankList))
	if n == 0 {
		return 0
	}
	return sumPrecision / float64(n)
}
