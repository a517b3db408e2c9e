package jit

import (
	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru"
)

// PlanCache keeps recently built plans keyed by query text and operation
// name. Plans are variable independent, so a hit serves any bindings.
type PlanCache struct {
	plans *lru.Cache
}

func NewPlanCache(size int) (*PlanCache, error) {
	if size <= 0 {
		size = 1024
	}
	plans, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &PlanCache{plans: plans}, nil
}

func (c *PlanCache) Get(query, operationName string) (*OperationPlan, bool) {
	cached, ok := c.plans.Get(planKey(query, operationName))
	if !ok {
		return nil, false
	}
	p, ok := cached.(*OperationPlan)
	return p, ok
}

func (c *PlanCache) Add(query, operationName string, plan *OperationPlan) {
	c.plans.Add(planKey(query, operationName), plan)
}

func (c *PlanCache) Len() int { return c.plans.Len() }

func planKey(query, operationName string) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(query)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(operationName)
	return d.Sum64()
}
