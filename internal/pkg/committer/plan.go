// Package committer collects Spanner mutations into a plan and applies them
// atomically.
//
// Repositories never write directly. They return mutations, callers gather
// them into a CommitPlan, and the Committer applies the plan in one
// transaction:
//
//	plan := committer.NewPlan()
//	plan.Add(model.UpdateMut(id, updates))
//	err := c.Apply(ctx, plan)
//
// When the mutations depend on rows read first, InTransaction runs the read
// and the buffered writes inside one read-write transaction.
package committer

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/spanner"
)

// CommitPlan is an ordered set of mutations applied together.
type CommitPlan struct {
	mutations []*spanner.Mutation
}

// NewPlan creates a new empty CommitPlan.
func NewPlan() *CommitPlan {
	return &CommitPlan{}
}

// Add adds a mutation to the plan. Nil mutations are ignored.
func (cp *CommitPlan) Add(mut *spanner.Mutation) {
	if mut != nil {
		cp.mutations = append(cp.mutations, mut)
	}
}

// AddMultiple adds multiple mutations to the plan.
func (cp *CommitPlan) AddMultiple(muts []*spanner.Mutation) {
	for _, mut := range muts {
		cp.Add(mut)
	}
}

// Mutations returns all collected mutations.
func (cp *CommitPlan) Mutations() []*spanner.Mutation {
	return cp.mutations
}

// IsEmpty returns true if the plan has no mutations.
func (cp *CommitPlan) IsEmpty() bool {
	return len(cp.mutations) == 0
}

// Count returns the number of mutations in the plan.
func (cp *CommitPlan) Count() int {
	return len(cp.mutations)
}

// Committer applies CommitPlans against a Spanner database.
type Committer struct {
	client *spanner.Client
}

// NewCommitter creates a new Committer.
func NewCommitter(client *spanner.Client) *Committer {
	return &Committer{client: client}
}

// Apply writes the plan atomically and returns the commit timestamp.
// An empty plan is a no-op. Wrapped errors keep their Spanner status
// visible to spanner.ErrCode.
func (c *Committer) Apply(ctx context.Context, plan *CommitPlan) (time.Time, error) {
	if plan.IsEmpty() {
		return time.Time{}, nil
	}

	ts, err := c.client.Apply(ctx, plan.Mutations())
	if err != nil {
		return time.Time{}, fmt.Errorf("apply commit plan: %w", err)
	}
	return ts, nil
}

// InTransaction runs build inside a read-write transaction and buffers the
// plan it returns. Returning an error from build aborts the transaction and
// the error is passed back unchanged.
func (c *Committer) InTransaction(ctx context.Context, build func(context.Context, *spanner.ReadWriteTransaction) (*CommitPlan, error)) (time.Time, error) {
	return c.client.ReadWriteTransaction(ctx, func(ctx context.Context, txn *spanner.ReadWriteTransaction) error {
		plan, err := build(ctx, txn)
		if err != nil {
			return err
		}
		if plan == nil || plan.IsEmpty() {
			return nil
		}
		return txn.BufferWrite(plan.Mutations())
	})
}
