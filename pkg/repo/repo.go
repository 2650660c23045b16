// Package repo provides a small generic repository over Neo4j nodes and the
// session abstraction shared by the graph packages.
package repo

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no node matches the id.
var ErrNotFound = errors.New("repo: not found")

// Reader is the read/delete side of a node repository.
type Reader[T any, ID comparable] interface {
	Get(ctx context.Context, id ID) (T, error)
	List(ctx context.Context, opts ListOpts) ([]T, error)
	Delete(ctx context.Context, id ID) error
}

// ListOpts controls pagination for List.
type ListOpts struct {
	Offset int
	Limit  int
}

// DefaultListLimit applies when ListOpts.Limit is not positive.
const DefaultListLimit = 100

func (o ListOpts) limit() int {
	if o.Limit <= 0 {
		return DefaultListLimit
	}
	return o.Limit
}
