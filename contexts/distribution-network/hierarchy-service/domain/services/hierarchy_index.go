package services

import (
	"sort"

	"arbor/contexts/distribution-network/hierarchy-service/domain/entities"
	domainerrors "arbor/contexts/distribution-network/hierarchy-service/domain/errors"
)

// Index is a read-only navigational view over the distributor set.
// Build it once per batch pass; upstream and downstream walks are then
// O(chain length) and O(subtree size) without rescanning the full set.
type Index struct {
	nodes    map[string]entities.Distributor
	children map[string][]string
}

func BuildIndex(distributors []entities.Distributor) *Index {
	index := &Index{
		nodes:    make(map[string]entities.Distributor, len(distributors)),
		children: make(map[string][]string),
	}
	for _, distributor := range distributors {
		index.nodes[distributor.DistributorID] = distributor
		if !distributor.IsRoot() {
			parent := distributor.Upstream()
			index.children[parent] = append(index.children[parent], distributor.DistributorID)
		}
	}
	for parent := range index.children {
		sort.Strings(index.children[parent])
	}
	return index
}

func (x *Index) Get(distributorID string) (entities.Distributor, bool) {
	node, ok := x.nodes[distributorID]
	return node, ok
}

func (x *Index) Size() int {
	return len(x.nodes)
}

// Upstream returns the ancestor chain of the distributor, nearest first,
// stopping at a root or after bound hops (bound <= 0 means unbounded).
// A revisited node means the stored parent references loop; that is an
// integrity error, never a state to walk through.
func (x *Index) Upstream(distributorID string, bound int) ([]entities.Distributor, error) {
	start, ok := x.nodes[distributorID]
	if !ok {
		return nil, domainerrors.ErrDistributorNotFound
	}

	visited := map[string]bool{start.DistributorID: true}
	chain := make([]entities.Distributor, 0)
	current := start
	for !current.IsRoot() {
		if bound > 0 && len(chain) >= bound {
			break
		}
		parent, ok := x.nodes[current.Upstream()]
		if !ok {
			// Dangling upstream reference terminates the walk like a root.
			break
		}
		if visited[parent.DistributorID] {
			return nil, domainerrors.ErrHierarchyCycle
		}
		visited[parent.DistributorID] = true
		chain = append(chain, parent)
		current = parent
	}
	return chain, nil
}

// Downstream returns the subtree below the distributor, breadth first,
// up to bound levels deep (bound <= 0 means unbounded). The root itself
// is not included.
func (x *Index) Downstream(distributorID string, bound int) []entities.Distributor {
	if _, ok := x.nodes[distributorID]; !ok {
		return nil
	}

	result := make([]entities.Distributor, 0)
	visited := map[string]bool{distributorID: true}
	frontier := []string{distributorID}
	depth := 0
	for len(frontier) > 0 {
		if bound > 0 && depth >= bound {
			break
		}
		next := make([]string, 0)
		for _, id := range frontier {
			for _, childID := range x.children[id] {
				if visited[childID] {
					continue
				}
				visited[childID] = true
				result = append(result, x.nodes[childID])
				next = append(next, childID)
			}
		}
		frontier = next
		depth++
	}
	return result
}

// DirectDownstream returns only the immediate children.
func (x *Index) DirectDownstream(distributorID string) []entities.Distributor {
	ids := x.children[distributorID]
	result := make([]entities.Distributor, 0, len(ids))
	for _, id := range ids {
		result = append(result, x.nodes[id])
	}
	return result
}
