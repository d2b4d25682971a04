package merkle

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/docanchor/docanchor/hasher"
)

var (
	// ErrNoLeaves is returned when building a tree over an empty leaf set.
	ErrNoLeaves = errors.New("merkle: empty leaf set")
)

// Engine builds binary merkle trees and inclusion proofs over document
// digests. The combine function is fixed at construction time, the same
// function is used to build and to verify. There is deliberately no default:
// callers resolve the algorithm from the proof record they are working with.
type Engine struct {
	algorithm hasher.Algorithm
	combine   hasher.HashFunc
}

// New returns an Engine using the given combine algorithm for inner nodes.
func New(algorithm hasher.Algorithm) (*Engine, error) {
	combine, err := hasher.Get(algorithm)
	if err != nil {
		return nil, err
	}
	return &Engine{algorithm: algorithm, combine: combine}, nil
}

// Algorithm returns the combine algorithm identifier the engine was built with.
func (e *Engine) Algorithm() hasher.Algorithm {
	return e.algorithm
}

// combinePair hashes a sibling pair. The two digests are sorted
// lexicographically before hashing so that verification does not need to know
// whether the sibling was on the left or the right.
func (e *Engine) combinePair(a, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return e.combine(a[:], b[:])
}

// Tree is an in-memory merkle tree over one batch of leaves.
// Layer 0 holds the leaves in submission order, the last layer holds the root.
type Tree struct {
	engine *Engine
	layers [][]common.Hash
}

// Build constructs the tree bottom-up. A single-leaf batch yields a root equal
// to the leaf itself. When a layer has an odd number of nodes the last node is
// promoted unchanged to the next layer.
func (e *Engine) Build(leaves []common.Hash) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrNoLeaves
	}
	current := make([]common.Hash, len(leaves))
	copy(current, leaves)
	layers := [][]common.Hash{current}

	for len(current) > 1 {
		next := make([]common.Hash, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			if i+1 < len(current) {
				next = append(next, e.combinePair(current[i], current[i+1]))
			} else {
				next = append(next, current[i])
			}
		}
		layers = append(layers, next)
		current = next
	}

	return &Tree{engine: e, layers: layers}, nil
}

// Root returns the digest at the top of the tree.
func (t *Tree) Root() common.Hash {
	top := t.layers[len(t.layers)-1]
	return top[0]
}

// LeafCount returns the number of leaves the tree was built over.
func (t *Tree) LeafCount() int {
	return len(t.layers[0])
}

// Proof returns the sibling digests for the leaf at index, ordered bottom-up.
// Levels where the node is promoted without a sibling contribute no entry.
func (t *Tree) Proof(index int) ([]common.Hash, error) {
	if index < 0 || index >= len(t.layers[0]) {
		return nil, fmt.Errorf("merkle: leaf index %d out of range [0, %d)", index, len(t.layers[0]))
	}

	proof := []common.Hash{}
	for _, layer := range t.layers[:len(t.layers)-1] {
		var sibling int
		if index%2 == 0 {
			sibling = index + 1
		} else {
			sibling = index - 1
		}
		if sibling < len(layer) {
			proof = append(proof, layer[sibling])
		}
		index /= 2
	}
	return proof, nil
}

// Proofs returns the inclusion proof of every leaf, indexed like the leaf set.
func (t *Tree) Proofs() ([][]common.Hash, error) {
	proofs := make([][]common.Hash, t.LeafCount())
	for i := range proofs {
		p, err := t.Proof(i)
		if err != nil {
			return nil, err
		}
		proofs[i] = p
	}
	return proofs, nil
}

// Verify recomputes the root from a leaf and its proof using the engine's
// combine function and reports whether it matches the expected root.
func (e *Engine) Verify(leaf common.Hash, proof []common.Hash, root common.Hash) bool {
	current := leaf
	for _, sibling := range proof {
		current = e.combinePair(current, sibling)
	}
	return current == root
}
