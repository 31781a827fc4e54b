package network

import (
	"encoding/gob"
	"fmt"
	"os"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Save writes a snapshot of the network's weights to filename, keyed by
// parameter name. Save may be called repeatedly on the same filename;
// each call overwrites the previous snapshot.
func (q *QNetwork) Save(filename string) error {
	snapshot := make(map[string]*tensor.Dense)
	for _, node := range q.Learnables() {
		snapshot[node.Name()] = node.Value().(*tensor.Dense)
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("save: could not create snapshot file: %v", err)
	}
	defer file.Close()

	en := gob.NewEncoder(file)
	if err := en.Encode(snapshot); err != nil {
		return fmt.Errorf("save: could not encode weights: %v", err)
	}
	return nil
}

// Restore loads a weight snapshot saved by Save into the network. The
// snapshot must come from a network of identical architecture; a missing
// parameter or a shape mismatch is an error and leaves the remaining
// parameters untouched.
func (q *QNetwork) Restore(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("restore: could not open snapshot file: %v", err)
	}
	defer file.Close()

	var snapshot map[string]*tensor.Dense
	dec := gob.NewDecoder(file)
	if err := dec.Decode(&snapshot); err != nil {
		return fmt.Errorf("restore: could not decode weights: %v", err)
	}

	for _, node := range q.Learnables() {
		weights, ok := snapshot[node.Name()]
		if !ok {
			return fmt.Errorf("restore: snapshot has no weights for %v",
				node.Name())
		}
		if !weights.Shape().Eq(node.Shape()) {
			return fmt.Errorf("restore: shape mismatch for %v "+
				"\n\twant(%v)\n\thave(%v)", node.Name(), node.Shape(),
				weights.Shape())
		}
		if err := G.Let(node, weights); err != nil {
			return fmt.Errorf("restore: could not set %v: %v",
				node.Name(), err)
		}
	}
	return nil
}
