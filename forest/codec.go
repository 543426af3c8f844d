package forest

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// formatVersion is bumped whenever the encoded layout changes.
const formatVersion = 1

// ErrCorrupt is returned when an encoded forest fails validation.
var ErrCorrupt = errors.New("corrupt forest encoding")

type encodedForest struct {
	Version     int      `msgpack:"version"`
	Params      Params   `msgpack:"params"`
	Classes     []string `msgpack:"classes"`
	NumFeatures int      `msgpack:"num_features"`
	Trees       []Tree   `msgpack:"trees"`
}

// MarshalBinary encodes the fitted forest with msgpack.
func (f *Forest) MarshalBinary() ([]byte, error) {
	if len(f.trees) == 0 {
		return nil, ErrNotFitted
	}
	return msgpack.Marshal(encodedForest{
		Version:     formatVersion,
		Params:      f.params,
		Classes:     f.classes,
		NumFeatures: f.numFeatures,
		Trees:       f.trees,
	})
}

// UnmarshalBinary decodes and validates a forest produced by MarshalBinary.
func (f *Forest) UnmarshalBinary(data []byte) error {
	var enc encodedForest
	if err := msgpack.Unmarshal(data, &enc); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if enc.Version != formatVersion {
		return fmt.Errorf("%w: unsupported format version %d", ErrCorrupt, enc.Version)
	}
	if err := validate(enc); err != nil {
		return err
	}

	f.params = enc.Params
	f.classes = enc.Classes
	f.numFeatures = enc.NumFeatures
	f.trees = enc.Trees
	return nil
}

func validate(enc encodedForest) error {
	if len(enc.Classes) == 0 || enc.NumFeatures <= 0 || len(enc.Trees) == 0 {
		return fmt.Errorf("%w: empty model (classes=%d features=%d trees=%d)",
			ErrCorrupt, len(enc.Classes), enc.NumFeatures, len(enc.Trees))
	}
	for t, tree := range enc.Trees {
		if len(tree.Nodes) == 0 {
			return fmt.Errorf("%w: tree %d has no nodes", ErrCorrupt, t)
		}
		for n, node := range tree.Nodes {
			if node.Feature < 0 {
				if len(node.Dist) != len(enc.Classes) {
					return fmt.Errorf("%w: tree %d leaf %d has %d probabilities for %d classes",
						ErrCorrupt, t, n, len(node.Dist), len(enc.Classes))
				}
				continue
			}
			// children are always appended after their parent
			if node.Feature >= enc.NumFeatures ||
				node.Left <= n || node.Left >= len(tree.Nodes) ||
				node.Right <= n || node.Right >= len(tree.Nodes) {
				return fmt.Errorf("%w: tree %d node %d is malformed", ErrCorrupt, t, n)
			}
		}
	}
	return nil
}
