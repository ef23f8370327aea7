package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/svnmove/internal/model"
)

// marshalProps serializes a property set to JSON text. encoding/json
// sorts map[string]string keys lexicographically, giving deterministic
// output without a canonical-JSON layer of our own.
func marshalProps(p model.Props) (string, error) {
	if len(p) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal props: %w", err)
	}
	return string(data), nil
}

func unmarshalProps(data string) (model.Props, error) {
	if data == "" || data == "{}" {
		return model.Props{}, nil
	}
	var p model.Props
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("unmarshal props: %w", err)
	}
	return p, nil
}

func marshalConflict(c *model.ConflictSkeleton) (string, error) {
	if c == nil {
		return "", nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal conflict: %w", err)
	}
	return string(data), nil
}

func unmarshalConflict(data string) (*model.ConflictSkeleton, error) {
	if data == "" {
		return nil, nil
	}
	var c model.ConflictSkeleton
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, fmt.Errorf("unmarshal conflict: %w", err)
	}
	return &c, nil
}
