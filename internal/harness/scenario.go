// Package harness runs self-contained update-move scenarios against a
// real store and filesystem, and checks the results against declared
// assertions — a conformance harness for the six scenarios spec.md §8
// names (S1-S6), grounded in the teacher's scenario/assertion/golden
// harness.
package harness

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/svnmove/internal/model"
)

// pristineRefPrefix marks a NodeFixture.Checksum as a forward
// reference into Scenario.Pristine rather than a literal digest.
const pristineRefPrefix = "pristine:"

// NodeFixture seeds one row in the node store before the drive runs.
type NodeFixture struct {
	Path         string            `yaml:"path"`
	OpDepth      int               `yaml:"op_depth"`
	Kind         string            `yaml:"kind"`
	Revision     int64             `yaml:"revision"`
	ReposRelpath string            `yaml:"repos_relpath"`
	Checksum     string            `yaml:"checksum,omitempty"`
	Props        map[string]string `yaml:"props,omitempty"`
}

// MoveFixture seeds one row in the moves table.
type MoveFixture struct {
	Src     string `yaml:"src"`
	Dst     string `yaml:"dst"`
	OpDepth int    `yaml:"op_depth"`
}

// Drive describes which resolver entry point the scenario exercises.
type Drive struct {
	Op         string `yaml:"op"` // "resolve" | "bump" | "break_move"
	Src        string `yaml:"src,omitempty"`
	Dst        string `yaml:"dst,omitempty"`
	SrcOpDepth int    `yaml:"src_op_depth,omitempty"`
	Operation  string `yaml:"operation,omitempty"` // "update" | "switch"
	OldRev     int64  `yaml:"old_revision,omitempty"`
	NewRev     int64  `yaml:"new_revision,omitempty"`
	Depth      string `yaml:"depth,omitempty"` // bump: "empty" | "files" | "infinity"
}

// Assertion types a scenario can declare against the drive's outcome.
const (
	AssertError           = "error"
	AssertNotification    = "notification"
	AssertWorkItem        = "work_item"
	AssertConflict        = "conflict"
	AssertNoConflict      = "no_conflict"
	AssertProps           = "props"
	AssertNoPropsOverride = "no_props_override"
)

// Assertion validates one aspect of the drive's result. Only the
// fields relevant to Type need to be set; zero fields are treated as
// "don't care" for every field except Type itself.
type Assertion struct {
	Type         string            `yaml:"type"`
	Code         string            `yaml:"code,omitempty"`          // error
	Path         string            `yaml:"path,omitempty"`          // notification, work_item, conflict, no_conflict, props
	Action       string            `yaml:"action,omitempty"`        // notification, conflict
	Kind         string            `yaml:"kind,omitempty"`          // notification, work_item
	ContentState string            `yaml:"content_state,omitempty"` // notification
	PropState    string            `yaml:"prop_state,omitempty"`    // notification
	Reason       string            `yaml:"reason,omitempty"`        // conflict
	Count        *int              `yaml:"count,omitempty"`         // notification, work_item: exact count if set
	Props        map[string]string `yaml:"props,omitempty"`         // props: expected ActualProps at path
}

// Scenario is one self-contained update-move conformance case: a node
// store fixture, an optional on-disk obstruction, one resolver drive,
// and the assertions that must hold afterward.
type Scenario struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Locks       []string          `yaml:"locks"`
	Nodes       []NodeFixture     `yaml:"nodes"`
	Moves       []MoveFixture     `yaml:"moves,omitempty"`
	Disk        map[string]string `yaml:"disk,omitempty"`
	// Pristine seeds content-addressed pristine store entries before
	// the drive runs, keyed by a symbolic label. A NodeFixture.Checksum
	// of the form "pristine:<label>" is resolved to the checksum the
	// store actually assigned that content (the real sha1, computed by
	// the pristine store itself), so a scenario never has to carry a
	// hand-computed digest.
	Pristine   map[string]string `yaml:"pristine,omitempty"`
	Drive      Drive             `yaml:"drive"`
	Assertions []Assertion       `yaml:"assertions"`
}

// LoadScenario reads and strictly parses a scenario fixture file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("harness: reading %s: %w", path, err)
	}

	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("harness: parsing %s: %w", path, err)
	}

	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("harness: %s: %w", path, err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Drive.Op == "" {
		return fmt.Errorf("drive.op is required")
	}
	switch s.Drive.Op {
	case "resolve", "bump", "break_move":
	default:
		return fmt.Errorf("drive.op %q is not one of resolve|bump|break_move", s.Drive.Op)
	}
	for i, n := range s.Nodes {
		if n.Path == "" {
			return fmt.Errorf("nodes[%d]: path is required", i)
		}
		switch model.Kind(n.Kind) {
		case model.KindFile, model.KindDir:
		default:
			return fmt.Errorf("nodes[%d]: kind %q is not file|dir", i, n.Kind)
		}
		if label, ok := strings.CutPrefix(n.Checksum, pristineRefPrefix); ok {
			if _, ok := s.Pristine[label]; !ok {
				return fmt.Errorf("nodes[%d]: checksum references unknown pristine label %q", i, label)
			}
		}
	}
	for i, a := range s.Assertions {
		switch a.Type {
		case AssertError, AssertNotification, AssertWorkItem, AssertConflict, AssertNoConflict, AssertProps, AssertNoPropsOverride:
		default:
			return fmt.Errorf("assertions[%d]: unknown type %q", i, a.Type)
		}
	}
	return nil
}
