package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// notificationSnapshot is the deterministic subset of a notification
// record: IDs are assigned from google/uuid and vary run to run, so
// they're excluded from the golden comparison.
type notificationSnapshot struct {
	Path         string `json:"path"`
	Action       string `json:"action"`
	Kind         string `json:"kind"`
	ContentState string `json:"content_state"`
	PropState    string `json:"prop_state"`
	OldRevision  int64  `json:"old_revision"`
	NewRevision  int64  `json:"new_revision"`
	Seq          int64  `json:"seq"`
}

type workItemSnapshot struct {
	Kind         string `json:"kind"`
	Path         string `json:"path"`
	FromPristine string `json:"from_pristine,omitempty"`
	RecordInfo   bool   `json:"record_info"`
	Seq          int64  `json:"seq"`
}

// TraceSnapshot is the canonical, ID-free projection of a Result used
// for golden-file comparison.
type TraceSnapshot struct {
	ScenarioName  string                 `json:"scenario_name"`
	DriveFailed   bool                   `json:"drive_failed"`
	Notifications []notificationSnapshot `json:"notifications"`
	WorkItems     []workItemSnapshot     `json:"work_items"`
}

func snapshot(name string, result *Result) TraceSnapshot {
	notifications := make([]notificationSnapshot, 0, len(result.Notifications))
	for _, n := range result.Notifications {
		notifications = append(notifications, notificationSnapshot{
			Path:         n.Path,
			Action:       string(n.Action),
			Kind:         string(n.Kind),
			ContentState: string(n.ContentState),
			PropState:    string(n.PropState),
			OldRevision:  n.OldRevision,
			NewRevision:  n.NewRevision,
			Seq:          n.Seq,
		})
	}
	items := make([]workItemSnapshot, 0, len(result.WorkItems))
	for _, it := range result.WorkItems {
		items = append(items, workItemSnapshot{
			Kind:         string(it.Kind),
			Path:         it.Path,
			FromPristine: it.FromPristine,
			RecordInfo:   it.RecordInfo,
			Seq:          it.Seq,
		})
	}
	return TraceSnapshot{
		ScenarioName:  name,
		DriveFailed:   result.DriveErr != nil,
		Notifications: notifications,
		WorkItems:     items,
	}
}

// AssertGolden compares result's deterministic projection against the
// golden file testdata/golden/<name>.golden.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	data, err := json.MarshalIndent(snapshot(name, result), "", "  ")
	if err != nil {
		t.Fatalf("harness: marshalling snapshot for %s: %v", name, err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}

// RunWithGolden runs scenario and compares its result against its
// golden file in one call.
func RunWithGolden(t *testing.T, scenario *Scenario) *Result {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		t.Fatalf("harness: running scenario %s: %v", scenario.Name, err)
	}
	AssertGolden(t, scenario.Name, result)
	return result
}
