package notify

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/svnmove/internal/model"
)

func TestCollectingSink_AccumulatesInOrder(t *testing.T) {
	sink := &CollectingSink{}

	require.NoError(t, sink.Notify(model.NotificationRecord{Path: "a", Seq: 1}))
	require.NoError(t, sink.Notify(model.NotificationRecord{Path: "b", Seq: 2}))

	require.Len(t, sink.Records, 2)
	assert.Equal(t, "a", sink.Records[0].Path)
	assert.Equal(t, "b", sink.Records[1].Path)
}

func TestWriterSink_FormatsEachActionDistinctly(t *testing.T) {
	var buf bytes.Buffer
	sink := NewWriterSink(&buf)

	require.NoError(t, sink.Notify(model.NotificationRecord{Path: "added", Action: model.NotifyAdd}))
	require.NoError(t, sink.Notify(model.NotificationRecord{Path: "removed", Action: model.NotifyDelete}))
	require.NoError(t, sink.Notify(model.NotificationRecord{Path: "conflicted", Action: model.NotifyTreeConflict}))
	require.NoError(t, sink.Notify(model.NotificationRecord{
		Path: "updated", Action: model.NotifyUpdate,
		ContentState: model.StateMerged, PropState: model.StateUnchanged,
	}))

	out := buf.String()
	assert.Contains(t, out, "A added\n")
	assert.Contains(t, out, "D removed\n")
	assert.Contains(t, out, "C conflicted\n")
	assert.Contains(t, out, "U updated (content=merged, prop=unchanged)\n")
}
