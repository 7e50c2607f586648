package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendListEvents(t *testing.T) {
	t.Parallel()
	s := NewTestStore(t)

	require.NoError(t, s.AppendEvent("ex000001", "status_update", []byte(`{"status":"running"}`)))
	require.NoError(t, s.AppendEvent("ex000001", "phase_start", []byte(`{"phase_id":"analyze"}`)))
	require.NoError(t, s.AppendEvent("ex000002", "status_update", nil))

	got, err := s.ListEvents("ex000001", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "status_update", got[0].EventType)
	assert.Equal(t, "phase_start", got[1].EventType)
	assert.JSONEq(t, `{"phase_id":"analyze"}`, got[1].Data)

	limited, err := s.ListEvents("ex000001", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestLatestEventByType(t *testing.T) {
	t.Parallel()
	s := NewTestStore(t)

	none, err := s.LatestEventByType("ex000001", "todo_update")
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, s.AppendEvent("ex000001", "todo_update", []byte(`{"todos":[{"content":"a"}]}`)))
	require.NoError(t, s.AppendEvent("ex000001", "status_update", []byte(`{"status":"running"}`)))
	require.NoError(t, s.AppendEvent("ex000001", "todo_update", []byte(`{"todos":[{"content":"b"}]}`)))
	require.NoError(t, s.AppendEvent("ex000002", "todo_update", []byte(`{"todos":[{"content":"other"}]}`)))

	got, err := s.LatestEventByType("ex000001", "todo_update")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "todo_update", got.EventType)
	assert.JSONEq(t, `{"todos":[{"content":"b"}]}`, got.Data)
}

func TestApprovalLogAppendOnly(t *testing.T) {
	t.Parallel()
	s := NewTestStore(t)

	base := time.Now()
	require.NoError(t, s.AppendApproval(&ApprovalRecord{
		ID: "ap000001", ExecutionID: "ex000001", PhaseID: "implement",
		Action: ApprovalApproved, Source: SourceWeb, CreatedAt: base,
	}))
	require.NoError(t, s.AppendApproval(&ApprovalRecord{
		ID: "ap000002", ExecutionID: "ex000001", PhaseID: "review",
		Action: ApprovalTimeout, Source: SourceTimeout, CreatedAt: base.Add(time.Second),
	}))

	got, err := s.ListApprovals("ex000001")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ApprovalApproved, got[0].Action)
	assert.Equal(t, ApprovalTimeout, got[1].Action)
	assert.Equal(t, SourceTimeout, got[1].Source)
}
