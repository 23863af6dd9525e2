package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskDecodesServerPayload(t *testing.T) {
	raw := `{"id": 7, "title": "A", "description": "d", "priority": "high",
		"status": "in-progress", "deadline": "2030-05-01", "created_at": "2030-04-01T10:00:00Z", "user": 3}`

	var task Task
	require.NoError(t, json.Unmarshal([]byte(raw), &task))

	assert.Equal(t, TaskID("7"), task.ID)
	assert.Equal(t, PriorityHigh, task.Priority)
	assert.Equal(t, StatusInProgress, task.Status)
	assert.Equal(t, "2030-05-01", task.Deadline.String())
	assert.Equal(t, "5/1/2030", task.Deadline.Format("1/2/2006"))
	require.NotNil(t, task.CreatedAt)
}

func TestTaskIDKeepsShape(t *testing.T) {
	b, err := json.Marshal(TaskID("42"))
	require.NoError(t, err)
	assert.Equal(t, `42`, string(b))

	b, err = json.Marshal(TaskID("a1b2"))
	require.NoError(t, err)
	assert.Equal(t, `"a1b2"`, string(b))

	var id TaskID
	require.NoError(t, json.Unmarshal([]byte(`"a1b2"`), &id))
	assert.Equal(t, TaskID("a1b2"), id)

	assert.Error(t, json.Unmarshal([]byte(`{}`), &id))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2031-12-24T23:30:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, "2031-12-24", d.String())

	_, err = ParseDate("24/12/2031")
	assert.Error(t, err)

	assert.Equal(t, "", Date{}.Format("1/2/2006"))
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "On Hold", StatusHold.Label())
	assert.Equal(t, "Yet to Start", StatusYetToStart.Label())
	assert.Equal(t, "Medium", PriorityMedium.Label())
	assert.False(t, Priority("urgent").Valid())
	assert.True(t, StatusCompleted.Valid())
}

func TestDraftDefaultsAndMissing(t *testing.T) {
	d := NewDraft()
	assert.Equal(t, PriorityLow, d.Priority)
	assert.Equal(t, StatusYetToStart, d.Status)
	assert.Equal(t, []string{FieldTitle, FieldDescription, FieldDeadline}, d.Missing())

	assert.True(t, d.Set(FieldTitle, "Write report"))
	assert.True(t, d.Set(FieldDescription, "Quarterly"))
	assert.True(t, d.Set(FieldDeadline, "2030-01-01"))
	assert.False(t, d.Set("owner", "bob"))
	assert.Empty(t, d.Missing())

	d.Set(FieldPriority, "")
	assert.Equal(t, []string{FieldPriority}, d.Missing())
}
