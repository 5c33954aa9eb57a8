package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeadlineDecodeAbsentForms(t *testing.T) {
	for _, raw := range []string{`null`, `false`, `true`, `""`, `"   "`} {
		var d Deadline
		require.NoError(t, json.Unmarshal([]byte(raw), &d), raw)
		assert.False(t, d.IsSet(), raw)
		out, err := json.Marshal(d)
		require.NoError(t, err)
		assert.Equal(t, "null", string(out), raw)
	}
}

func TestDeadlineKeepsUnparsableString(t *testing.T) {
	var d Deadline
	require.NoError(t, json.Unmarshal([]byte(`"someday"`), &d))
	assert.True(t, d.IsSet())
	_, ok := d.Time()
	assert.False(t, ok)
}

func TestDeadlineFromMillis(t *testing.T) {
	var d Deadline
	require.NoError(t, json.Unmarshal([]byte(`1740832200000`), &d))
	assert.Equal(t, "2025-03-01T12:30:00.000Z", d.String())
}

func TestParseDeadlineBlank(t *testing.T) {
	d, err := ParseDeadline("  ")
	require.NoError(t, err)
	assert.False(t, d.IsSet())

	_, err = ParseDeadline("not a date")
	assert.Error(t, err)
}

func TestAnnotationChecklistUnion(t *testing.T) {
	doc := `{"id":7,"type":"checklist","content":{"id":7,"name":"Release","items":[{"text":"x","done":false},{"text":"y","done":true}],"createdAt":"2025-01-01T00:00:00.000Z","deadline":false},"createdAt":"2025-01-01T00:00:00.000Z","deadline":false}`
	var a Annotation
	require.NoError(t, json.Unmarshal([]byte(doc), &a))
	assert.Equal(t, KindChecklist, a.Kind())
	require.NotNil(t, a.Content.Checklist)
	assert.Equal(t, "Release", a.Summary())
	assert.Len(t, a.Content.Checklist.Items, 2)
	assert.False(t, a.Deadline.IsSet())

	out, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"name":"Release"`)
	assert.Contains(t, string(out), `"deadline":null`)
}

func TestAnnotationTextContent(t *testing.T) {
	var a Annotation
	require.NoError(t, json.Unmarshal([]byte(`{"id":1,"type":"Note","content":"Buy milk","createdAt":"bogus"}`), &a))
	assert.Equal(t, KindText, a.Kind())
	assert.Equal(t, "note", a.Type)
	assert.Equal(t, "Buy milk", a.Summary())
	assert.True(t, a.CreatedAt.IsZero())
}

func TestAnnotationCloneIsDeep(t *testing.T) {
	a := Annotation{ID: 1, Type: "checklist", Content: ChecklistContent(&Checklist{Items: []ChecklistItem{{Text: "x"}}})}
	b := a.Clone()
	b.Content.Checklist.Items[0].Done = true
	assert.False(t, a.Content.Checklist.Items[0].Done)
}

func TestStringsIncludesItems(t *testing.T) {
	a := Annotation{Type: "checklist", Content: ChecklistContent(&Checklist{Name: "n", Items: []ChecklistItem{{Text: "deep item"}}})}
	assert.Contains(t, a.Strings(), "deep item")
}

func TestLineAnnotationRoundTripKeepsLine(t *testing.T) {
	l := LineAnnotation{Annotation: Annotation{ID: 3, Type: "line", Content: TextContent("fix"), CreatedAt: time.Unix(0, 0).UTC()}, Line: 10}
	out, err := json.Marshal(l)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"line":10`)

	var back LineAnnotation
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, 10, back.Line)
	assert.Equal(t, "fix", back.Content.Text)
}

func TestRootToleratesMissingKeysAndKeepsOrder(t *testing.T) {
	var r Root
	require.NoError(t, json.Unmarshal([]byte(`{"files":{"/z":{"notes":[{"id":1,"type":"note","content":"a"}]},"/a":{"notes":[{"id":2,"type":"note","content":"b"}]},"/empty":{"notes":[]}}}`), &r))
	r.Normalize()

	require.NotNil(t, r.Directories)
	require.NotNil(t, r.Lines)
	var keys []string
	for p := r.Files.Oldest(); p != nil; p = p.Next() {
		keys = append(keys, p.Key)
	}
	assert.Equal(t, []string{"/z", "/a"}, keys)
	assert.Equal(t, int64(2), r.MaxID())

	out, err := json.MarshalIndent(&r, "", "  ")
	require.NoError(t, err)
	assert.Less(t, strings.Index(string(out), `"/z"`), strings.Index(string(out), `"/a"`))
}
