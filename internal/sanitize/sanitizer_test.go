package sanitize

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"invoicesync/pkg/models"
)

type patchCall struct {
	ID    string
	Field models.Field
	Body  string
}

// fakePatcher records patches and fails for IDs listed in failFor.
type fakePatcher struct {
	mu      sync.Mutex
	calls   []patchCall
	failFor map[string]bool
}

func (p *fakePatcher) PatchField(ctx context.Context, id string, field models.Field, value any) error {
	body, err := json.Marshal(models.WireValue(field, value))
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, patchCall{ID: id, Field: field, Body: string(body)})
	if p.failFor[id] {
		return errors.New("permission denied")
	}
	return nil
}

func rawCollection(t *testing.T, doc string) models.RawCollection {
	t.Helper()
	var c models.RawCollection
	require.NoError(t, json.Unmarshal([]byte(doc), &c))
	return c
}

func TestNormalize(t *testing.T) {
	legacy := func(text string) string {
		return `{"text":"` + text + `","timestamp":"` + models.LegacyCommentTimestamp + `"}`
	}

	tests := []struct {
		name        string
		raw         string
		wantChanged bool
		want        string
	}{
		{name: "absent", raw: ``, wantChanged: false},
		{name: "null", raw: `null`, wantChanged: false},
		{name: "empty array", raw: `[]`, wantChanged: false},
		{name: "well formed", raw: `[{"text":"a","timestamp":"2024-01-01T00:00:00Z"}]`, wantChanged: false},
		{name: "legacy strings", raw: `["old note", {"text":"b","timestamp":"t"}]`, wantChanged: true,
			want: `[` + legacy("old note") + `,{"text":"b","timestamp":"t"}]`},
		{name: "blank strings dropped", raw: `["  ", "x"]`, wantChanged: true, want: `[` + legacy("x") + `]`},
		{name: "junk entries dropped", raw: `[1, null, true, [], {"text":"k","timestamp":"t"}]`, wantChanged: true,
			want: `[{"text":"k","timestamp":"t"}]`},
		{name: "object without text dropped", raw: `[{"note":"x"}, {"text":"ok","timestamp":"t"}]`, wantChanged: true,
			want: `[{"text":"ok","timestamp":"t"}]`},
		{name: "object with non-string text dropped", raw: `[{"text":5,"timestamp":"t"}, {"text":"ok","timestamp":"t"}]`, wantChanged: true,
			want: `[{"text":"ok","timestamp":"t"}]`},
		{name: "object with blank text dropped", raw: `[{"text":"  ","timestamp":"t"}, {"text":null}]`, wantChanged: true, want: `[]`},
		{name: "missing timestamp becomes legacy", raw: `[{"text":"a"}]`, wantChanged: true, want: `[` + legacy("a") + `]`},
		{name: "non-string timestamp becomes legacy", raw: `[{"text":"a","timestamp":1700000000}, {"text":"b","timestamp":null}]`, wantChanged: true,
			want: `[` + legacy("a") + `,` + legacy("b") + `]`},
		{name: "bare string", raw: `"single"`, wantChanged: true, want: `[` + legacy("single") + `]`},
		{name: "blank bare string", raw: `"   "`, wantChanged: true, want: `[]`},
		{name: "number", raw: `42`, wantChanged: true, want: `[]`},
		{name: "boolean", raw: `false`, wantChanged: true, want: `[]`},
		{name: "plain object", raw: `{"text":"a"}`, wantChanged: true, want: `[]`},
		{name: "empty object", raw: `{}`, wantChanged: true, want: `[]`},
		{name: "sparse array", raw: `{"2":"later","0":{"text":"first","timestamp":"t"}}`, wantChanged: true,
			want: `[{"text":"first","timestamp":"t"},` + legacy("later") + `]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := Normalize(json.RawMessage(tt.raw))
			assert.Equal(t, tt.wantChanged, changed)
			if !tt.wantChanged {
				assert.Nil(t, got)
				return
			}
			data, err := json.Marshal(got)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestNormalize_ObjectEntriesPassThroughVerbatim(t *testing.T) {
	entry := `{"timestamp":"t","text":"kept","extra":1}`
	got, changed := Normalize(json.RawMessage(`["legacy",` + entry + `]`))

	require.True(t, changed)
	require.Len(t, got, 2)
	assert.Equal(t, entry, string(got[1]))
}

func TestSanitize_CorrectsAndPersists(t *testing.T) {
	collection := rawCollection(t, `{
		"inv1": {"store": "X", "comment": ["Called supplier"]},
		"inv2": {"store": "Y", "comment": [{"text": "ok", "timestamp": "2024-02-01T10:00:00Z"}]},
		"inv3": {"store": "Z", "comment": 7},
		"inv4": {"store": "W"}
	}`)
	patcher := &fakePatcher{}

	result := New(patcher, DefaultConfig()).Sanitize(context.Background(), collection)

	assert.Equal(t, []string{"inv1", "inv3"}, result.Corrected)
	assert.Empty(t, result.PersistFailed)

	// In-memory collection is corrected.
	inv1 := models.DecodeRecord("inv1", collection["inv1"])
	assert.Equal(t, []models.Comment{{Text: "Called supplier", Timestamp: models.LegacyCommentTimestamp}}, inv1.Comment)
	assert.JSONEq(t, `[]`, string(collection["inv3"]["comment"]))
	_, present := collection["inv4"]["comment"]
	assert.False(t, present)

	// Each correction is written back as a single-field patch.
	require.Len(t, patcher.calls, 2)
	bodies := map[string]string{}
	for _, c := range patcher.calls {
		assert.Equal(t, models.FieldComment, c.Field)
		bodies[c.ID] = c.Body
	}
	assert.JSONEq(t, `[{"text":"Called supplier","timestamp":"2023-01-01T00:00:00Z"}]`, bodies["inv1"])
	assert.JSONEq(t, `[]`, bodies["inv3"])
}

func TestSanitize_PersistsRepairedObjectEntries(t *testing.T) {
	collection := rawCollection(t, `{
		"inv1": {"store": "X", "comment": [{"note": "x"}, {"text": 5, "timestamp": "2024-01-01T00:00:00Z"}, {"text": "ok", "timestamp": "2024-02-01T10:00:00Z"}]},
		"inv2": {"store": "Y", "comment": [{"text": "undated"}]}
	}`)
	patcher := &fakePatcher{}

	result := New(patcher, DefaultConfig()).Sanitize(context.Background(), collection)

	assert.Equal(t, []string{"inv1", "inv2"}, result.Corrected)
	require.Len(t, patcher.calls, 2)
	bodies := map[string]string{}
	for _, c := range patcher.calls {
		bodies[c.ID] = c.Body
	}
	assert.JSONEq(t, `[{"text":"ok","timestamp":"2024-02-01T10:00:00Z"}]`, bodies["inv1"])
	assert.JSONEq(t, `[{"text":"undated","timestamp":"2023-01-01T00:00:00Z"}]`, bodies["inv2"])

	inv1 := models.DecodeRecord("inv1", collection["inv1"])
	assert.Equal(t, []models.Comment{{Text: "ok", Timestamp: "2024-02-01T10:00:00Z"}}, inv1.Comment)
}

func TestSanitize_Idempotent(t *testing.T) {
	collection := rawCollection(t, `{
		"a": {"comment": ["x", "", 3]},
		"b": {"comment": {"0": "y"}},
		"c": {"comment": "z"}
	}`)
	s := New(&fakePatcher{}, DefaultConfig())

	first := s.Sanitize(context.Background(), collection)
	require.Len(t, first.Corrected, 3)

	snapshot := map[string]string{}
	for id, r := range collection {
		snapshot[id] = string(r["comment"])
	}

	patcher := &fakePatcher{}
	second := New(patcher, DefaultConfig()).Sanitize(context.Background(), collection)

	assert.Empty(t, second.Corrected)
	assert.Empty(t, patcher.calls)
	for id, r := range collection {
		assert.Equal(t, snapshot[id], string(r["comment"]))
	}
}

func TestSanitize_PersistFailureIsNotFatal(t *testing.T) {
	collection := rawCollection(t, `{
		"ok": {"comment": "note"},
		"denied": {"comment": "note"}
	}`)
	patcher := &fakePatcher{failFor: map[string]bool{"denied": true}}

	result := New(patcher, Config{Workers: 1}).Sanitize(context.Background(), collection)

	assert.Equal(t, []string{"denied", "ok"}, result.Corrected)
	require.Len(t, result.PersistFailed, 1)
	assert.EqualError(t, result.PersistFailed["denied"], "permission denied")
	assert.Len(t, patcher.calls, 2)

	// The in-memory correction stands despite the failed write.
	denied := models.DecodeRecord("denied", collection["denied"])
	assert.Equal(t, "note", denied.Comment[0].Text)
}

func TestSanitize_NothingToDo(t *testing.T) {
	patcher := &fakePatcher{}
	result := New(patcher, DefaultConfig()).Sanitize(context.Background(), models.RawCollection{})

	assert.Empty(t, result.Corrected)
	assert.NotNil(t, result.PersistFailed)
	assert.Empty(t, patcher.calls)
}

func TestSanitize_LegacyRoundTrip(t *testing.T) {
	collection := rawCollection(t, `{"A": {"comment": ["hello"]}}`)
	s := New(&fakePatcher{}, DefaultConfig())

	s.Sanitize(context.Background(), collection)
	want := `[{"text":"hello","timestamp":"2023-01-01T00:00:00Z"}]`
	assert.JSONEq(t, want, string(collection["A"]["comment"]))

	again := s.Sanitize(context.Background(), collection)
	assert.Empty(t, again.Corrected)
	assert.JSONEq(t, want, string(collection["A"]["comment"]))
}
