package factory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myowjaYOY/program-tracker-sub004/schedule"
	"github.com/myowjaYOY/program-tracker-sub004/schedule/store"
)

const kneeJSON = `{
	"id": "rehab-knee",
	"name": "Knee rehabilitation",
	"start_date": "2024-01-01",
	"items": [
		{
			"id": "physio",
			"name": "Physiotherapy session",
			"repeat_count": 5,
			"offset_days": 10,
			"spacing_days": 7,
			"tasks": [{"id": "physio-notes", "name": "Send notes", "delay_days": 1}]
		},
		{"id": "xray", "name": "X-ray", "repeat_count": 1, "active": false}
	]
}`

func TestParseProgram_Defaults(t *testing.T) {
	// GIVEN: A template without status and with one inactive item
	// WHEN: Parsing it
	// THEN: Status defaults to active and the active flag is honoured

	f := NewProgramFactory()
	tpl, err := f.ParseProgram(kneeJSON)
	require.NoError(t, err)

	assert.Equal(t, schedule.ProgramID("rehab-knee"), tpl.Program.ID)
	assert.Equal(t, schedule.StatusActive, tpl.Program.Status)
	assert.Equal(t, "2024-01-01", tpl.Program.StartDate.String())
	require.Len(t, tpl.Items, 2)

	physio := tpl.Items[0]
	assert.True(t, physio.Active)
	assert.Equal(t, 5, physio.RepeatCount)
	require.Len(t, physio.Tasks, 1)
	assert.Equal(t, schedule.ItemID("physio"), physio.Tasks[0].ItemID)
	assert.Equal(t, 1, physio.Tasks[0].DelayDays)

	assert.False(t, tpl.Items[1].Active)
}

func TestParseProgram_GeneratesMissingIDs(t *testing.T) {
	n := 0
	f := &ProgramFactory{NewID: func() string {
		n++
		return "gen-" + string(rune('0'+n))
	}}

	tpl, err := f.ParseProgram(`{"name":"p","start_date":"2024-03-01","items":[{"name":"i","repeat_count":2,"spacing_days":1}]}`)
	require.NoError(t, err)
	assert.Equal(t, schedule.ProgramID("gen-1"), tpl.Program.ID)
	assert.Equal(t, schedule.ItemID("gen-2"), tpl.Items[0].ID)
	assert.Equal(t, schedule.ProgramID("gen-1"), tpl.Items[0].ProgramID)
}

func TestParseProgram_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		json  string
		field string
	}{
		{"missing name", `{"start_date":"2024-01-01"}`, "name"},
		{"bad date", `{"name":"p","start_date":"01/02/2024"}`, "start_date"},
		{"bad status", `{"name":"p","start_date":"2024-01-01","status":"archived"}`, "status"},
		{"zero repeat", `{"name":"p","start_date":"2024-01-01","items":[{"id":"a","repeat_count":0}]}`, "repeat_count"},
		{"negative spacing", `{"name":"p","start_date":"2024-01-01","items":[{"id":"a","repeat_count":2,"spacing_days":-1}]}`, "spacing_days"},
		{"duplicate task", `{"name":"p","start_date":"2024-01-01","items":[
			{"id":"a","repeat_count":1,"tasks":[{"id":"t"}]},
			{"id":"b","repeat_count":1,"tasks":[{"id":"t"}]}]}`, "task_id"},
		{"duplicate item", `{"name":"p","start_date":"2024-01-01","items":[
			{"id":"a","repeat_count":1},
			{"id":"a","repeat_count":2}]}`, "item_id"},
	}

	f := NewProgramFactory()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ParseProgram(tt.json)
			require.Error(t, err)

			var ve *schedule.ValidationError
			require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestParseProgram_MalformedJSON(t *testing.T) {
	_, err := NewProgramFactory().ParseProgram(`{"name":`)
	require.Error(t, err)
	assert.False(t, errors.Is(err, schedule.ErrValidation))
}

func TestToJSON_RoundTrip(t *testing.T) {
	f := NewProgramFactory()
	tpl, err := f.ParseProgram(kneeJSON)
	require.NoError(t, err)

	again, err := f.FromJSON(f.ToJSON(tpl.Program, tpl.Items))
	require.NoError(t, err)
	assert.Equal(t, tpl, again)
}

func TestImport(t *testing.T) {
	// GIVEN: A parsed template
	// WHEN: Importing it into a store
	// THEN: Program and items are stored with the import timestamp

	ctx := context.Background()
	mem := store.NewMemory()
	f := NewProgramFactory()
	tpl, err := f.ParseProgram(kneeJSON)
	require.NoError(t, err)

	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, f.Import(ctx, mem, tpl, now))

	p, err := mem.GetProgram(ctx, "rehab-knee")
	require.NoError(t, err)
	assert.Equal(t, now, p.CreatedAt)

	items, err := mem.ListItems(ctx, "rehab-knee")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, now, items[0].UpdatedAt)
	assert.Len(t, items[0].Tasks, 1)
}

func TestImport_ExistingProgramRejected(t *testing.T) {
	// GIVEN: A completed program already in the store
	// WHEN: Importing a template with the same ID
	// THEN: AlreadyExistsError and the stored program is unchanged

	ctx := context.Background()
	mem := store.NewMemory()
	f := NewProgramFactory()
	tpl, err := f.ParseProgram(kneeJSON)
	require.NoError(t, err)

	first := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, f.Import(ctx, mem, tpl, first))
	p, err := mem.GetProgram(ctx, "rehab-knee")
	require.NoError(t, err)
	p.Status = schedule.StatusCompleted
	require.NoError(t, mem.SaveProgram(ctx, p))

	err = f.Import(ctx, mem, tpl, first.Add(time.Hour))

	var ae *schedule.AlreadyExistsError
	require.True(t, errors.As(err, &ae), "expected AlreadyExistsError, got %v", err)
	assert.Equal(t, "rehab-knee", ae.ID)
	assert.ErrorIs(t, err, schedule.ErrAlreadyExists)
	assert.False(t, schedule.IsRetryable(err))

	stored, err := mem.GetProgram(ctx, "rehab-knee")
	require.NoError(t, err)
	assert.Equal(t, schedule.StatusCompleted, stored.Status)
	assert.Equal(t, first, stored.UpdatedAt)
}
