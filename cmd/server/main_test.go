package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myowjaYOY/program-tracker-sub004/schedule"
	"github.com/myowjaYOY/program-tracker-sub004/store/sqlite"
)

func seedDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracker.db")

	st, err := sqlite.New(path)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, st.SaveProgram(ctx, schedule.Program{
		ID: "rehab", Name: "Rehab", StartDate: schedule.MustParseDate("2024-01-01"), Status: schedule.StatusActive,
	}))
	require.NoError(t, st.SaveItem(ctx, schedule.ProgramItem{
		ID: "consult", ProgramID: "rehab", Name: "Consult", RepeatCount: 2, OffsetDays: 28, SpacingDays: 28,
		Active: true, CreatedAt: now, UpdatedAt: now,
	}))
	return path
}

func TestRegenerateCommand(t *testing.T) {
	// GIVEN: A database with one program and one two-repeat item
	// WHEN: Running "tracker regenerate" twice
	// THEN: The first run creates both instances, the second creates none

	db := seedDB(t)

	run := func() string {
		var out bytes.Buffer
		cmd := newRootCommand()
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs([]string{"regenerate", "--db", db, "--program", "rehab", "--log-level", "error"})
		require.NoError(t, cmd.Execute())
		return out.String()
	}

	assert.Contains(t, run(), "program rehab (full): 1 item(s), 2 created, 0 updated, 0 removed")
	assert.Contains(t, run(), "0 created")
}

func TestRegenerateCommand_Errors(t *testing.T) {
	db := seedDB(t)

	for _, args := range [][]string{
		{"regenerate", "--db", db, "--program", "rehab", "--mode", "sometimes"},
		{"regenerate", "--db", db, "--program", "ghost"},
		{"regenerate", "--db", db},
	} {
		cmd := newRootCommand()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(args)
		assert.Error(t, cmd.Execute(), args)
	}
}
