package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvents_Table(t *testing.T) {
	out, err := execute(t, "events", "--db", seededDatabase(t), "--table", "sheet")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "#0 journal item[0]: unit -> string(rent)")
	assert.Contains(t, lines[3], "#0 journal total[0]: unit -> long(1500)")
}

func TestEvents_PassJSON(t *testing.T) {
	dbPath := seededDatabase(t)
	out, err := execute(t, "--format", "json", "events", "--db", dbPath, "--table", "sheet")
	require.NoError(t, err)

	var all struct {
		Data []EventRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &all))
	require.Len(t, all.Data, 4)

	out, err = execute(t, "--format", "json", "events", "--db", dbPath, "--pass", all.Data[0].Pass)
	require.NoError(t, err)

	var seed struct {
		Data []EventRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &seed))
	require.Len(t, seed.Data, 3)
	for i, ev := range seed.Data {
		assert.Equal(t, int64(i), ev.Seq)
		assert.Equal(t, JournalName, ev.Listener)
	}
	assert.Equal(t, []string{"cost"}, seed.Data[1].Header)
	assert.Equal(t, "long", seed.Data[1].New["kind"])
	assert.Equal(t, "unit", seed.Data[1].Old["kind"])
}

func TestEvents_UnknownPass(t *testing.T) {
	out, err := execute(t, "events", "--db", seededDatabase(t), "--pass", "nope")
	require.NoError(t, err)
	assert.Equal(t, "No events found.\n", out)
}

func TestEvents_FlagRules(t *testing.T) {
	dbPath := seededDatabase(t)

	_, err := execute(t, "events", "--db", dbPath)
	require.Error(t, err)

	_, err = execute(t, "events", "--db", dbPath, "--table", "sheet", "--limit", "-1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestEvents_Narrowed(t *testing.T) {
	dbPath := seededDatabase(t)

	out, err := execute(t, "events", "--db", dbPath, "--table", "sheet", "--row", "1")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "journal cost[1]: unit -> long(300)")

	out, err = execute(t, "events", "--db", dbPath, "--table", "sheet", "--limit", "2")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 2)

	out, err = execute(t, "events", "--db", dbPath, "--table", "sheet", "--listener", "other")
	require.NoError(t, err)
	assert.Equal(t, "No events found.\n", out)
}
