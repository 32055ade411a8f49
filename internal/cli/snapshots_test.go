package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededDatabase(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "budget.db")
	_, err := execute(t, "run", writeWorkbook(t), "--db", dbPath)
	require.NoError(t, err)
	return dbPath
}

func TestSnapshots_List(t *testing.T) {
	out, err := execute(t, "snapshots", "--db", seededDatabase(t))
	require.NoError(t, err)
	assert.Contains(t, out, "sheet")
	assert.Contains(t, out, "seq 1")
}

func TestSnapshots_Show(t *testing.T) {
	out, err := execute(t, "snapshots", "--db", seededDatabase(t), "--show", "sheet")
	require.NoError(t, err)
	assert.Contains(t, out, "snapshot sheet seq 1")
	assert.Contains(t, out, "  cost[1] = long(300)")
	assert.Contains(t, out, "  total[0] = long(1500)")
}

func TestSnapshots_ShowJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "snapshots", "--db", seededDatabase(t), "--show", "sheet")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Table TableReport `json:"table"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "sheet", resp.Data.Table.Name)
	assert.Len(t, resp.Data.Table.Cells, 4)
}

func TestSnapshots_UnknownTable(t *testing.T) {
	_, err := execute(t, "snapshots", "--db", seededDatabase(t), "--show", "ledger")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `no snapshot for table "ledger"`)
}

func TestSnapshots_MissingDatabase(t *testing.T) {
	_, err := execute(t, "snapshots", "--db", filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "database not found")
}

func TestSnapshots_RequiresDatabase(t *testing.T) {
	_, err := execute(t, "snapshots")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "db" not set`)
}
