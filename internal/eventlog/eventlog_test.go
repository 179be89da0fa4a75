package eventlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWriteProducesNDJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(map[Stream]io.Writer{StreamValidation: &buf})

	l.Write(StreamValidation, "quote_validated", zap.String("session_id", "s-1"), zap.Bool("is_valid", true))
	l.Write(StreamValidation, "quote_validated", zap.String("session_id", "s-2"), zap.Bool("is_valid", false))
	l.Write(StreamAlerts, "dropped")

	scanner := bufio.NewScanner(&buf)
	var lines []map[string]any
	for scanner.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "quote_validated", lines[0]["event"])
	assert.Equal(t, "validation", lines[0]["stream"])
	assert.Equal(t, "s-2", lines[1]["session_id"])
	assert.Equal(t, false, lines[1]["is_valid"])
}

func TestOpenAppends(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir)
	require.NoError(t, err)
	l.Write(StreamHealth, "health_report", zap.String("status", "HEALTHY"))
	require.NoError(t, l.Close())

	l, err = Open(dir)
	require.NoError(t, err)
	l.Write(StreamHealth, "health_report", zap.String("status", "WARNING"))
	require.NoError(t, l.Close())

	data, err := os.ReadFile(filepath.Join(dir, "health.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, 2, bytes.Count(data, []byte("\n")))

	for _, s := range Streams {
		_, err := os.Stat(filepath.Join(dir, string(s)+".jsonl"))
		assert.NoError(t, err, "stream %s", s)
	}
}

func TestNilAndNopAreSafe(t *testing.T) {
	var l *Log
	l.Write(StreamCritical, "ignored")
	assert.NoError(t, l.Close())
	Nop().Write(StreamCritical, "ignored")
}
