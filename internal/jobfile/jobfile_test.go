package jobfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/nexcron/internal/cron"
	"github.com/aatumaykin/nexcron/internal/job"
)

const sample = `
jobs:
  - name: backup
    schedule: "0 3 * * *"
    command: /usr/local/bin/backup.sh
    priority: 10
    timeout: 30m
    workdir: /srv
    env:
      TARGET: s3://bucket
      MODE: full
  - name: heartbeat
    schedule: "*/5 * * * *"
    command: touch /tmp/alive
    timeout: 20
  - name: legacy
    schedule: "0 0 1 * *"
    command: "true"
    enabled: false
`

func TestDecode(t *testing.T) {
	defs, err := Decode(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, defs, 3)

	backup := defs[0]
	assert.Equal(t, "backup", backup.Name)
	assert.Equal(t, 10, backup.Priority)
	assert.Equal(t, Duration(30*time.Minute), backup.Timeout)
	assert.True(t, backup.IsEnabled())

	assert.Equal(t, Duration(20*time.Second), defs[1].Timeout)
	assert.False(t, defs[2].IsEnabled())
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{"missing name", "jobs:\n  - schedule: '* * * * *'\n    command: x\n", "name is required"},
		{"missing command", "jobs:\n  - name: a\n    schedule: '* * * * *'\n", "command is required"},
		{"unknown field", "jobs:\n  - name: a\n    command: x\n    shedule: '* * * * *'\n", "shedule"},
		{"bad timeout", "jobs:\n  - name: a\n    command: x\n    timeout: soon\n", "invalid timeout"},
		{"negative timeout", "jobs:\n  - name: a\n    command: x\n    timeout: -5\n", "negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDecode_Empty(t *testing.T) {
	defs, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, defs)
}

func TestLoadAndRegister(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0644))

	defs, err := Load(path)
	require.NoError(t, err)

	reg := job.NewRegistry()
	require.NoError(t, Register(reg, defs))
	assert.Equal(t, 3, reg.Len())

	d, ok := reg.Get("backup")
	require.True(t, ok)
	assert.Equal(t, 30*time.Minute, d.Timeout)

	cmd, ok := d.Job.(*job.CommandJob)
	require.True(t, ok)
	assert.Equal(t, "/srv", cmd.Dir)
	assert.Equal(t, []string{"MODE=full", "TARGET=s3://bucket"}, cmd.Env)

	due := reg.DueJobs(time.Date(2024, 3, 11, 3, 0, 0, 0, time.UTC))
	require.Len(t, due, 2)
	assert.Equal(t, "heartbeat", due[0].Name)
	assert.Equal(t, "backup", due[1].Name)
}

func TestRegister_InvalidSchedule(t *testing.T) {
	defs := []Definition{{Name: "bad", Schedule: "* * *", Command: "true"}}
	err := Register(job.NewRegistry(), defs)
	assert.ErrorIs(t, err, cron.ErrInvalidExpression)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "read job file")
}
