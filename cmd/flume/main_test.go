package main

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgs(t *testing.T) {
	name, args := parseArgs([]string{"flume"})
	assert.Equal(t, "", name)
	assert.Nil(t, args)

	name, args = parseArgs([]string{"flume", "run", "-config", "p.yaml"})
	assert.Equal(t, "run", name)
	assert.Equal(t, []string{"-config", "p.yaml"}, args)
}

func TestRunCommandValidation(t *testing.T) {
	cmd := runCommand{}
	assert.Error(t, cmd.Run())
}

const testPipelineYAML = `
name: beep
format:
  sample_rate: 44100
  channels: 2
  bit_depth: 16
nodes:
  - name: tone
    kind: sine
    frequency: 440
    amplitude: 0.5
    limit: 1024
  - name: out
    kind: wav_sink
    path: %q
links:
  - from: tone
    to: out
    bus: ring
    capacity: 4
`

func writePipeline(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wavPath := filepath.Join(dir, "beep.wav")
	cfgPath := filepath.Join(dir, "beep.yaml")
	yaml := fmt.Sprintf(testPipelineYAML, wavPath)
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0o644))
	return cfgPath
}

func TestRunCommandCooperative(t *testing.T) {
	cmd := runCommand{config: writePipeline(t)}
	assert.NoError(t, cmd.Run())
}

func TestRunCommandAsync(t *testing.T) {
	cmd := runCommand{config: writePipeline(t), async: true}
	assert.NoError(t, cmd.Run())
}
