package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/dayplan/internal/alarm"
)

// weekdayYAML is the template most CLI tests import.
const weekdayYAML = `name: weekday
items:
  - title: Wake
    category: routine
    start: "06:30"
    end: "07:00"
    alarm: true
    sound: bell.wav
  - title: Jog
    category: exercise
    start: "07:00"
    end: "08:00"
  - title: Standup
    category: work
    start: "09:00"
    end: "09:15"
`

// seqIDs hands out id-001, id-002, ... across every command of a test.
type seqIDs struct{ n atomic.Int64 }

func (g *seqIDs) Generate() string {
	return fmt.Sprintf("id-%03d", g.n.Add(1))
}

type testEnv struct {
	t          *testing.T
	dir        string
	configPath string
	ids        *seqIDs
	now        func() time.Time
	player     alarm.Player
}

func newTestEnv(t *testing.T, now time.Time) *testEnv {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	cfg := fmt.Sprintf(`user: tester
database: %s
templates_dir: %s
sounds_dir: %s
timezone: UTC
tick_interval: 1s
`, filepath.Join(dir, "data", "dayplan.db"), filepath.Join(dir, "templates"), filepath.Join(dir, "sounds"))
	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0o600))

	return &testEnv{
		t:          t,
		dir:        dir,
		configPath: configPath,
		ids:        &seqIDs{},
		now:        func() time.Time { return now },
	}
}

func (e *testEnv) options() *RootOptions {
	return &RootOptions{Now: e.now, IDs: e.ids, Player: e.player}
}

// run executes one CLI invocation and returns its stdout.
func (e *testEnv) run(args ...string) (string, error) {
	var out bytes.Buffer
	err := e.runContext(context.Background(), &out, args...)
	return out.String(), err
}

func (e *testEnv) runContext(ctx context.Context, out io.Writer, args ...string) error {
	cmd := newRootCommand(e.options())
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	return cmd.ExecuteContext(ctx)
}

// mustRun fails the test if the command fails.
func (e *testEnv) mustRun(args ...string) string {
	e.t.Helper()
	out, err := e.run(args...)
	require.NoError(e.t, err, "dayplan %v", args)
	return out
}

// runJSON runs with --format json and decodes the data payload into v.
func (e *testEnv) runJSON(v any, args ...string) {
	e.t.Helper()
	out := e.mustRun(append([]string{"--format", "json"}, args...)...)
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(e.t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(e.t, "ok", resp.Status)
	require.NoError(e.t, json.Unmarshal(resp.Data, v))
}

func (e *testEnv) writeFile(name, content string) string {
	e.t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(e.t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// syncBuffer is a bytes.Buffer safe for a command writing while the test
// polls.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
