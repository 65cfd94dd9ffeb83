package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"beacon/internal/claude"
	"beacon/internal/config"
	"beacon/internal/definition"
	"beacon/internal/output"
	"beacon/internal/store"
	"beacon/internal/workflow"
)

// testApp is an App backed by a temp SQLite store, a temp workflows
// directory and a scripted Claude executor.
type testApp struct {
	app   *App
	store *store.Store
	mock  *claude.MockExecutor
	out   *bytes.Buffer
	dir   string
}

func newTestApp(t *testing.T, workflows map[string]string) *testApp {
	t.Helper()

	root := t.TempDir()
	dir := filepath.Join(root, "workflows")
	require.NoError(t, os.MkdirAll(dir, 0755))
	for name, content := range workflows {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+definition.Extension), []byte(content), 0644))
	}

	st, err := store.Open(context.Background(), filepath.Join(root, "beacon.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	out := &bytes.Buffer{}
	printer := output.NewPrinterWithWriter(out)
	repo := definition.NewRepository(dir, nil)
	mock := &claude.MockExecutor{}

	cfg := config.DefaultConfig()
	cfg.Workflows.Dir = dir

	return &testApp{
		app: &App{
			Config:    cfg,
			Store:     st,
			Workflows: repo,
			Runner:    workflow.NewEngine(st, repo, mock, printer, nil),
			Printer:   printer,
			Stdin:     strings.NewReader(""),
		},
		store: st,
		mock:  mock,
		out:   out,
		dir:   dir,
	}
}

// execute runs the command tree with args. Cobra's own output and the
// printer share the same buffer.
func (ta *testApp) execute(args ...string) ExecuteResult {
	rootCmd := NewRootCommand(ta.app)
	rootCmd.SetOut(ta.out)
	rootCmd.SetErr(ta.out)
	rootCmd.SetArgs(args)
	return run(context.Background(), rootCmd)
}
