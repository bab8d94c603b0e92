package shell

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandString(t *testing.T) {
	c := Command{Argv: []string{"python", "-c", "import elephant.spade; assert elephant.spade.HAVE_FIM"}}
	assert.Equal(t, `python -c "import elephant.spade; assert elephant.spade.HAVE_FIM"`, c.String())
	assert.Equal(t, "python", c.Name())
}

func TestCommandWithEnvDoesNotAlias(t *testing.T) {
	base := Command{Argv: []string{"true"}, Env: make([]string, 1, 4)}
	a := base.WithEnv("A=1")
	b := base.WithEnv("B=2")
	assert.Equal(t, "A=1", a.Env[1])
	assert.Equal(t, "B=2", b.Env[1])
}

func TestOSExecutor_Success(t *testing.T) {
	var out bytes.Buffer
	err := NewOSExecutor().Run(t.Context(), Command{Argv: []string{"sh", "-c", "echo $MATRIXCI_X"}, Env: []string{"MATRIXCI_X=hello"}}, &out)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out.String())
}

func TestOSExecutor_ExitCode(t *testing.T) {
	err := NewOSExecutor().Run(t.Context(), ShellLine("exit 3"), nil)
	require.Error(t, err)
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.ExitCode)
}

func TestOSExecutor_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	err := NewOSExecutor().Run(ctx, ShellLine("sleep 5"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOSExecutor_Empty(t *testing.T) {
	require.Error(t, NewOSExecutor().Run(t.Context(), Command{}, nil))
}

func TestDryRunExecutor(t *testing.T) {
	var out bytes.Buffer
	d := NewDryRunExecutor()
	require.NoError(t, d.Run(t.Context(), Command{Argv: []string{"conda", "create"}, Dir: "/ws"}, &out))
	assert.Equal(t, "+ (cd /ws) conda create\n", out.String())
	assert.Len(t, d.Commands(), 1)
}

func TestFakeExecutor(t *testing.T) {
	f := NewFakeExecutor().FailOn("nose", 1).Output("pip", "installed\n")
	var out bytes.Buffer
	require.NoError(t, f.Run(t.Context(), Command{Argv: []string{"pip", "install"}}, &out))
	assert.Equal(t, "installed\n", out.String())

	err := f.Run(t.Context(), Command{Argv: []string{"python", "-m", "nose"}}, nil)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, []string{"pip install", "python -m nose"}, f.Rendered())
}
