package cmd

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvString_FlagWins(t *testing.T) {
	t.Setenv("TEST_DATA_DIR", "/from/env")

	cmd := &cobra.Command{Use: "test"}
	value := "default"
	cmd.Flags().StringVar(&value, "data-dir", value, "")
	require.NoError(t, cmd.Flags().Set("data-dir", "/from/flag"))

	envString(cmd, "data-dir", "TEST_DATA_DIR", &value)
	assert.Equal(t, "/from/flag", value)
}

func TestEnvString_EnvFallback(t *testing.T) {
	t.Setenv("TEST_DATA_DIR", "/from/env")

	cmd := &cobra.Command{Use: "test"}
	value := "default"
	cmd.Flags().StringVar(&value, "data-dir", value, "")

	envString(cmd, "data-dir", "TEST_DATA_DIR", &value)
	assert.Equal(t, "/from/env", value)
}

func TestVersionCmd(t *testing.T) {
	SetVersion("1.2.3")

	var out bytes.Buffer
	cmd := newVersionCmd()
	cmd.SetOut(&out)
	cmd.Run(cmd, nil)

	assert.Equal(t, "planpush version 1.2.3\n", out.String())
}
