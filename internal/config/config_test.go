package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wopr-network/wopr/pkg/types"
)

func TestResolveHonorsWOPRHome(t *testing.T) {
	tmp := t.TempDir()
	old := os.Getenv("WOPR_HOME")
	os.Setenv("WOPR_HOME", tmp)
	defer os.Setenv("WOPR_HOME", old)

	p := Resolve()
	assert.Equal(t, tmp, p.Base)
	assert.Equal(t, filepath.Join(tmp, "sessions"), p.SessionsDir())
	assert.Equal(t, filepath.Join(tmp, "security.json"), p.SecurityConfig())
}

func TestResolveDefaultsUnderHome(t *testing.T) {
	old := os.Getenv("WOPR_HOME")
	os.Unsetenv("WOPR_HOME")
	defer os.Setenv("WOPR_HOME", old)

	p := Resolve()
	assert.Contains(t, p.Base, ".wopr")
}

func TestEnsureCreatesDirs(t *testing.T) {
	tmp := t.TempDir()
	p := &Paths{Base: filepath.Join(tmp, "base")}
	require.NoError(t, p.Ensure())

	for _, dir := range []string{p.Base, p.SessionsDir(), p.CredentialsDir()} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestResolveEnforcementEnvOverride(t *testing.T) {
	old := os.Getenv("WOPR_SECURITY_ENFORCEMENT")
	defer os.Setenv("WOPR_SECURITY_ENFORCEMENT", old)

	os.Setenv("WOPR_SECURITY_ENFORCEMENT", "warn")
	assert.Equal(t, types.EnforcementWarn, ResolveEnforcement(types.EnforcementEnforce))

	os.Setenv("WOPR_SECURITY_ENFORCEMENT", "not-a-mode")
	assert.Equal(t, types.EnforcementEnforce, ResolveEnforcement(types.EnforcementEnforce))

	os.Unsetenv("WOPR_SECURITY_ENFORCEMENT")
	assert.Equal(t, types.EnforcementEnforce, ResolveEnforcement(types.EnforcementEnforce))
	assert.Equal(t, types.EnforcementWarn, ResolveEnforcement(""))
}

func TestEnvCredentialKnownProvider(t *testing.T) {
	old := os.Getenv("ANTHROPIC_API_KEY")
	defer os.Setenv("ANTHROPIC_API_KEY", old)

	os.Setenv("ANTHROPIC_API_KEY", "sk-test")
	assert.Equal(t, "sk-test", EnvCredential("anthropic"))
	assert.Equal(t, "", EnvCredential("unknown-provider"))
}
