package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"gigbridge/internal/deeplink"
	"gigbridge/internal/navigation"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDecodeCommandJSON(t *testing.T) {
	out, err := execute(t, "decode", "gigbridge://auth/callback?code=abc", "-o", "json")
	require.NoError(t, err)

	var view intentView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, deeplink.KindAuthCallback, view.Kind)
	assert.Equal(t, "abc", view.Code)
	assert.False(t, view.HasTokens)
}

func TestDecodeCommandHidesTokens(t *testing.T) {
	out, err := execute(t, "decode", "https://gigbridge.app/auth/callback#access_token=secret&refresh_token=rt")
	require.NoError(t, err)

	assert.NotContains(t, out, "secret")
	var view intentView
	require.NoError(t, yaml.Unmarshal([]byte(out), &view))
	assert.True(t, view.HasTokens)
}

func TestDecodeCommandCustomScheme(t *testing.T) {
	out, err := execute(t, "decode", "--scheme", "other", "other://reset-password?code=r1")
	require.NoError(t, err)

	var view intentView
	require.NoError(t, yaml.Unmarshal([]byte(out), &view))
	assert.Equal(t, deeplink.KindPasswordReset, view.Kind)
}

func TestDecodeCommandRequiresURL(t *testing.T) {
	_, err := execute(t, "decode")
	assert.Error(t, err)
}

func TestEvaluateSignedOut(t *testing.T) {
	out, err := execute(t, "evaluate", "--location", "/home", "-o", "json")
	require.NoError(t, err)

	var view decisionView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, navigation.StateAuthRequired, view.State)
	require.NotNil(t, view.Navigate)
	assert.Equal(t, navigation.PathLogin, *view.Navigate)
}

func TestEvaluateAuthorizedStaysPut(t *testing.T) {
	out, err := execute(t, "evaluate", "--signed-in", "--confirmed", "--record-role", "student", "--completed", "--location", "/home")
	require.NoError(t, err)

	var view decisionView
	require.NoError(t, yaml.Unmarshal([]byte(out), &view))
	assert.Equal(t, navigation.StateAuthorized, view.State)
	assert.EqualValues(t, "student", view.Role)
	assert.Nil(t, view.Navigate)
	assert.Contains(t, out, "navigate: null")
}

func TestEvaluateUnconfirmedForcesSignOut(t *testing.T) {
	out, err := execute(t, "evaluate", "--signed-in", "--location", "/home", "-o", "json")
	require.NoError(t, err)

	var view decisionView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, navigation.StateForceSignOut, view.State)
	assert.True(t, view.SignOut)
}

func TestEvaluateResetCodeWins(t *testing.T) {
	out, err := execute(t, "evaluate", "--reset-code", "r1", "--location", "/login", "-o", "json")
	require.NoError(t, err)

	var view decisionView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, navigation.StatePasswordReset, view.State)
	require.NotNil(t, view.Navigate)
	assert.Equal(t, "/reset-password?code=r1", *view.Navigate)
}

func TestEvaluateRecordRoleRequiresSession(t *testing.T) {
	_, err := execute(t, "evaluate", "--record-role", "student")
	assert.ErrorContains(t, err, "--signed-in")
}

func TestUnknownOutputFormat(t *testing.T) {
	_, err := execute(t, "evaluate", "-o", "xml")
	assert.ErrorContains(t, err, "unknown output format")
}
