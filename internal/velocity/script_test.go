package velocity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseScriptResultBelowThreshold(t *testing.T) {
	res, err := parseScriptResult([]interface{}{int64(2), int64(0)}, Config{Threshold: 5})
	require.NoError(t, err)
	require.Equal(t, int64(2), res.Count)
	require.False(t, res.Exceeded)
}

func TestParseScriptResultAtThreshold(t *testing.T) {
	res, err := parseScriptResult([]interface{}{int64(5), int64(1)}, Config{Threshold: 5})
	require.NoError(t, err)
	require.True(t, res.Exceeded)
}

func TestParseScriptResultRejectsUnexpectedShape(t *testing.T) {
	_, err := parseScriptResult("not-an-array", Config{})
	require.Error(t, err)

	_, err = parseScriptResult([]interface{}{int64(1)}, Config{})
	require.Error(t, err)

	_, err = parseScriptResult([]interface{}{"one", int64(0)}, Config{})
	require.Error(t, err)
}

func TestIsNoScriptMatchesPrefix(t *testing.T) {
	require.True(t, isNoScript(errors.New("NOSCRIPT No matching script")))
	require.False(t, isNoScript(errors.New("connection refused")))
}
