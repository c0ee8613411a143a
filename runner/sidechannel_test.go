package runner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runflo/runflo/types"
)

func TestPayloadRoundTrip(t *testing.T) {
	res := &types.Result{
		Spec:   "g.u",
		Status: types.StatusFail,
		ErrMsg: "it broke\nwith a trace",
		Usage: types.ResourceUsage{
			MaxRSSMB: 123.5,
			Load:     [3]float64{0.5, 0.4, 0.3},
		},
	}

	path := filepath.Join(t.TempDir(), "result.json")
	require.NoError(t, writePayload(path, payloadFromResult(res)))

	p, ok := readPayload(path)
	require.True(t, ok)
	assert.Equal(t, "it broke\nwith a trace", p.ErrMsg)
	assert.Equal(t, res.Usage, p.Usage())
}

func TestReadPayloadAbsentFile(t *testing.T) {
	_, ok := readPayload(filepath.Join(t.TempDir(), "nope.json"))
	assert.False(t, ok)
}

func TestReadPayloadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, ok := readPayload(path)
	assert.False(t, ok)
}

func TestReadPayloadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{err_msg: not json"), 0o644))

	p, ok := readPayload(path)
	assert.False(t, ok)
	assert.Empty(t, p.ErrMsg)
}

func TestPayloadUsageMissingFields(t *testing.T) {
	p := Payload{ErrMsg: "x"}
	assert.Zero(t, p.Usage().MaxRSSMB)
	assert.Zero(t, p.Usage().Load[0])
}
