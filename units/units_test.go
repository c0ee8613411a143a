package units

import (
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runflo/runflo/registry"
)

func TestRegisterSelfcheckSuite(t *testing.T) {
	reg, err := registry.New(registry.Config{Log: log.NewLogger(log.DiscardHandler())})
	require.NoError(t, err)

	Register(reg)

	specs := reg.Specs()
	assert.NotEmpty(t, specs)

	// every registered spec must resolve
	for _, spec := range specs {
		ex, err := reg.Resolve(spec)
		require.NoError(t, err, "spec %s", spec)
		assert.True(t, ex.Body != nil || len(ex.SubCases) > 0, "spec %s has no body", spec)
	}
}

func TestSelfcheckCoversEveryTier(t *testing.T) {
	reg, err := registry.New(registry.Config{Log: log.NewLogger(log.DiscardHandler())})
	require.NoError(t, err)
	Register(reg)

	ex, err := reg.Resolve("isolation.own_process")
	require.NoError(t, err)
	assert.True(t, ex.Isolated)

	ex, err = reg.Resolve("isolation.cooperating")
	require.NoError(t, err)
	assert.Equal(t, 2, ex.NProcs)

	ex, err = reg.Resolve("basics.known_broken")
	require.NoError(t, err)
	assert.True(t, ex.ExpectedFail)

	ex, err = reg.Resolve("basics.arithmetic")
	require.NoError(t, err)
	assert.Len(t, ex.SubCases, 3)
}
