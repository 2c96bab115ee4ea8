package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenInitializesBootstrap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	s, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, PhaseBootstrapping, s.Phase())
	assert.WithinDuration(t, time.Now().UTC(), s.BootstrapStart(), time.Minute)

	// The fresh document must already be durable.
	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, PhaseBootstrapping, reopened.Phase())
	assert.Equal(t, s.BootstrapStart().Unix(), reopened.BootstrapStart().Unix())
}

func TestTransitionsAreOneDirectional(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	require.NoError(t, s.Transition(PhaseTraining))
	assert.Equal(t, PhaseTraining, s.Phase())

	// Backward moves are rejected.
	assert.Error(t, s.Transition(PhaseBootstrapping))
	assert.Equal(t, PhaseTraining, s.Phase())

	require.NoError(t, s.Transition(PhaseActive))
	assert.Error(t, s.Transition(PhaseTraining))
	assert.Equal(t, PhaseActive, s.Phase())

	// Repeating the current phase is a no-op, not an error.
	assert.NoError(t, s.Transition(PhaseActive))
}

func TestRestartResumesPersistedPhase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Transition(PhaseTraining))

	// A restart mid-sequence resumes from Training without repeating the
	// completed Bootstrapping transition.
	resumed, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, PhaseTraining, resumed.Phase())

	require.NoError(t, resumed.Transition(PhaseActive))
	final, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, PhaseActive, final.Phase())
}

func TestSkippingTrainingIsAllowed(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	assert.NoError(t, s.Transition(PhaseActive))
}

func TestUnknownPhaseRejected(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	assert.Error(t, s.Transition(Phase("Paused")))
}
