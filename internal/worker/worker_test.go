package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpec_Clone(t *testing.T) {
	spec := Spec{ID: "gw1", Slot: 2, MaxFail: 3, Env: map[string]string{"A": "1"}}

	clone := spec.Clone()
	clone.Env["A"] = "2"

	assert.Empty(t, clone.ID)
	assert.Equal(t, 2, clone.Slot)
	assert.Equal(t, 3, clone.MaxFail)
	assert.Equal(t, "1", spec.Env["A"])
}

func TestExitInfo_Interrupted(t *testing.T) {
	assert.True(t, ExitInfo{ExitCode: ExitCodeInterrupted}.Interrupted())
	assert.False(t, ExitInfo{ExitCode: 1}.Interrupted())
}
