package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeFingerprintOrdering(t *testing.T) {
	depA := &TargetWrapper{Path: "out/a"}
	depB := &TargetWrapper{Path: "out/b"}
	nontarget := []NonTargetDep{{Path: "src/x.c"}, {Path: "src/y.c"}}

	lines := computeFingerprint([]*TargetWrapper{depA, depB}, nontarget, []string{"VERSION=1"})

	assert.Equal(t, []string{"out/a", "out/b", "src/x.c", "src/y.c", "VERSION=1"}, lines)
}

func TestComputeFingerprintEscapesEmbeddedLineBreaks(t *testing.T) {
	lines := computeFingerprint(nil, nil, []string{"line1\nline2\rline3"})
	assert.Equal(t, []string{"line1\\nline2\\rline3"}, lines)
}

func TestFingerprintChangesWhenHashableInputChanges(t *testing.T) {
	first := computeFingerprint(nil, nil, []string{"flag=off"})
	second := computeFingerprint(nil, nil, []string{"flag=on"})
	assert.NotEqual(t, first, second)
}

func TestFingerprintStableForIdenticalInputs(t *testing.T) {
	dep := &TargetWrapper{Path: "out/a"}
	first := computeFingerprint([]*TargetWrapper{dep}, nil, []string{"v1"})
	second := computeFingerprint([]*TargetWrapper{dep}, nil, []string{"v1"})
	assert.Equal(t, first, second)
}
