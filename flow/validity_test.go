package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zclconf/go-cty/cty"
)

func TestCheckConn(t *testing.T) {
	t.Parallel()

	f := New("t", nil)
	src := newSource(1)
	sum := newSum()
	mustAdd(t, f, src, sum)

	button := &sourceNode{}
	button.CreateOutput(PortConfig{Label: "pressed", Kind: KindExec})
	exec := &sinkNode{}
	exec.CreateInput(PortConfig{Label: "go", Kind: KindExec})
	mustAdd(t, f, button, exec)

	tests := []struct {
		name string
		out  *Port
		in   *Port
		want ConnValidType
	}{
		{"valid data", src.Outputs()[0], sum.Inputs()[0], ConnValid},
		{"valid exec", button.Outputs()[0], exec.Inputs()[0], ConnValid},
		{"same node", sum.Outputs()[0], sum.Inputs()[0], ConnSameNode},
		{"two inputs", sum.Inputs()[0], exec.Inputs()[0], ConnSameIO},
		{"two outputs", src.Outputs()[0], button.Outputs()[0], ConnSameIO},
		{"swapped directions", sum.Inputs()[0], src.Outputs()[0], ConnIOMismatch},
		{"data to exec", src.Outputs()[0], exec.Inputs()[0], ConnDiffAlgType},
		{"exec to data", button.Outputs()[0], sum.Inputs()[0], ConnDiffAlgType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.CheckConn(tt.out, tt.in))
		})
	}
}

func TestDefaultTypeChecker(t *testing.T) {
	t.Parallel()

	assert.True(t, DefaultTypeChecker(cty.Number, cty.Number))
	assert.True(t, DefaultTypeChecker(cty.NilType, cty.Number), "undeclared output accepts")
	assert.True(t, DefaultTypeChecker(cty.Number, cty.NilType), "undeclared input accepts")
	assert.True(t, DefaultTypeChecker(cty.Number, cty.String), "number converts to string")
	assert.False(t, DefaultTypeChecker(cty.Bool, cty.Number))
}

func TestFlow_CustomTypeChecker(t *testing.T) {
	t.Parallel()

	f := New("t", nil)
	src := newSource(1)
	sum := newSum()
	mustAdd(t, f, src, sum)

	// A registry that declares nothing compatible.
	f.SetTypeChecker(func(out, in cty.Type) bool { return false })
	valid, err := f.Connect(src.Outputs()[0], sum.Inputs()[0])
	assert.NoError(t, err)
	assert.Equal(t, ConnDataMismatch, valid)

	// nil restores the default.
	f.SetTypeChecker(nil)
	mustConnect(t, f, src.Outputs()[0], sum.Inputs()[0])
}

func TestConnValidType_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "VALID", ConnValid.String())
	assert.Equal(t, "INPUT_TAKEN", ConnInputTaken.String())
	assert.Equal(t, "ALREADY_DISCONNECTED", ConnAlreadyDisconnected.String())
}
