package flowfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HeftyCoder/ryvencore/flow"
	"github.com/HeftyCoder/ryvencore/nodes/std"
	"github.com/HeftyCoder/ryvencore/player"
	"github.com/HeftyCoder/ryvencore/session"
)

func writeFlowFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flow.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newStdSession(t *testing.T) *session.Session {
	t.Helper()
	s := session.New(nil)
	std.Register(s)
	return s
}

func TestApply_BuildsAndPlays(t *testing.T) {
	t.Parallel()

	path := writeFlowFile(t, `
flow "math" {
  mode = "data"

  node "std.const" "five" {
    value = 5
  }
  node "std.const" "seven" {
    value = 7
  }
  node "std.add" "sum" {}

  connect {
    from = "five.0"
    to   = "sum.0"
  }
  connect {
    from = "seven.0"
    to   = "sum.1"
  }
}
`)

	s := newStdSession(t)
	names, err := Apply(s, path)
	require.NoError(t, err)
	require.Equal(t, []string{"math"}, names)

	f, ok := s.Flow("math")
	require.True(t, ok)
	assert.Equal(t, flow.ModeData, f.Mode())
	assert.Len(t, f.Nodes(), 3)
	assert.Len(t, f.Connections(), 2)

	require.Equal(t, player.ResponseSuccess, s.Play(context.Background(), "math"))
	sum := f.Nodes()[2]
	v := flow.NodeOutputs(sum)[0].Value()
	got, _ := v.AsBigFloat().Int64()
	assert.Equal(t, int64(12), got)
}

func TestApply_FrameFlow(t *testing.T) {
	t.Parallel()

	path := writeFlowFile(t, `
flow "anim" {
  frame_rate = 250

  node "std.tick" "clock" {
    limit = 3
  }
}
`)

	s := newStdSession(t)
	_, err := Apply(s, path)
	require.NoError(t, err)

	require.Equal(t, player.ResponseSuccess, s.Play(context.Background(), "anim"))
	p, ok := s.Player("anim")
	require.True(t, ok)
	assert.Equal(t, 250, p.Time().FrameRate())
	assert.Equal(t, 3, p.Time().FrameCount())
}

func TestApply_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "unknown node type",
			content: `
flow "f" {
  node "std.bogus" "x" {}
}
`,
			wantErr: "std.bogus",
		},
		{
			name: "unknown mode",
			content: `
flow "f" {
  mode = "warp"
}
`,
			wantErr: "algorithm mode",
		},
		{
			name: "bad port reference",
			content: `
flow "f" {
  node "std.const" "a" {}
  node "std.add" "sum" {}
  connect {
    from = "a"
    to   = "sum.0"
  }
}
`,
			wantErr: "node.portIndex",
		},
		{
			name: "unknown node in connect",
			content: `
flow "f" {
  node "std.add" "sum" {}
  connect {
    from = "ghost.0"
    to   = "sum.0"
  }
}
`,
			wantErr: "ghost",
		},
		{
			name: "port index out of range",
			content: `
flow "f" {
  node "std.const" "a" {}
  node "std.add" "sum" {}
  connect {
    from = "a.3"
    to   = "sum.0"
  }
}
`,
			wantErr: "outputs",
		},
		{
			name: "unknown argument",
			content: `
flow "f" {
  node "std.add" "sum" {
    bogus = 1
  }
}
`,
			wantErr: "takes no arguments",
		},
		{
			name: "duplicate node name",
			content: `
flow "f" {
  node "std.const" "a" {}
  node "std.const" "a" {}
}
`,
			wantErr: "duplicate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newStdSession(t)
			_, err := Apply(s, writeFlowFile(t, tt.content))
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}
