// Package flowfile loads flow definitions from HCL files into a session.
//
// A definition file declares flows, the nodes placed in them, and the
// connections between node ports:
//
//	flow "math" {
//	  mode = "data"
//
//	  node "std.const" "five" {
//	    value = 5
//	  }
//	  node "std.add" "sum" {}
//
//	  connect {
//	    from = "five.0"
//	    to   = "sum.0"
//	  }
//	}
//
// Port references use the "node.portIndex" form, counting outputs for the
// from side and inputs for the to side.
package flowfile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/HeftyCoder/ryvencore/flow"
	"github.com/HeftyCoder/ryvencore/player"
	"github.com/HeftyCoder/ryvencore/session"
)

type fileRoot struct {
	Flows []*flowBlock `hcl:"flow,block"`
}

type flowBlock struct {
	Name      string          `hcl:"name,label"`
	Mode      *string         `hcl:"mode,optional"`
	FrameRate *int            `hcl:"frame_rate,optional"`
	Nodes     []*nodeBlock    `hcl:"node,block"`
	Connects  []*connectBlock `hcl:"connect,block"`
}

type nodeBlock struct {
	Type string   `hcl:"type,label"`
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}

type connectBlock struct {
	From string `hcl:"from"`
	To   string `hcl:"to"`
}

// Apply parses a definition file and builds its flows inside the session,
// creating a player per flow. Returns the names of the flows created.
func Apply(s *session.Session, path string) ([]string, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse flow file %s: %w", path, diags)
	}

	var root fileRoot
	if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode flow file %s: %w", path, diags)
	}

	var names []string
	for _, fb := range root.Flows {
		if err := buildFlow(s, fb); err != nil {
			return nil, fmt.Errorf("flow %q: %w", fb.Name, err)
		}
		names = append(names, fb.Name)
	}
	return names, nil
}

func buildFlow(s *session.Session, fb *flowBlock) error {
	f, err := s.CreateFlow(fb.Name)
	if err != nil {
		return err
	}
	if fb.Mode != nil {
		mode, err := flow.ParseMode(*fb.Mode)
		if err != nil {
			return err
		}
		f.SetMode(mode)
	}

	frameRate := player.DefaultFrameRate
	if fb.FrameRate != nil {
		frameRate = *fb.FrameRate
	}
	if _, err := s.NewPlayer(fb.Name, frameRate); err != nil {
		return err
	}

	byName := make(map[string]flow.Node, len(fb.Nodes))
	for _, nb := range fb.Nodes {
		if _, ok := byName[nb.Name]; ok {
			return fmt.Errorf("duplicate node name %q", nb.Name)
		}
		n, err := s.NewNode(nb.Type)
		if err != nil {
			return err
		}
		if err := configureNode(n, nb); err != nil {
			return err
		}
		if err := f.AddNode(n); err != nil {
			return err
		}
		byName[nb.Name] = n
	}

	for _, cb := range fb.Connects {
		if err := connect(f, byName, cb); err != nil {
			return err
		}
	}
	return nil
}

// configureNode decodes the node block's attributes as literal values and
// hands them to the node. Attributes on a node type that takes none are a
// definition mistake.
func configureNode(n flow.Node, nb *nodeBlock) error {
	attrs, diags := nb.Body.JustAttributes()
	if diags.HasErrors() {
		return fmt.Errorf("node %q: %w", nb.Name, diags)
	}
	if len(attrs) == 0 {
		return nil
	}

	args := make(map[string]cty.Value, len(attrs))
	for name, attr := range attrs {
		v, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return fmt.Errorf("node %q, argument %q: %w", nb.Name, name, diags)
		}
		args[name] = v
	}

	cfg, ok := n.(flow.Configurable)
	if !ok {
		return fmt.Errorf("node %q: type %q takes no arguments", nb.Name, nb.Type)
	}
	if err := cfg.Configure(args); err != nil {
		return fmt.Errorf("node %q: %w", nb.Name, err)
	}
	return nil
}

func connect(f *flow.Flow, byName map[string]flow.Node, cb *connectBlock) error {
	outNode, outIdx, err := resolveRef(byName, cb.From)
	if err != nil {
		return fmt.Errorf("connect from %q: %w", cb.From, err)
	}
	inNode, inIdx, err := resolveRef(byName, cb.To)
	if err != nil {
		return fmt.Errorf("connect to %q: %w", cb.To, err)
	}

	outs := flow.NodeOutputs(outNode)
	if outIdx >= len(outs) {
		return fmt.Errorf("connect from %q: node has %d outputs", cb.From, len(outs))
	}
	ins := flow.NodeInputs(inNode)
	if inIdx >= len(ins) {
		return fmt.Errorf("connect to %q: node has %d inputs", cb.To, len(ins))
	}

	valid, err := f.Connect(outs[outIdx], ins[inIdx])
	if err != nil {
		return err
	}
	if valid != flow.ConnValid {
		return fmt.Errorf("connect %q -> %q rejected: %s", cb.From, cb.To, valid)
	}
	return nil
}

// resolveRef splits a "node.portIndex" reference.
func resolveRef(byName map[string]flow.Node, ref string) (flow.Node, int, error) {
	name, idxStr, ok := strings.Cut(ref, ".")
	if !ok {
		return nil, 0, fmt.Errorf("want the form \"node.portIndex\"")
	}
	n, ok := byName[name]
	if !ok {
		return nil, 0, fmt.Errorf("no node named %q", name)
	}
	idx, err := strconv.Atoi(idxStr)
	if err != nil || idx < 0 {
		return nil, 0, fmt.Errorf("bad port index %q", idxStr)
	}
	return n, idx, nil
}
