package flow

import (
	"encoding/json"
	"fmt"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/HeftyCoder/ryvencore/base"
)

// FlowData is the serializable structural snapshot of a flow: nodes with
// their port layouts, connections by index, and the algorithm mode. Runtime
// values on ports are deliberately not part of it; a loaded flow starts
// cold.
type FlowData struct {
	Name  string     `json:"name"`
	GID   int64      `json:"gid"`
	Mode  string     `json:"mode"`
	Nodes []NodeData `json:"nodes"`
	Conns []ConnData `json:"connections"`
}

// NodeData records one node: its registered type, its identity at save
// time, and its port layout.
type NodeData struct {
	Type    string     `json:"type"`
	GID     int64      `json:"gid"`
	Inputs  []PortData `json:"inputs"`
	Outputs []PortData `json:"outputs"`
}

// PortData records one port. Type and Default use the cty JSON encoding;
// both are omitted when unset.
type PortData struct {
	Label   string          `json:"label,omitempty"`
	Kind    string          `json:"kind"`
	Type    json.RawMessage `json:"type,omitempty"`
	Default json.RawMessage `json:"default,omitempty"`
}

// ConnData is an edge, addressed by node position within FlowData.Nodes and
// port position within the node.
type ConnData struct {
	OutNode int `json:"out_node"`
	OutPort int `json:"out_port"`
	InNode  int `json:"in_node"`
	InPort  int `json:"in_port"`
}

// Data captures the flow's structural snapshot.
func (f *Flow) Data() (FlowData, error) {
	data := FlowData{
		Name: f.name,
		GID:  f.gid,
		Mode: f.Mode().String(),
	}

	index := make(map[Node]int, len(f.nodes))
	for i, n := range f.nodes {
		index[n] = i
		nd, err := nodeData(n)
		if err != nil {
			return FlowData{}, fmt.Errorf("flow %q: %w", f.name, err)
		}
		data.Nodes = append(data.Nodes, nd)
	}

	for _, c := range f.Connections() {
		data.Conns = append(data.Conns, ConnData{
			OutNode: index[c.Out.node],
			OutPort: c.Out.node.base().OutputIndex(c.Out),
			InNode:  index[c.In.node],
			InPort:  c.In.node.base().InputIndex(c.In),
		})
	}
	return data, nil
}

func nodeData(n Node) (NodeData, error) {
	nb := n.base()
	nd := NodeData{Type: nb.typeID, GID: nb.gid}
	for _, p := range nb.inputs {
		pd, err := portData(p)
		if err != nil {
			return NodeData{}, fmt.Errorf("node %d: %w", nb.gid, err)
		}
		nd.Inputs = append(nd.Inputs, pd)
	}
	for _, p := range nb.outputs {
		pd, err := portData(p)
		if err != nil {
			return NodeData{}, fmt.Errorf("node %d: %w", nb.gid, err)
		}
		nd.Outputs = append(nd.Outputs, pd)
	}
	return nd, nil
}

func portData(p *Port) (PortData, error) {
	pd := PortData{Label: p.label, Kind: p.kind.String()}
	if p.typ != cty.NilType {
		raw, err := ctyjson.MarshalType(p.typ)
		if err != nil {
			return PortData{}, fmt.Errorf("port %q type: %w", p.label, err)
		}
		pd.Type = raw
	}
	if p.def != cty.NilVal {
		typ := p.typ
		if typ == cty.NilType {
			typ = cty.DynamicPseudoType
		}
		raw, err := ctyjson.Marshal(p.def, typ)
		if err != nil {
			return PortData{}, fmt.Errorf("port %q default: %w", p.label, err)
		}
		pd.Default = raw
	}
	return pd, nil
}

func (pd PortData) config() (PortConfig, error) {
	cfg := PortConfig{Label: pd.Label}
	switch pd.Kind {
	case "data", "":
		cfg.Kind = KindData
	case "exec":
		cfg.Kind = KindExec
	default:
		return PortConfig{}, fmt.Errorf("port %q: unknown kind %q", pd.Label, pd.Kind)
	}
	if len(pd.Type) > 0 {
		typ, err := ctyjson.UnmarshalType(pd.Type)
		if err != nil {
			return PortConfig{}, fmt.Errorf("port %q type: %w", pd.Label, err)
		}
		cfg.Type = typ
	}
	if len(pd.Default) > 0 {
		typ := cfg.Type
		if typ == cty.NilType {
			typ = cty.DynamicPseudoType
		}
		def, err := ctyjson.Unmarshal(pd.Default, typ)
		if err != nil {
			return PortConfig{}, fmt.Errorf("port %q default: %w", pd.Label, err)
		}
		cfg.Default = def
	}
	return cfg, nil
}

// Load rebuilds a flow from a snapshot. Node instances come from lookup by
// registered type. Loaded flows and nodes receive fresh identities from the
// id counter; when remap is non-nil the saved identities are recorded
// against the new ones, so callers can resolve references into the old
// numbering.
func Load(data FlowData, lookup func(typeID string) (Factory, bool), ids *base.IDCounter, remap *base.Remap) (*Flow, error) {
	f := New(data.Name, ids)
	if remap != nil && data.GID != 0 {
		remap.Record(data.GID, f)
	}
	if data.Mode != "" {
		m, err := ParseMode(data.Mode)
		if err != nil {
			return nil, fmt.Errorf("flow %q: %w", data.Name, err)
		}
		f.SetMode(m)
	}

	nodes := make([]Node, len(data.Nodes))
	for i, nd := range data.Nodes {
		factory, ok := lookup(nd.Type)
		if !ok {
			return nil, fmt.Errorf("flow %q: no registered node type %q", data.Name, nd.Type)
		}
		n := factory()
		nb := n.base()
		nb.SetTypeID(nd.Type)

		// The saved port layout wins over whatever the constructor built;
		// dynamically created ports survive the round trip this way.
		nb.resetPorts()
		for _, pd := range nd.Inputs {
			cfg, err := pd.config()
			if err != nil {
				return nil, fmt.Errorf("flow %q, node %d: %w", data.Name, i, err)
			}
			nb.CreateInput(cfg)
		}
		for _, pd := range nd.Outputs {
			cfg, err := pd.config()
			if err != nil {
				return nil, fmt.Errorf("flow %q, node %d: %w", data.Name, i, err)
			}
			nb.CreateOutput(cfg)
		}

		if err := f.AddNode(n); err != nil {
			return nil, fmt.Errorf("flow %q: %w", data.Name, err)
		}
		if remap != nil && nd.GID != 0 {
			remap.Record(nd.GID, n)
		}
		nodes[i] = n
	}

	for _, c := range data.Conns {
		if c.OutNode < 0 || c.OutNode >= len(nodes) || c.InNode < 0 || c.InNode >= len(nodes) {
			return nil, fmt.Errorf("flow %q: connection references node out of range", data.Name)
		}
		out := nodes[c.OutNode].base()
		in := nodes[c.InNode].base()
		if c.OutPort < 0 || c.OutPort >= len(out.outputs) || c.InPort < 0 || c.InPort >= len(in.inputs) {
			return nil, fmt.Errorf("flow %q: connection references port out of range", data.Name)
		}
		valid, err := f.Connect(out.outputs[c.OutPort], in.inputs[c.InPort])
		if err != nil {
			return nil, fmt.Errorf("flow %q: %w", data.Name, err)
		}
		if valid != ConnValid {
			return nil, fmt.Errorf("flow %q: saved connection rejected: %s", data.Name, valid)
		}
	}
	return f, nil
}
