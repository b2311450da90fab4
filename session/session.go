// Package session is the top-level container of the engine: the node type
// registry, the set of named flows with their shared identity counter, and
// a player per flow. A process typically owns exactly one session.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/HeftyCoder/ryvencore/base"
	"github.com/HeftyCoder/ryvencore/flow"
	"github.com/HeftyCoder/ryvencore/player"
)

// Session owns node types, flows and players. Methods are safe for
// concurrent use; blocking calls (Play) never hold the session lock while
// they run.
type Session struct {
	logger *slog.Logger
	ids    *base.IDCounter

	mu      sync.Mutex
	types   map[string]flow.Factory
	flows   map[string]*flow.Flow
	players map[string]*player.FlowPlayer
}

// New creates an empty session. A nil logger falls back to slog.Default.
func New(logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		logger:  logger,
		ids:     base.NewIDCounter(),
		types:   make(map[string]flow.Factory),
		flows:   make(map[string]*flow.Flow),
		players: make(map[string]*player.FlowPlayer),
	}
}

// Logger returns the session's logger.
func (s *Session) Logger() *slog.Logger { return s.logger }

// RegisterNodeType adds a node factory under its type identifier. Double
// registration is a wiring mistake in the host program and panics.
func (s *Session) RegisterNodeType(id string, factory flow.Factory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.types[id]; ok {
		panic(fmt.Sprintf("node type %q is already registered", id))
	}
	s.types[id] = factory
	s.logger.Debug("node type registered.", "type", id)
}

// NodeType resolves a registered node factory.
func (s *Session) NodeType(id string) (flow.Factory, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.types[id]
	return f, ok
}

// NodeTypes lists the registered type identifiers, sorted.
func (s *Session) NodeTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.types))
	for id := range s.types {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NewNode instantiates a registered node type, stamping the type identifier
// on the instance so it round-trips through serialization.
func (s *Session) NewNode(id string) (flow.Node, error) {
	factory, ok := s.NodeType(id)
	if !ok {
		return nil, fmt.Errorf("no registered node type %q", id)
	}
	n := factory()
	flow.SetNodeTypeID(n, id)
	return n, nil
}

// CreateFlow adds an empty flow under a unique name. The flow shares the
// session's identity counter and logger.
func (s *Session) CreateFlow(name string) (*flow.Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.flows[name]; ok {
		return nil, fmt.Errorf("flow %q already exists", name)
	}
	f := flow.New(name, s.ids)
	f.SetLogger(s.logger)
	s.flows[name] = f
	s.logger.Info("flow created.", "flow", name, "gid", f.GID())
	return f, nil
}

// Flow resolves a flow by name.
func (s *Session) Flow(name string) (*flow.Flow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flows[name]
	return f, ok
}

// Flows lists the session's flow names, sorted.
func (s *Session) Flows() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.flows))
	for name := range s.flows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RemoveFlow drops a flow and its player. A playing flow is stopped first.
func (s *Session) RemoveFlow(name string) error {
	s.mu.Lock()
	p := s.players[name]
	_, ok := s.flows[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("no flow %q", name)
	}
	if p != nil && p.State() != player.StateStopped {
		p.Stop()
	}

	s.mu.Lock()
	delete(s.flows, name)
	delete(s.players, name)
	s.mu.Unlock()
	s.logger.Info("flow removed.", "flow", name)
	return nil
}

// NewPlayer builds the player for a flow with the given frame rate,
// replacing an earlier one. Replacing a player that is not stopped is an
// error.
func (s *Session) NewPlayer(name string, frameRate int) (*player.FlowPlayer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flows[name]
	if !ok {
		return nil, fmt.Errorf("no flow %q", name)
	}
	if cur := s.players[name]; cur != nil && cur.State() != player.StateStopped {
		return nil, fmt.Errorf("flow %q has a player in state %s", name, cur.State())
	}
	p := player.NewFlowPlayer(f, frameRate)
	s.players[name] = p
	return p, nil
}

// Player returns the flow's player, creating one with the default frame
// rate on first use. The second return is false for unknown flows.
func (s *Session) Player(name string) (*player.FlowPlayer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flows[name]
	if !ok {
		return nil, false
	}
	p := s.players[name]
	if p == nil {
		p = player.NewFlowPlayer(f, player.DefaultFrameRate)
		s.players[name] = p
	}
	return p, true
}

// Play runs the named flow, blocking until the play ends.
func (s *Session) Play(ctx context.Context, name string) player.Response {
	p, ok := s.Player(name)
	if !ok {
		return player.ResponseNoGraph
	}
	return p.Play(ctx)
}

// Pause suspends the named flow's play.
func (s *Session) Pause(name string) player.Response {
	p, ok := s.Player(name)
	if !ok {
		return player.ResponseNoGraph
	}
	return p.Pause()
}

// Resume continues the named flow's paused play.
func (s *Session) Resume(name string) player.Response {
	p, ok := s.Player(name)
	if !ok {
		return player.ResponseNoGraph
	}
	return p.Resume()
}

// Stop requests the end of the named flow's play.
func (s *Session) Stop(name string) player.Response {
	p, ok := s.Player(name)
	if !ok {
		return player.ResponseNoGraph
	}
	return p.Stop()
}

// Data is the serializable snapshot of a session.
type Data struct {
	Flows []flow.FlowData `json:"flows"`
}

// Save captures all flows in name order.
func (s *Session) Save() (Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var data Data
	names := make([]string, 0, len(s.flows))
	for name := range s.flows {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fd, err := s.flows[name].Data()
		if err != nil {
			return Data{}, err
		}
		data.Flows = append(data.Flows, fd)
	}
	return data, nil
}

// Load rebuilds flows from a snapshot into this session. Loaded flows and
// nodes receive fresh identities; the returned remap resolves saved
// identities to the new ones.
func (s *Session) Load(data Data) (*base.Remap, error) {
	remap := base.NewRemap()
	for _, fd := range data.Flows {
		if _, ok := s.Flow(fd.Name); ok {
			return nil, fmt.Errorf("flow %q already exists", fd.Name)
		}
		f, err := flow.Load(fd, s.NodeType, s.ids, remap)
		if err != nil {
			return nil, err
		}
		f.SetLogger(s.logger)

		s.mu.Lock()
		s.flows[fd.Name] = f
		s.mu.Unlock()
		s.logger.Info("flow loaded.", "flow", fd.Name, "nodes", len(fd.Nodes), "connections", len(fd.Conns))
	}
	return remap, nil
}
