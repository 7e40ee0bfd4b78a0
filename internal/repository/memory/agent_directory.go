package memory

import (
	"context"
	"fmt"
	"sync"

	xerrors "callback-queue-service/internal/pkg/errors"
)

type Agent struct {
	ID        string
	Name      string
	Available bool
}

// AgentDirectory is a fixed roster of agents whose availability can be
// toggled at runtime.
type AgentDirectory struct {
	mu     sync.RWMutex
	agents map[string]*Agent
}

func NewAgentDirectory(agents ...Agent) *AgentDirectory {
	d := &AgentDirectory{agents: make(map[string]*Agent, len(agents))}
	for _, a := range agents {
		a := a
		d.agents[a.ID] = &a
	}
	return d
}

func (d *AgentDirectory) AvailableForCallback(_ context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	n := 0
	for _, a := range d.agents {
		if a.Available {
			n++
		}
	}
	return n, nil
}

func (d *AgentDirectory) ValidateAgent(_ context.Context, agentID, agentName string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	a, ok := d.agents[agentID]
	if !ok {
		return fmt.Errorf("agent %s: %w", agentID, xerrors.ErrUnknownAgent)
	}
	if a.Name != agentName {
		return fmt.Errorf("agent %s is not %q: %w", agentID, agentName, xerrors.ErrUnknownAgent)
	}
	return nil
}

// SetAvailability registers the agent if it is not known yet.
func (d *AgentDirectory) SetAvailability(_ context.Context, agentID, agentName string, available bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	a, ok := d.agents[agentID]
	if !ok {
		a = &Agent{ID: agentID, Name: agentName}
		d.agents[agentID] = a
	}
	if agentName != "" {
		a.Name = agentName
	}
	a.Available = available
	return nil
}
