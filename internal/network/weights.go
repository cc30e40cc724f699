package network

import (
	"fmt"

	"github.com/nvandessel/settle/internal/mesh"
	"gonum.org/v1/gonum/mat"
)

// Weights returns a copy of the effective weights of every non-input layer's
// first excitatory mesh, in layer order.
func (n *Network) Weights() []*mat.Dense {
	out := make([]*mat.Dense, 0, len(n.layers)-1)
	for _, l := range n.layers[1:] {
		ms := l.ExcitatoryMeshes()
		if len(ms) == 0 {
			continue
		}
		out = append(out, ms[0].Get())
	}
	return out
}

// SetWeights writes ws into the meshes returned by Weights, in the same order.
func (n *Network) SetWeights(ws []*mat.Dense) error {
	var targets []mesh.Mesh
	for _, l := range n.layers[1:] {
		if ms := l.ExcitatoryMeshes(); len(ms) > 0 {
			targets = append(targets, ms[0])
		}
	}
	if len(ws) != len(targets) {
		return fmt.Errorf("%w: %d weight matrices for %d meshes", ErrShape, len(ws), len(targets))
	}
	for i, w := range ws {
		if err := targets[i].Set(w); err != nil {
			return fmt.Errorf("set weights of %s: %w", targets[i].Name(), err)
		}
	}
	return nil
}

// LayerState is the adaptive state of a layer that weights do not capture.
type LayerState struct {
	Layer  string
	ActAvg float64
	Gain   float64
}

// LayerStates returns the running activity average and gain of every layer,
// input first. Together with Weights it reproduces the network's inference.
func (n *Network) LayerStates() []LayerState {
	out := make([]LayerState, len(n.layers))
	for i, l := range n.layers {
		out[i] = LayerState{Layer: l.Name(), ActAvg: l.ActAvg(), Gain: l.Gain()}
	}
	return out
}

// SetLayerStates restores states returned by LayerStates, matched by layer
// position, and rescales every mesh to the restored averages.
func (n *Network) SetLayerStates(states []LayerState) error {
	if len(states) != len(n.layers) {
		return fmt.Errorf("%w: %d layer states for %d layers", ErrShape, len(states), len(n.layers))
	}
	for i, st := range states {
		n.layers[i].SetState(st.ActAvg, st.Gain)
	}
	n.UpdateScales()
	return nil
}

// Node is a unit group in a Topology.
type Node struct {
	Name   string `json:"name"`
	Size   int    `json:"size"`
	Input  bool   `json:"input,omitempty"`
	Target bool   `json:"target,omitempty"`
	Frozen bool   `json:"frozen,omitempty"`
}

// Edge is a mesh in a Topology. From names the sending layer.
type Edge struct {
	Name      string  `json:"name"`
	Kind      string  `json:"kind"`
	From      string  `json:"from"`
	To        string  `json:"to"`
	Size      int     `json:"size"`
	RelScale  float64 `json:"rel_scale"`
	Trainable bool    `json:"trainable"`
}

// Topology is a static description of a network's layers and meshes.
type Topology struct {
	Name  string `json:"name"`
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Topology describes the network for rendering and persistence.
func (n *Network) Topology() Topology {
	t := Topology{Name: n.name}
	for _, l := range n.layers {
		t.Nodes = append(t.Nodes, Node{
			Name:   l.Name(),
			Size:   l.Len(),
			Input:  l.IsInput(),
			Target: l.IsTarget(),
			Frozen: l.Frozen(),
		})
	}
	for _, l := range n.layers {
		meshes := append(l.ExcitatoryMeshes(), l.InhibitoryMeshes()...)
		for _, m := range meshes {
			t.Edges = append(t.Edges, Edge{
				Name:      m.Name(),
				Kind:      m.Kind().String(),
				From:      m.Source().Name(),
				To:        l.Name(),
				Size:      m.Size(),
				RelScale:  m.RelScale(),
				Trainable: m.Trainable(),
			})
		}
	}
	return t
}
