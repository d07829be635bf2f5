package neat

import (
	"fmt"
)

// NumTraitParams is the fixed size of every trait's parameter vector.
const NumTraitParams = 8

// NoTrait marks a node or link that does not point at any trait.
const NoTrait = 0

// --------------------------- Trait ---------------------------

// Trait is a named vector of parameters shared by the nodes and links of a genome.
// Nodes and links refer to a trait by ID; the ID is resolved in the owning genome's trait list.
type Trait struct {
	ID     int
	Params [NumTraitParams]float64
}

// NewTrait creates a trait with the given ID and parameters.
func NewTrait(id int, params [NumTraitParams]float64) Trait {
	return Trait{ID: id, Params: params}
}

// String returns a string representation of the Trait.
func (t Trait) String() string {
	return fmt.Sprintf("Trait(ID: %d, Params: %v)", t.ID, t.Params)
}

// --------------------------- Node ---------------------------

// NodeType tells whether a node computes an activation or only senses input.
type NodeType int

const (
	Neuron NodeType = iota
	Sensor
)

func (t NodeType) String() string {
	switch t {
	case Neuron:
		return "neuron"
	case Sensor:
		return "sensor"
	}
	return fmt.Sprintf("NodeType(%d)", int(t))
}

// NodePlace is the structural role of a node, used for genetic marking.
type NodePlace int

const (
	Hidden NodePlace = iota
	Input
	Output
	Bias
)

func (p NodePlace) String() string {
	switch p {
	case Hidden:
		return "hidden"
	case Input:
		return "input"
	case Output:
		return "output"
	case Bias:
		return "bias"
	}
	return fmt.Sprintf("NodePlace(%d)", int(p))
}

// Node is a vertex of the genome graph.
type Node struct {
	ID       int // Unique within a genome; genomes keep nodes sorted by ID
	TraitID  int // NoTrait when unset
	Type     NodeType
	Place    NodePlace
	Function FunctionType
	Frozen   bool // When frozen the trait reference cannot be mutated

	// Runtime activation state, owned by whoever activates the genome.
	ActivationCount int
	LastActivation  float64
	LastActivation2 float64 // Activation before LastActivation, for time-delayed recurrence
	Override        bool
	OverrideValue   float64
}

// NewNode creates a sigmoid node with the given identity and role.
func NewNode(id, traitID int, nodeType NodeType, place NodePlace) Node {
	return Node{
		ID:       id,
		TraitID:  traitID,
		Type:     nodeType,
		Place:    place,
		Function: Sigmoid,
	}
}

// Duplicate copies the node's genetic identity and drops its activation state.
func (n Node) Duplicate() Node {
	return Node{
		ID:       n.ID,
		TraitID:  n.TraitID,
		Type:     n.Type,
		Place:    n.Place,
		Function: n.Function,
		Frozen:   n.Frozen,
	}
}

// IsSensor reports whether the node only receives external input.
func (n Node) IsSensor() bool {
	return n.Type == Sensor
}

// String returns a string representation of the Node.
func (n Node) String() string {
	return fmt.Sprintf("Node(ID: %d, Trait: %d, Type: %s, Place: %s)", n.ID, n.TraitID, n.Type, n.Place)
}

// --------------------------- Link ---------------------------

// Link is a directed, weighted edge between two nodes of the same genome.
type Link struct {
	Weight    float64
	InNode    int // Source node ID
	OutNode   int // Target node ID
	Recurrent bool
	TraitID   int
}

// Equal reports whether both links carry the same weight, trait, endpoints and recurrence.
func (l Link) Equal(other Link) bool {
	return l == other
}

// SameStructure reports whether both links connect the same nodes in the same mode.
func (l Link) SameStructure(other Link) bool {
	return l.InNode == other.InNode && l.OutNode == other.OutNode && l.Recurrent == other.Recurrent
}

// --------------------------- Gene ---------------------------

// Gene is a link together with its historical marking.
type Gene struct {
	Link
	innovation  float64
	MutationNum float64 // Tracks how far weight mutation has moved the link
	Enabled     bool
	Frozen      bool // When frozen the link weight cannot be mutated
}

// NewGene creates a gene. The innovation number cannot change afterwards.
func NewGene(traitID, inNode, outNode int, weight float64, recurrent bool, innovation, mutationNum float64, enabled bool) Gene {
	return Gene{
		Link: Link{
			Weight:    weight,
			InNode:    inNode,
			OutNode:   outNode,
			Recurrent: recurrent,
			TraitID:   traitID,
		},
		innovation:  innovation,
		MutationNum: mutationNum,
		Enabled:     enabled,
	}
}

// Innovation returns the gene's global historical marker.
func (g Gene) Innovation() float64 {
	return g.innovation
}

// String returns a string representation of the Gene.
func (g Gene) String() string {
	return fmt.Sprintf("Gene(Innov: %g, %d->%d, Weight: %.3f, Recurrent: %t, Enabled: %t, MutNum: %.3f)",
		g.innovation, g.InNode, g.OutNode, g.Weight, g.Recurrent, g.Enabled, g.MutationNum)
}
