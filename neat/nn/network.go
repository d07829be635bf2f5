package nn

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/baldhumanity/neatcore/neat"
)

// biasValue is the constant output of bias sensors.
const biasValue = 1.0

// synapse is an enabled gene seen from its target neuron.
type synapse struct {
	from      int // Index into Network.neurons
	weight    float64
	recurrent bool
}

// neuron is a node during network activation.
type neuron struct {
	id         int
	place      neat.NodePlace
	sensor     bool
	activation neat.ActivationFunc
	incoming   []synapse
	value      float64
	previous   float64 // Value after the previous Activate call
}

// Network is the phenotype of a genome. Non-recurrent links must form a
// DAG; recurrent links (and self loops) read the source's value from the
// previous activation step.
type Network struct {
	neurons   []neuron
	inputs    []int // Input sensors in node ID order
	biases    []int
	outputs   []int // Output neurons in node ID order
	evalOrder []int // Non-sensor neurons in topological order
}

// New builds a network from the genome's nodes and enabled genes.
func New(g *neat.Genome) (*Network, error) {
	net := &Network{neurons: make([]neuron, 0, len(g.Nodes))}
	index := make(map[int]int, len(g.Nodes))
	dag := simple.NewDirectedGraph()

	for _, n := range g.Nodes {
		if _, exists := index[n.ID]; exists {
			return nil, fmt.Errorf("network from genome %d: duplicate node %d", g.ID, n.ID)
		}
		activation, err := neat.GetActivation(n.Function)
		if err != nil {
			return nil, fmt.Errorf("network from genome %d: node %d: %w", g.ID, n.ID, err)
		}
		idx := len(net.neurons)
		index[n.ID] = idx
		net.neurons = append(net.neurons, neuron{
			id:         n.ID,
			place:      n.Place,
			sensor:     n.IsSensor(),
			activation: activation,
		})
		dag.AddNode(simple.Node(n.ID))

		switch {
		case n.IsSensor() && n.Place == neat.Bias:
			net.biases = append(net.biases, idx)
		case n.IsSensor():
			net.inputs = append(net.inputs, idx)
		case n.Place == neat.Output:
			net.outputs = append(net.outputs, idx)
		}
	}

	for _, gene := range g.Genes {
		if !gene.Enabled {
			continue
		}
		from, ok := index[gene.InNode]
		if !ok {
			return nil, fmt.Errorf("network from genome %d: input node %d: %w", g.ID, gene.InNode, neat.ErrMissingNode)
		}
		to, ok := index[gene.OutNode]
		if !ok {
			return nil, fmt.Errorf("network from genome %d: output node %d: %w", g.ID, gene.OutNode, neat.ErrMissingNode)
		}
		if net.neurons[to].sensor {
			continue
		}

		recurrent := gene.Recurrent || gene.InNode == gene.OutNode
		net.neurons[to].incoming = append(net.neurons[to].incoming, synapse{
			from:      from,
			weight:    gene.Weight,
			recurrent: recurrent,
		})
		if !recurrent {
			dag.SetEdge(dag.NewEdge(simple.Node(gene.InNode), simple.Node(gene.OutNode)))
		}
	}

	sorted, err := topo.SortStabilized(dag, byID)
	if err != nil {
		return nil, fmt.Errorf("network from genome %d: non-recurrent links form a cycle: %w", g.ID, err)
	}
	for _, n := range sorted {
		idx := index[int(n.ID())]
		if !net.neurons[idx].sensor {
			net.evalOrder = append(net.evalOrder, idx)
		}
	}

	return net, nil
}

func byID(nodes []graph.Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID() < nodes[j].ID() })
}

// NumInputs returns the number of input sensors, not counting biases.
func (net *Network) NumInputs() int {
	return len(net.inputs)
}

// NumOutputs returns the number of output neurons.
func (net *Network) NumOutputs() int {
	return len(net.outputs)
}

// Activate loads the inputs into the sensors, propagates one step and
// returns the output neuron values. Neurons without enabled inputs stay at 0.
func (net *Network) Activate(inputs []float64) ([]float64, error) {
	if len(inputs) != len(net.inputs) {
		return nil, fmt.Errorf("mismatch between input count (%d) and network input nodes (%d)", len(inputs), len(net.inputs))
	}

	for i := range net.neurons {
		net.neurons[i].previous = net.neurons[i].value
	}
	for i, idx := range net.inputs {
		net.neurons[idx].value = inputs[i]
	}
	for _, idx := range net.biases {
		net.neurons[idx].value = biasValue
	}

	for _, idx := range net.evalOrder {
		n := &net.neurons[idx]
		if len(n.incoming) == 0 {
			continue
		}
		sum := 0.0
		for _, s := range n.incoming {
			src := &net.neurons[s.from]
			if s.recurrent {
				sum += src.previous * s.weight
			} else {
				sum += src.value * s.weight
			}
		}
		n.value = n.activation(sum)
	}

	outputs := make([]float64, len(net.outputs))
	for i, idx := range net.outputs {
		outputs[i] = net.neurons[idx].value
	}
	return outputs, nil
}

// Flush clears all activation state, including recurrent memory.
func (net *Network) Flush() {
	for i := range net.neurons {
		net.neurons[i].value = 0
		net.neurons[i].previous = 0
	}
}
