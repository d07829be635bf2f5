package neat

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Genome integrity errors returned by Verify and Clone.
var (
	ErrMissingNode     = errors.New("link node not found in node list")
	ErrNodesOutOfOrder = errors.New("nodes out of order")
	ErrDuplicateGene   = errors.New("duplicated genes")
	ErrUnknownTrait    = errors.New("trait not found in trait list")
)

// maxWeight caps the magnitude of link weights after mutation.
const maxWeight = 8.0

// Mutator selects how MutateLinkWeights changes a weight.
type Mutator int

const (
	// GaussianMutation perturbs, replaces or keeps each weight depending on a second draw.
	GaussianMutation Mutator = iota
	// ColdGaussianMutation replaces every eligible weight outright.
	ColdGaussianMutation
)

// Genome is the genotype of an organism: traits, nodes sorted by ID and genes
// sorted by innovation number. Nodes and links refer to traits and nodes by
// ID, so a genome never shares state with another genome.
type Genome struct {
	ID     int
	Traits []Trait
	Nodes  []Node
	Genes  []Gene
}

// NewGenome creates an empty genome.
func NewGenome(id int) *Genome {
	return &Genome{ID: id}
}

// AddTrait appends a trait to the genome's trait list.
func (g *Genome) AddTrait(t Trait) {
	g.Traits = append(g.Traits, t)
}

// AddNode inserts a node keeping the node list ordered by ID.
func (g *Genome) AddNode(n Node) {
	i := sort.Search(len(g.Nodes), func(i int) bool { return g.Nodes[i].ID > n.ID })
	g.Nodes = append(g.Nodes, Node{})
	copy(g.Nodes[i+1:], g.Nodes[i:])
	g.Nodes[i] = n
}

// AddGene inserts a gene keeping the gene list ordered by innovation number.
func (g *Genome) AddGene(gene Gene) {
	i := sort.Search(len(g.Genes), func(i int) bool { return g.Genes[i].Innovation() > gene.Innovation() })
	g.Genes = append(g.Genes, Gene{})
	copy(g.Genes[i+1:], g.Genes[i:])
	g.Genes[i] = gene
}

// LastNodeID returns the ID of the last node, if any.
func (g *Genome) LastNodeID() (int, bool) {
	if len(g.Nodes) == 0 {
		return 0, false
	}
	return g.Nodes[len(g.Nodes)-1].ID, true
}

// LastInnovation returns the innovation number of the last gene, if any.
func (g *Genome) LastInnovation() (float64, bool) {
	if len(g.Genes) == 0 {
		return 0, false
	}
	return g.Genes[len(g.Genes)-1].Innovation(), true
}

// Node returns the node with the given ID.
func (g *Genome) Node(id int) (*Node, bool) {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i], true
		}
	}
	return nil, false
}

// Compatibility measures the genetic distance between two genomes by walking
// both gene lists in innovation order. Unmatched genes are disjoint while both
// lists still have genes left and excess once one list runs out. Matching
// genes contribute the mean difference of their mutation numbers; with no
// matching genes that term is zero.
func (g *Genome) Compatibility(other *Genome, config *Config) float64 {
	var numDisjoint, numExcess, numMatching, mutDiffTotal float64

	i, j := 0, 0
	for i < len(g.Genes) || j < len(other.Genes) {
		switch {
		case i >= len(g.Genes):
			j++
			numExcess++
		case j >= len(other.Genes):
			i++
			numExcess++
		default:
			p1, p2 := g.Genes[i], other.Genes[j]
			switch {
			case p1.Innovation() == p2.Innovation():
				mutDiffTotal += math.Abs(p1.MutationNum - p2.MutationNum)
				numMatching++
				i++
				j++
			case p1.Innovation() < p2.Innovation():
				numDisjoint++
				i++
			default:
				numDisjoint++
				j++
			}
		}
	}

	compatibility := config.DisjointCoeff*numDisjoint + config.ExcessCoeff*numExcess
	if numMatching > 0 {
		compatibility += config.MutdiffCoeff * (mutDiffTotal / numMatching)
	}
	return compatibility
}

// MutateLinkWeights perturbs the weight of every gene that is not frozen.
//
// Replacement ("cold") mutation is biased towards the tail of the genome,
// where the least time-tested genes live: in genomes of ten or more genes
// the last 20% use a wider band. A coin flip per call makes the whole
// mutation severe. The weight is clamped to [-8, 8] and the gene's
// MutationNum follows the new weight.
func (g *Genome) MutateLinkWeights(rng *rand.Rand, power, rate float64, mode Mutator) {
	severe := randBool(rng)

	geneTotal := float64(len(g.Genes))
	endPart := geneTotal * 0.8
	num := 0.0

	for i := range g.Genes {
		gene := &g.Genes[i]
		if gene.Frozen {
			continue
		}

		var gaussPoint, coldGaussPoint float64
		switch {
		case severe:
			gaussPoint = 0.3
			coldGaussPoint = 0.1
		case geneTotal >= 10.0 && num > endPart:
			gaussPoint = 0.5
			coldGaussPoint = 0.3
		default:
			gaussPoint = 1.0 - rate
			if randBool(rng) {
				coldGaussPoint = 1.0 - rate - 0.1
			} else {
				coldGaussPoint = 1.0 - rate
			}
		}

		randomNum := randPosNeg(rng) * rng.Float64() * power

		switch mode {
		case GaussianMutation:
			choice := rng.Float64()
			if choice > gaussPoint {
				gene.Weight += randomNum
			} else if choice > coldGaussPoint {
				gene.Weight = randomNum
			}
		case ColdGaussianMutation:
			gene.Weight = randomNum
		}

		gene.Weight = clamp(gene.Weight, -maxWeight, maxWeight)
		gene.MutationNum = gene.Weight

		num++
	}
}

// RandomizeTraits points every node and link at a uniformly chosen trait of the genome.
func (g *Genome) RandomizeTraits(rng *rand.Rand) {
	if len(g.Traits) == 0 {
		return
	}
	for i := range g.Nodes {
		g.Nodes[i].TraitID = g.Traits[rng.Intn(len(g.Traits))].ID
	}
	for i := range g.Genes {
		g.Genes[i].TraitID = g.Traits[rng.Intn(len(g.Traits))].ID
	}
}

// MutateRandomTrait replaces one trait with a perturbed copy under the same ID.
// Each parameter changes with probability 1-trait_param_mut_prob by up to
// trait_mutation_power and stays within [0, 1].
func (g *Genome) MutateRandomTrait(rng *rand.Rand, config *Config) {
	if len(g.Traits) == 0 {
		return
	}
	idx := rng.Intn(len(g.Traits))
	params := g.Traits[idx].Params
	for i := range params {
		if rng.Float64() > config.TraitParamMutProb {
			params[i] += randPosNeg(rng) * rng.Float64() * config.TraitMutationPower
			params[i] = clamp(params[i], 0.0, 1.0)
		}
	}
	g.Traits[idx] = NewTrait(g.Traits[idx].ID, params)
}

// MutateLinkTrait assigns a random trait to a random gene, times times.
// Frozen genes keep their trait. The gene's MutationNum drifts by up to linktrait_mut_sig.
func (g *Genome) MutateLinkTrait(rng *rand.Rand, times int, config *Config) {
	if len(g.Traits) == 0 || len(g.Genes) == 0 {
		return
	}
	for loop := 0; loop < times; loop++ {
		trait := g.Traits[rng.Intn(len(g.Traits))]
		gene := &g.Genes[rng.Intn(len(g.Genes))]
		if gene.Frozen {
			continue
		}
		gene.TraitID = trait.ID
		gene.MutationNum += randPosNeg(rng) * rng.Float64() * config.LinkTraitMutSig
	}
}

// MutateNodeTrait assigns a random trait to a random node, times times.
// Genes touching a changed node drift their MutationNum by up to nodetrait_mut_sig.
func (g *Genome) MutateNodeTrait(rng *rand.Rand, times int, config *Config) {
	if len(g.Traits) == 0 || len(g.Nodes) == 0 {
		return
	}
	for loop := 0; loop < times; loop++ {
		trait := g.Traits[rng.Intn(len(g.Traits))]
		node := &g.Nodes[rng.Intn(len(g.Nodes))]
		if node.Frozen {
			continue
		}
		node.TraitID = trait.ID
		for i := range g.Genes {
			gene := &g.Genes[i]
			if gene.InNode == node.ID || gene.OutNode == node.ID {
				gene.MutationNum += randPosNeg(rng) * rng.Float64() * config.NodeTraitMutSig
			}
		}
	}
}

// MutateToggleEnable flips the enable flag of a random gene, times times.
// A gene is only disabled when another enabled gene leaves the same input
// node, so no part of the network is cut off.
func (g *Genome) MutateToggleEnable(rng *rand.Rand, times int) {
	if len(g.Genes) == 0 {
		return
	}
	for count := 0; count < times; count++ {
		idx := rng.Intn(len(g.Genes))
		gene := &g.Genes[idx]
		if !gene.Enabled {
			gene.Enabled = true
			continue
		}
		for j := range g.Genes {
			other := &g.Genes[j]
			if j != idx && other.Enabled && other.InNode == gene.InNode {
				gene.Enabled = false
				break
			}
		}
	}
}

// MutateGeneReenable enables the first disabled gene.
func (g *Genome) MutateGeneReenable() {
	for i := range g.Genes {
		if !g.Genes[i].Enabled {
			g.Genes[i].Enabled = true
			return
		}
	}
}

// Clone creates a deep copy of the genome under a new ID.
// Trait references that are unset or unknown default to the genome's first
// trait. A gene whose endpoint is not among the nodes is an error.
func (g *Genome) Clone(newID int) (*Genome, error) {
	clone := &Genome{
		ID:     newID,
		Traits: make([]Trait, 0, len(g.Traits)),
		Nodes:  make([]Node, 0, len(g.Nodes)),
		Genes:  make([]Gene, 0, len(g.Genes)),
	}

	traitIndex := make(map[int]int, len(g.Traits))
	for _, t := range g.Traits {
		traitIndex[t.ID] = len(clone.Traits)
		clone.Traits = append(clone.Traits, t)
	}
	remapTrait := func(id int) int {
		if idx, ok := traitIndex[id]; ok && id != NoTrait {
			return clone.Traits[idx].ID
		}
		if len(clone.Traits) > 0 {
			return clone.Traits[0].ID
		}
		return NoTrait
	}

	nodeIndex := make(map[int]int, len(g.Nodes))
	for _, n := range g.Nodes {
		dup := n.Duplicate()
		dup.TraitID = remapTrait(n.TraitID)
		nodeIndex[dup.ID] = len(clone.Nodes)
		clone.Nodes = append(clone.Nodes, dup)
	}

	for _, gene := range g.Genes {
		in, ok := nodeIndex[gene.InNode]
		if !ok {
			return nil, fmt.Errorf("clone genome %d: input node %d of gene %g: %w", g.ID, gene.InNode, gene.Innovation(), ErrMissingNode)
		}
		out, ok := nodeIndex[gene.OutNode]
		if !ok {
			return nil, fmt.Errorf("clone genome %d: output node %d of gene %g: %w", g.ID, gene.OutNode, gene.Innovation(), ErrMissingNode)
		}
		gene.InNode = clone.Nodes[in].ID
		gene.OutNode = clone.Nodes[out].ID
		gene.TraitID = remapTrait(gene.TraitID)
		clone.Genes = append(clone.Genes, gene)
	}

	return clone, nil
}

// Verify checks the structural integrity of the genome and returns the first
// violation found: a gene endpoint missing from the node list, node IDs out
// of order, duplicated genes, then trait references that do not resolve.
func (g *Genome) Verify() error {
	nodeIDs := make(map[int]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		nodeIDs[n.ID] = struct{}{}
	}
	for _, gene := range g.Genes {
		if _, ok := nodeIDs[gene.InNode]; !ok {
			return fmt.Errorf("genome %d: input node %d in %s: %w", g.ID, gene.InNode, gene, ErrMissingNode)
		}
		if _, ok := nodeIDs[gene.OutNode]; !ok {
			return fmt.Errorf("genome %d: output node %d in %s: %w", g.ID, gene.OutNode, gene, ErrMissingNode)
		}
	}

	for i := 1; i < len(g.Nodes); i++ {
		if g.Nodes[i].ID < g.Nodes[i-1].ID {
			return fmt.Errorf("genome %d: node %d follows node %d: %w", g.ID, g.Nodes[i].ID, g.Nodes[i-1].ID, ErrNodesOutOfOrder)
		}
	}

	for i := range g.Genes {
		for j := range g.Genes {
			if i == j {
				continue
			}
			a, b := g.Genes[i], g.Genes[j]
			if a.Link.Equal(b.Link) || (a.Enabled && b.Enabled && a.SameStructure(b.Link)) {
				return fmt.Errorf("genome %d: %s and %s: %w", g.ID, a, b, ErrDuplicateGene)
			}
		}
	}

	traitIDs := make(map[int]struct{}, len(g.Traits))
	for _, t := range g.Traits {
		traitIDs[t.ID] = struct{}{}
	}
	for _, n := range g.Nodes {
		if _, ok := traitIDs[n.TraitID]; n.TraitID != NoTrait && !ok {
			return fmt.Errorf("genome %d: trait %d of node %d: %w", g.ID, n.TraitID, n.ID, ErrUnknownTrait)
		}
	}
	for _, gene := range g.Genes {
		if _, ok := traitIDs[gene.TraitID]; gene.TraitID != NoTrait && !ok {
			return fmt.Errorf("genome %d: trait %d of %s: %w", g.ID, gene.TraitID, gene, ErrUnknownTrait)
		}
	}

	return nil
}
