package neat

import "fmt"

// Organism is a genome together with its fitness bookkeeping.
// The population owns every organism; SpeciesID is a plain back-reference
// resolved through Population.SpeciesByID (0 when not yet assigned).
type Organism struct {
	Fitness     float64 // Shared fitness after Species.AdjustFitness
	OrigFitness float64 // Fitness as set by the evaluator
	Error       float64
	Winner      bool

	Genome    *Genome
	SpeciesID int

	ExpectedOffspring   float64
	Generation          int
	Eliminate           bool // Marked for death by fitness adjustment
	Champion            bool // Best of its species
	SuperChampOffspring int  // Extra offspring owed to a population champion
	PopChamp            bool // Best of the whole population
	PopChampChild       bool // Unchanged copy of the population champion
	HighFit             float64
	TimeAlive           int
	MutStructBaby       bool
	MateBaby            bool
	Modified            bool
}

// NewOrganism wraps a genome created at the given generation.
func NewOrganism(fitness float64, genome *Genome, generation int) *Organism {
	return &Organism{
		Fitness:    fitness,
		Genome:     genome,
		Generation: generation,
		Modified:   true,
	}
}

// String returns a string representation of the Organism.
func (o *Organism) String() string {
	return fmt.Sprintf("Organism(Genome: %d, Species: %d, Fitness: %.4f, Orig: %.4f, Expected: %.3f)",
		o.Genome.ID, o.SpeciesID, o.Fitness, o.OrigFitness, o.ExpectedOffspring)
}
