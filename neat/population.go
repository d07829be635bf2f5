package neat

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ErrEmptyPopulation is returned when an epoch is run on a population without organisms.
var ErrEmptyPopulation = errors.New("population has no organisms")

// Population holds the state of the NEAT evolutionary process: every
// organism and species, plus the counters that mint historical markers.
type Population struct {
	Config    *Config
	Organisms []*Organism
	Species   []*Species
	Logger    *slog.Logger

	CurNodeID   int
	CurInnovNum float64

	MeanFitness       float64
	Variance          float64
	StandardDeviation float64

	WinnerGen          int
	HighestFitness     float64
	HighestLastChanged int

	lastSpecies   int
	nextGenomeKey int
	rng           *rand.Rand
}

// NewPopulation seeds a population of pop_size organisms from a start genome.
// Each genome is a clone of start with freshly randomized weights and traits.
// The organisms are speciated before returning.
func NewPopulation(start *Genome, config *Config, rng *rand.Rand) (*Population, error) {
	if config.PopSize <= 0 {
		return nil, fmt.Errorf("failed to create population: pop_size must be positive, got %d", config.PopSize)
	}

	p := &Population{
		Config:        config,
		Organisms:     make([]*Organism, 0, config.PopSize),
		Logger:        slog.Default(),
		nextGenomeKey: 1,
		rng:           rng,
	}

	for count := 0; count < config.PopSize; count++ {
		genome, err := start.Clone(p.getNextKey())
		if err != nil {
			return nil, fmt.Errorf("failed to seed population: %w", err)
		}
		genome.MutateLinkWeights(rng, 1.0, 1.0, ColdGaussianMutation)
		genome.RandomizeTraits(rng)
		if err := genome.Verify(); err != nil {
			return nil, fmt.Errorf("failed to seed population: %w", err)
		}
		p.Organisms = append(p.Organisms, NewOrganism(0.0, genome, 1))
	}

	lastNode, _ := start.LastNodeID()
	lastInnov, _ := start.LastInnovation()
	p.CurNodeID = lastNode + 1
	p.CurInnovNum = lastInnov + 1

	p.Speciate()
	return p, nil
}

// getNextKey gets the next available genome key and increments the internal counter.
func (p *Population) getNextKey() int {
	key := p.nextGenomeKey
	p.nextGenomeKey++
	return key
}

// NextNodeID returns a fresh node ID and advances the counter.
func (p *Population) NextNodeID() int {
	id := p.CurNodeID
	p.CurNodeID++
	return id
}

// NextInnovation returns a fresh innovation number and advances the counter.
func (p *Population) NextInnovation() float64 {
	innov := p.CurInnovNum
	p.CurInnovNum++
	return innov
}

// Speciate places every organism that has no species yet into the first
// species whose representative is within compat_threshold, creating a new
// species when none is.
func (p *Population) Speciate() {
	for _, o := range p.Organisms {
		if o.SpeciesID != 0 {
			continue
		}
		p.speciateOrganism(o, false)
	}
	p.Logger.Debug("population speciated", "organisms", len(p.Organisms), "species", len(p.Species))
}

// speciateOrganism assigns o to a compatible species or founds a new one.
func (p *Population) speciateOrganism(o *Organism, novel bool) *Species {
	for _, s := range p.Species {
		rep := s.Representative()
		if rep == nil {
			continue
		}
		if o.Genome.Compatibility(rep.Genome, p.Config) < p.Config.CompatThreshold {
			s.AddOrganism(o)
			return s
		}
	}

	p.lastSpecies++
	s := NewSpecies(p.lastSpecies)
	s.Novel = novel
	s.AddOrganism(o)
	p.Species = append(p.Species, s)
	p.Logger.Debug("created new species", "species", s.ID, "genome", o.Genome.ID)
	return s
}

// SpeciesByID resolves an organism's species back-reference.
func (p *Population) SpeciesByID(id int) (*Species, bool) {
	for _, s := range p.Species {
		if s.ID == id {
			return s, true
		}
	}
	return nil, false
}

// Champion returns the organism with the highest original fitness.
func (p *Population) Champion() *Organism {
	var best *Organism
	maxFitness := math.Inf(-1)
	for _, o := range p.Organisms {
		if o.OrigFitness > maxFitness {
			maxFitness = o.OrigFitness
			best = o
		}
	}
	return best
}

// Verify checks the integrity of every genome in the population.
func (p *Population) Verify() error {
	for _, o := range p.Organisms {
		if err := o.Genome.Verify(); err != nil {
			return err
		}
	}
	return nil
}

// EpochReport summarizes the bookkeeping done by one epoch.
type EpochReport struct {
	Generation         int
	Organisms          int
	Species            int
	MeanFitness        float64
	Variance           float64
	StandardDeviation  float64
	ChampionFitness    float64
	HighestFitness     float64
	HighestLastChanged int
	Obliterated        int // Species ID flagged for obliteration, 0 if none
	Corrected          bool
	Collapsed          bool
	DeltaCoded         bool
	BabiesStolen       int
}

// LogValue implements slog.LogValuer.
func (r EpochReport) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("generation", r.Generation),
		slog.Int("organisms", r.Organisms),
		slog.Int("species", r.Species),
		slog.Float64("mean", r.MeanFitness),
		slog.Float64("stdev", r.StandardDeviation),
		slog.Float64("champion", r.ChampionFitness),
		slog.Float64("highest", r.HighestFitness),
		slog.Int("highest_last_changed", r.HighestLastChanged),
		slog.Int("obliterated", r.Obliterated),
		slog.Bool("corrected", r.Corrected),
		slog.Bool("collapsed", r.Collapsed),
		slog.Bool("delta_coded", r.DeltaCoded),
		slog.Int("babies_stolen", r.BabiesStolen),
	)
}

// Epoch computes how many offspring every species gets for the next
// generation. Organism fitness must already be set by the evaluator.
// The species' offspring counts always add up to the number of organisms.
func (p *Population) Epoch(generation int) (EpochReport, error) {
	report := EpochReport{Generation: generation}
	total := len(p.Organisms)
	if total == 0 {
		return report, fmt.Errorf("epoch %d: %w", generation, ErrEmptyPopulation)
	}
	report.Organisms = total

	// Organisms added since the last speciation still need a species
	p.Speciate()
	p.computeStatistics()
	report.MeanFitness = p.MeanFitness
	report.Variance = p.Variance
	report.StandardDeviation = p.StandardDeviation

	sorted := make([]*Species, len(p.Species))
	copy(sorted, p.Species)
	for _, s := range sorted {
		s.ComputeMaxAndAverageFitness()
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MaxFitness > sorted[j].MaxFitness
	})

	if s := p.obliterateWorst(sorted, generation); s != nil {
		report.Obliterated = s.ID
	}

	for _, s := range p.Species {
		s.AdjustFitness(p.Config)
	}

	totalFitness := 0.0
	for _, o := range p.Organisms {
		totalFitness += o.Fitness
	}
	overallAverage := totalFitness / float64(total)
	for _, o := range p.Organisms {
		o.ExpectedOffspring = o.Fitness / overallAverage
	}

	skim := 0.0
	totalExpected := 0
	for _, s := range p.Species {
		skim = s.CountOffspring(skim)
		totalExpected += s.ExpectedOffspring
	}

	if totalExpected < total {
		report.Corrected = true
		report.Collapsed = p.correctOffspring(total)
	}

	// Best species first, ranked by champion
	sort.SliceStable(sorted, func(i, j int) bool {
		return championFitness(sorted[i]) > championFitness(sorted[j])
	})

	best := sorted[0].Champion()
	best.PopChamp = true
	report.ChampionFitness = best.OrigFitness
	if best.OrigFitness > p.HighestFitness {
		p.HighestFitness = best.OrigFitness
		p.HighestLastChanged = 0
		p.Logger.Info("new population champion", "generation", generation, "fitness", best.OrigFitness, "species", sorted[0].ID)
	} else {
		p.HighestLastChanged++
	}

	if p.HighestLastChanged >= p.Config.DropoffAge+5 {
		p.deltaCode(sorted, total)
		report.DeltaCoded = true
	} else if p.Config.BabiesStolen > 0 {
		report.BabiesStolen = p.stealBabies(sorted)
	}

	p.Species = sorted
	report.Species = len(p.Species)
	report.HighestFitness = p.HighestFitness
	report.HighestLastChanged = p.HighestLastChanged
	return report, nil
}

// computeStatistics records mean, variance and standard deviation of organism fitness.
func (p *Population) computeStatistics() {
	fitness := make([]float64, len(p.Organisms))
	for i, o := range p.Organisms {
		fitness[i] = o.Fitness
	}
	if len(fitness) < 2 {
		p.MeanFitness, p.Variance, p.StandardDeviation = stat.Mean(fitness, nil), 0, 0
		return
	}
	p.MeanFitness, p.Variance = stat.MeanVariance(fitness, nil)
	p.StandardDeviation = math.Sqrt(p.Variance)
}

// correctOffspring hands the rounding shortfall to the species expecting the
// most offspring. If one extra offspring is not enough, that species gets the
// whole population. It reports whether the collapse fallback was used.
func (p *Population) correctOffspring(total int) bool {
	var best *Species
	maxExpected := 0
	finalExpected := 0
	for _, s := range p.Species {
		if s.ExpectedOffspring >= maxExpected {
			maxExpected = s.ExpectedOffspring
			best = s
		}
		finalExpected += s.ExpectedOffspring
	}
	best.ExpectedOffspring++
	finalExpected++

	if finalExpected >= total {
		return false
	}

	for _, s := range p.Species {
		s.ExpectedOffspring = 0
	}
	best.ExpectedOffspring = total
	p.Logger.Warn("population fitness collapsed, best species takes all offspring",
		"species", best.ID, "offspring", total)
	return true
}

func championFitness(s *Species) float64 {
	if champ := s.Champion(); champ != nil {
		return champ.OrigFitness
	}
	return math.Inf(-1)
}
