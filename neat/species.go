package neat

import (
	"fmt"
	"math"
	"sort"
)

// minFitness is the floor applied to shared fitness so it stays usable as a divisor.
const minFitness = 0.0001

// youngSpeciesAge is the age up to which age_significance boosts a species.
const youngSpeciesAge = 10

// Species represents a group of genetically similar organisms.
type Species struct {
	ID        int
	Organisms []*Organism // The first organism is the representative; after AdjustFitness it is also the champion

	AverageFitness float64
	MaxFitness     float64
	MaxFitnessEver float64

	Age                  int
	AgeOfLastImprovement int
	ExpectedOffspring    int
	Obliterate           bool // Flagged for a stagnation penalty this epoch
	Novel                bool // Created during the last reproduction; not aged until the next one
}

// NewSpecies creates an empty species of age 1.
func NewSpecies(id int) *Species {
	return &Species{
		ID:  id,
		Age: 1,
	}
}

// AddOrganism appends an organism and points its back-reference at the species.
func (s *Species) AddOrganism(o *Organism) {
	s.Organisms = append(s.Organisms, o)
	o.SpeciesID = s.ID
}

// RemoveOrganism drops an organism from the species. It reports whether the organism was a member.
func (s *Species) RemoveOrganism(o *Organism) bool {
	for i, member := range s.Organisms {
		if member == o {
			s.Organisms = append(s.Organisms[:i], s.Organisms[i+1:]...)
			return true
		}
	}
	return false
}

// Representative returns the organism new candidates are compared against.
func (s *Species) Representative() *Organism {
	if len(s.Organisms) == 0 {
		return nil
	}
	return s.Organisms[0]
}

// Champion returns the best organism of the species once AdjustFitness has sorted it.
func (s *Species) Champion() *Organism {
	return s.Representative()
}

// ComputeMaxAndAverageFitness refreshes MaxFitness and AverageFitness from the current member fitness.
func (s *Species) ComputeMaxAndAverageFitness() {
	if len(s.Organisms) == 0 {
		s.MaxFitness, s.AverageFitness = 0, 0
		return
	}
	total := 0.0
	maxFitness := math.Inf(-1)
	for _, o := range s.Organisms {
		total += o.Fitness
		maxFitness = math.Max(maxFitness, o.Fitness)
	}
	s.MaxFitness = maxFitness
	s.AverageFitness = total / float64(len(s.Organisms))
}

// LastImproved returns the number of generations since the species last improved.
func (s *Species) LastImproved() int {
	return s.Age - s.AgeOfLastImprovement
}

// AdjustFitness applies stagnation and age modifiers, shares fitness across
// the species and marks the champion and the organisms that will not
// reproduce. Organisms end up sorted by shared fitness, best first.
func (s *Species) AdjustFitness(config *Config) {
	if len(s.Organisms) == 0 {
		return
	}

	ageDebt := (s.Age - s.AgeOfLastImprovement + 1) - config.DropoffAge
	if ageDebt == 0 {
		ageDebt = 1
	}

	size := float64(len(s.Organisms))
	for _, o := range s.Organisms {
		o.OrigFitness = o.Fitness

		// Stagnant and obliterated species are heavily penalized
		if ageDebt >= 1 || s.Obliterate {
			o.Fitness *= 0.01
		}
		if s.Age <= youngSpeciesAge {
			o.Fitness *= config.AgeSignificance
		}

		o.Fitness = math.Max(o.Fitness/size, minFitness)
	}

	// Clamped members tie on shared fitness; raw fitness decides between them
	sort.SliceStable(s.Organisms, func(i, j int) bool {
		a, b := s.Organisms[i], s.Organisms[j]
		if a.Fitness != b.Fitness {
			return a.Fitness > b.Fitness
		}
		return a.OrigFitness > b.OrigFitness
	})

	champion := s.Organisms[0]
	if champion.OrigFitness > s.MaxFitnessEver {
		s.AgeOfLastImprovement = s.Age
		s.MaxFitnessEver = champion.OrigFitness
	}
	champion.Champion = true

	numParents := int(math.Floor(config.SurvivalThresh*size)) + 1
	for i := numParents; i < len(s.Organisms); i++ {
		s.Organisms[i].Eliminate = true
	}
}

// CountOffspring converts the members' expected offspring into a whole
// number for the species. skim carries the fractional remainder across
// species; the updated carry is returned for the next species.
func (s *Species) CountOffspring(skim float64) float64 {
	s.ExpectedOffspring = 0
	for _, o := range s.Organisms {
		whole, frac := splitOffspring(o.ExpectedOffspring)
		s.ExpectedOffspring += whole
		skim += frac

		if skim > 1.0 {
			extra, rest := splitOffspring(skim)
			s.ExpectedOffspring += extra
			skim = rest
		}
	}
	return skim
}

// String returns a string representation of the Species.
func (s *Species) String() string {
	return fmt.Sprintf("Species(ID: %d, Age: %d, Size: %d, Max: %.4f, Avg: %.4f, Expected: %d)",
		s.ID, s.Age, len(s.Organisms), s.MaxFitness, s.AverageFitness, s.ExpectedOffspring)
}
