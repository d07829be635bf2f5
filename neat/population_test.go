package neat

import (
	"io"
	"log/slog"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestPopulation builds an empty population around organisms created
// from the given genomes, without speciating them.
func newTestPopulation(config *Config, genomes ...*Genome) *Population {
	p := &Population{
		Config:        config,
		Logger:        discardLogger(),
		nextGenomeKey: 1000,
		rng:           rand.New(rand.NewSource(1)),
	}
	for _, g := range genomes {
		p.Organisms = append(p.Organisms, NewOrganism(0, g, 1))
	}
	return p
}

func newSeededPopulation(t *testing.T, config *Config, seed int64) *Population {
	t.Helper()
	p, err := NewPopulation(newTestGenome(0), config, rand.New(rand.NewSource(seed)))
	require.NoError(t, err)
	p.Logger = discardLogger()
	return p
}

func totalExpected(p *Population) int {
	total := 0
	for _, s := range p.Species {
		total += s.ExpectedOffspring
	}
	return total
}

func TestNewPopulation(t *testing.T) {
	config := DefaultConfig()
	config.PopSize = 25
	p := newSeededPopulation(t, config, 1)

	require.Len(t, p.Organisms, 25)
	require.NoError(t, p.Verify())
	assert.Equal(t, 5, p.CurNodeID)
	assert.Equal(t, 4.0, p.CurInnovNum)

	ids := map[int]bool{}
	members := 0
	for _, o := range p.Organisms {
		assert.False(t, ids[o.Genome.ID], "genome id %d reused", o.Genome.ID)
		ids[o.Genome.ID] = true
		assert.Equal(t, 1, o.Generation)

		s, ok := p.SpeciesByID(o.SpeciesID)
		require.True(t, ok)
		assert.Contains(t, s.Organisms, o)
	}
	for _, s := range p.Species {
		members += len(s.Organisms)
		assert.Equal(t, 1, s.Age)
	}
	assert.Equal(t, 25, members)
}

func TestNewPopulationRejectsCorruptStart(t *testing.T) {
	config := DefaultConfig()
	start := newTestGenome(0)
	start.AddGene(NewGene(1, 2, 8, 1, false, 4, 0, true))

	_, err := NewPopulation(start, config, rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, ErrMissingNode)

	start = newTestGenome(0)
	start.AddGene(NewGene(1, 2, 4, 1, false, 4, 0, true))
	_, err = NewPopulation(start, config, rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, ErrDuplicateGene)
}

func TestMarkerCounters(t *testing.T) {
	p := newSeededPopulation(t, DefaultConfig(), 2)
	assert.Equal(t, 5, p.NextNodeID())
	assert.Equal(t, 6, p.NextNodeID())
	assert.Equal(t, 4.0, p.NextInnovation())
	assert.Equal(t, 5.0, p.NextInnovation())
	assert.Equal(t, 7, p.CurNodeID)
}

func TestSpeciateSplitsOnDisjointGene(t *testing.T) {
	config := DefaultConfig()
	config.CompatThreshold = 0.5
	config.DisjointCoeff = 1.0
	config.ExcessCoeff = 0
	config.MutdiffCoeff = 0

	a := newTestGenome(1)
	b := newTestGenome(2)
	b.Genes = append(b.Genes[:1], b.Genes[2:]...)
	require.Equal(t, 1.0, a.Compatibility(b, config))

	p := newTestPopulation(config, a, b)
	p.Speciate()
	require.Len(t, p.Species, 2)
	assert.NotEqual(t, p.Organisms[0].SpeciesID, p.Organisms[1].SpeciesID)

	config.CompatThreshold = 1.5
	p = newTestPopulation(config, a, b)
	p.Speciate()
	assert.Len(t, p.Species, 1)
}

func TestSpeciateIsFirstFit(t *testing.T) {
	config := DefaultConfig()
	config.CompatThreshold = 2.5
	config.DisjointCoeff = 1.0
	config.ExcessCoeff = 1.0
	config.MutdiffCoeff = 0

	a := genomeWithInnovations(1, 1, 2, 3)
	b := genomeWithInnovations(2, 1, 4, 5)
	// Compatible with both a and b
	c := genomeWithInnovations(3, 1, 2, 4)

	require.GreaterOrEqual(t, a.Compatibility(b, config), config.CompatThreshold)
	require.Less(t, c.Compatibility(a, config), config.CompatThreshold)
	require.Less(t, c.Compatibility(b, config), config.CompatThreshold)

	p := newTestPopulation(config, a, b, c)
	p.Speciate()
	require.Len(t, p.Species, 2)
	assert.Equal(t, p.Organisms[0].SpeciesID, p.Organisms[2].SpeciesID)
}

func TestEpochEmptyPopulation(t *testing.T) {
	p := newTestPopulation(DefaultConfig())
	_, err := p.Epoch(1)
	assert.ErrorIs(t, err, ErrEmptyPopulation)
}

func TestEpochConservesOffspring(t *testing.T) {
	for _, tc := range []struct {
		name   string
		modify func(*Config)
	}{
		{name: "defaults", modify: func(c *Config) {}},
		{name: "tight threshold", modify: func(c *Config) { c.CompatThreshold = 0.3 }},
		{name: "babies stolen", modify: func(c *Config) {
			c.CompatThreshold = 0.5
			c.BabiesStolen = 12
		}},
		{name: "short dropoff", modify: func(c *Config) {
			c.CompatThreshold = 0.5
			c.DropoffAge = 2
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			config := DefaultConfig()
			config.PopSize = 60
			tc.modify(config)
			p := newSeededPopulation(t, config, 37)
			rng := rand.New(rand.NewSource(41))

			for gen := 1; gen <= 45; gen++ {
				for _, o := range p.Organisms {
					o.Fitness = rng.Float64() * 10
				}
				report, err := p.Epoch(gen)
				require.NoError(t, err)
				require.Equal(t, len(p.Organisms), totalExpected(p), "generation %d", gen)
				assert.Equal(t, len(p.Species), report.Species)

				require.NoError(t, p.Reproduce(gen+1))
				require.Len(t, p.Organisms, config.PopSize, "generation %d", gen)
				require.NoError(t, p.Verify())
			}
		})
	}
}

func TestEpochDeltaCodingOnStagnation(t *testing.T) {
	config := DefaultConfig()
	config.PopSize = 40
	config.DropoffAge = 1
	config.CompatThreshold = 0.3
	p := newSeededPopulation(t, config, 43)

	deltaCoded := false
	for gen := 1; gen <= 10 && !deltaCoded; gen++ {
		for _, o := range p.Organisms {
			o.Fitness = 1.0
		}
		report, err := p.Epoch(gen)
		require.NoError(t, err)
		require.Equal(t, len(p.Organisms), totalExpected(p))

		if report.DeltaCoded {
			deltaCoded = true
			assert.Zero(t, p.HighestLastChanged)
			champOffspring := p.Species[0].Champion().SuperChampOffspring
			if len(p.Species) > 1 {
				champOffspring += p.Species[1].Champion().SuperChampOffspring
			}
			assert.Equal(t, len(p.Organisms), champOffspring)
		}
		require.NoError(t, p.Reproduce(gen+1))
	}
	assert.True(t, deltaCoded)
}

func TestEpochMarksPopulationChampion(t *testing.T) {
	config := DefaultConfig()
	config.PopSize = 30
	config.CompatThreshold = 0.3
	p := newSeededPopulation(t, config, 47)

	for i, o := range p.Organisms {
		o.Fitness = float64(i % 7)
	}
	p.Organisms[11].Fitness = 50

	report, err := p.Epoch(1)
	require.NoError(t, err)
	assert.True(t, p.Organisms[11].PopChamp)
	assert.Equal(t, 50.0, report.ChampionFitness)
	assert.Equal(t, 50.0, p.HighestFitness)
	assert.Same(t, p.Organisms[11], p.Champion())
	assert.Same(t, p.Organisms[11], p.Species[0].Champion())

	for i := 1; i < len(p.Species); i++ {
		assert.GreaterOrEqual(t, championFitness(p.Species[i-1]), championFitness(p.Species[i]))
	}
}

func TestEpochObliteratesWorstOldSpecies(t *testing.T) {
	config := DefaultConfig()
	config.CompatThreshold = 0.5
	config.DisjointCoeff = 1.0

	p := newTestPopulation(config,
		genomeWithInnovations(1, 1),
		genomeWithInnovations(2, 2),
		genomeWithInnovations(3, 3))
	p.Speciate()
	require.Len(t, p.Species, 3)

	p.Organisms[0].Fitness = 9
	p.Organisms[1].Fitness = 5
	p.Organisms[2].Fitness = 1
	p.Species[0].Age = 25
	p.Species[1].Age = 25
	p.Species[2].Age = 3
	worstOld := p.Species[1].ID

	report, err := p.Epoch(29)
	require.NoError(t, err)
	assert.Zero(t, report.Obliterated)

	for i, f := range []float64{9, 5, 1} {
		p.Organisms[i].Fitness = f
	}
	report, err = p.Epoch(30)
	require.NoError(t, err)
	assert.Equal(t, worstOld, report.Obliterated)
	s, ok := p.SpeciesByID(worstOld)
	require.True(t, ok)
	assert.True(t, s.Obliterate)
	assert.Equal(t, 3, totalExpected(p))
}

func TestCorrectOffspring(t *testing.T) {
	newSpecies := func(expected ...int) *Population {
		p := newTestPopulation(DefaultConfig())
		for i, e := range expected {
			s := newTestSpecies(i+1, 1)
			s.ExpectedOffspring = e
			p.Species = append(p.Species, s)
		}
		return p
	}

	p := newSpecies(4, 5)
	assert.False(t, p.correctOffspring(10))
	assert.Equal(t, 4, p.Species[0].ExpectedOffspring)
	assert.Equal(t, 6, p.Species[1].ExpectedOffspring)

	// Ties go to the species found last
	p = newSpecies(5, 5)
	assert.False(t, p.correctOffspring(11))
	assert.Equal(t, 5, p.Species[0].ExpectedOffspring)
	assert.Equal(t, 6, p.Species[1].ExpectedOffspring)

	p = newSpecies(3, 4, 1)
	assert.True(t, p.correctOffspring(10))
	assert.Equal(t, 0, p.Species[0].ExpectedOffspring)
	assert.Equal(t, 10, p.Species[1].ExpectedOffspring)
	assert.Equal(t, 0, p.Species[2].ExpectedOffspring)
}

func TestDeltaCode(t *testing.T) {
	p := newTestPopulation(DefaultConfig())
	sorted := []*Species{newTestSpecies(1, 3), newTestSpecies(2, 2), newTestSpecies(3, 1)}
	for _, s := range sorted {
		s.ExpectedOffspring = 7
		s.Age = 12
	}
	p.HighestLastChanged = 20

	p.deltaCode(sorted, 21)
	assert.Equal(t, 10, sorted[0].ExpectedOffspring)
	assert.Equal(t, 11, sorted[1].ExpectedOffspring)
	assert.Equal(t, 0, sorted[2].ExpectedOffspring)
	assert.Equal(t, 10, sorted[0].Champion().SuperChampOffspring)
	assert.Equal(t, 11, sorted[1].Champion().SuperChampOffspring)
	assert.Equal(t, 12, sorted[0].AgeOfLastImprovement)
	assert.Zero(t, p.HighestLastChanged)

	single := []*Species{newTestSpecies(4, 1)}
	p.deltaCode(single, 21)
	assert.Equal(t, 21, single[0].ExpectedOffspring)
	assert.Equal(t, 21, single[0].Champion().SuperChampOffspring)
}

func TestStealBabies(t *testing.T) {
	config := DefaultConfig()
	config.BabiesStolen = 10
	config.DropoffAge = 15
	p := newTestPopulation(config)

	sorted := []*Species{
		newTestSpecies(1, 4),
		newTestSpecies(2, 3),
		newTestSpecies(3, 2),
		newTestSpecies(4, 1),
	}
	for i, s := range sorted {
		s.Age = 10
		s.AgeOfLastImprovement = 10
		s.ExpectedOffspring = 5
		if i == 3 {
			s.ExpectedOffspring = 20
		}
	}

	stolen := p.stealBabies(sorted)
	assert.Equal(t, 10, stolen)

	total := 0
	for _, s := range sorted {
		total += s.ExpectedOffspring
	}
	assert.Equal(t, 35, total)
	assert.GreaterOrEqual(t, sorted[0].ExpectedOffspring, 7)
	assert.Equal(t, 7, sorted[1].ExpectedOffspring)
	assert.Equal(t, 6, sorted[2].ExpectedOffspring)
	assert.Equal(t, 2, sorted[1].Champion().SuperChampOffspring)
	assert.Equal(t, 1, sorted[2].Champion().SuperChampOffspring)
}

func TestStealBabiesSkipsYoungAndDyingSpecies(t *testing.T) {
	config := DefaultConfig()
	config.BabiesStolen = 5
	config.DropoffAge = 15
	p := newTestPopulation(config)

	sorted := []*Species{
		newTestSpecies(1, 3),
		newTestSpecies(2, 2),
		newTestSpecies(3, 1),
	}
	sorted[0].Age, sorted[0].AgeOfLastImprovement = 40, 0 // dying
	sorted[1].Age, sorted[1].AgeOfLastImprovement = 10, 10
	sorted[2].Age = 3 // too young to be robbed
	for _, s := range sorted {
		s.ExpectedOffspring = 6
	}

	stolen := p.stealBabies(sorted)
	assert.Equal(t, 5, stolen)

	// Only species 2 is robbed; it and species 3 get a fifth each and the rest goes to the best
	assert.Equal(t, 2, sorted[1].ExpectedOffspring)
	assert.Equal(t, 7, sorted[2].ExpectedOffspring)
	assert.Equal(t, 9, sorted[0].ExpectedOffspring)
	assert.Equal(t, 3, sorted[0].Champion().SuperChampOffspring)
}

func TestReproduceReplacesGeneration(t *testing.T) {
	config := DefaultConfig()
	config.PopSize = 40
	config.CompatThreshold = 0.5
	p := newSeededPopulation(t, config, 53)
	rng := rand.New(rand.NewSource(59))

	for _, o := range p.Organisms {
		o.Fitness = rng.Float64()
	}
	_, err := p.Epoch(1)
	require.NoError(t, err)

	old := map[*Organism]bool{}
	oldIDs := map[int]bool{}
	for _, o := range p.Organisms {
		old[o] = true
		oldIDs[o.Genome.ID] = true
	}

	require.NoError(t, p.Reproduce(2))
	require.Len(t, p.Organisms, 40)

	members := 0
	for _, s := range p.Species {
		require.NotEmpty(t, s.Organisms)
		members += len(s.Organisms)
		assert.False(t, s.Novel)
		assert.False(t, s.Obliterate)
	}
	assert.Equal(t, 40, members)

	for _, o := range p.Organisms {
		assert.False(t, old[o])
		assert.False(t, oldIDs[o.Genome.ID])
		assert.Equal(t, 2, o.Generation)
		_, ok := p.SpeciesByID(o.SpeciesID)
		assert.True(t, ok)
	}
}

func speciesMembers(p *Population) map[int][]*Organism {
	members := map[int][]*Organism{}
	for _, s := range p.Species {
		members[s.ID] = append([]*Organism(nil), s.Organisms...)
	}
	return members
}

// newMultiSpeciesPopulation returns a population after one epoch with at least two species.
func newMultiSpeciesPopulation(t *testing.T) *Population {
	t.Helper()
	config := DefaultConfig()
	config.PopSize = 40
	config.CompatThreshold = 0.5
	p := newSeededPopulation(t, config, 53)
	rng := rand.New(rand.NewSource(59))
	for _, o := range p.Organisms {
		o.Fitness = rng.Float64()
	}
	_, err := p.Epoch(1)
	require.NoError(t, err)
	require.Greater(t, len(p.Species), 1)
	return p
}

func TestReproduceRejectsOversizedAllotment(t *testing.T) {
	p := newMultiSpeciesPopulation(t)
	before := speciesMembers(p)
	organisms := append([]*Organism(nil), p.Organisms...)

	p.Species[len(p.Species)-1].ExpectedOffspring = len(p.Organisms) + 1
	require.Error(t, p.Reproduce(2))

	assert.Equal(t, before, speciesMembers(p))
	assert.Equal(t, organisms, p.Organisms)
}

func TestReproduceFailedCloneLeavesSpeciesUnchanged(t *testing.T) {
	p := newMultiSpeciesPopulation(t)

	// The last species can only produce broken clones
	last := p.Species[len(p.Species)-1]
	for _, o := range last.Organisms {
		o.Genome.Genes = append(o.Genome.Genes, NewGene(NoTrait, 1, 99, 1.0, false, 99, 0, true))
	}
	donor := p.Species[0]
	for _, s := range p.Species[:len(p.Species)-1] {
		if s.ExpectedOffspring > donor.ExpectedOffspring {
			donor = s
		}
	}
	require.Positive(t, donor.ExpectedOffspring)
	donor.ExpectedOffspring--
	last.ExpectedOffspring++

	before := speciesMembers(p)
	err := p.Reproduce(2)
	assert.ErrorIs(t, err, ErrMissingNode)
	assert.Equal(t, before, speciesMembers(p))
	assert.Len(t, p.Organisms, 40)
}

func TestReproduceAgesExistingSpecies(t *testing.T) {
	config := DefaultConfig()
	config.PopSize = 20
	config.CompatThreshold = 100 // a single species
	config.MutateLinkWeightsProb = 0
	p := newSeededPopulation(t, config, 61)
	require.Len(t, p.Species, 1)

	for _, o := range p.Organisms {
		o.Fitness = 1
	}
	_, err := p.Epoch(1)
	require.NoError(t, err)
	require.NoError(t, p.Reproduce(2))

	require.Len(t, p.Species, 1)
	assert.Equal(t, 2, p.Species[0].Age)
}

func TestEpochReportLogValue(t *testing.T) {
	r := EpochReport{Generation: 4, Organisms: 10, Species: 2, DeltaCoded: true}
	v := r.LogValue()
	require.Equal(t, slog.KindGroup, v.Kind())

	attrs := map[string]slog.Value{}
	for _, a := range v.Group() {
		attrs[a.Key] = a.Value
	}
	assert.Equal(t, int64(4), attrs["generation"].Int64())
	assert.Equal(t, int64(2), attrs["species"].Int64())
	assert.True(t, attrs["delta_coded"].Bool())
}
