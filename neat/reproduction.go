package neat

import "fmt"

// superChampPower is the weight mutation power applied to mutated super champion clones.
const superChampPower = 1.0

// Reproduce replaces the organisms with the offspring allotted by Epoch.
//
// Each species spends its ExpectedOffspring on, in order: clones of a super
// champion (the last one unchanged, the others with perturbed weights), one
// unchanged copy of its champion when it has more than five offspring, and
// mutated clones of randomly chosen surviving parents. Offspring are
// speciated against the old species representatives, then the old
// organisms are dropped together with species left empty. Surviving species
// that were not founded during this call grow one generation older.
func (p *Population) Reproduce(generation int) error {
	total := len(p.Organisms)
	oldSize := make(map[int]int, len(p.Species))
	for _, s := range p.Species {
		oldSize[s.ID] = len(s.Organisms)
	}

	for _, s := range p.Species {
		if s.ExpectedOffspring < 0 || s.ExpectedOffspring > total {
			return fmt.Errorf("reproduce species %d: %d offspring expected from %d organisms", s.ID, s.ExpectedOffspring, total)
		}
	}

	// Babies join species only once all of them exist, so a failed clone
	// leaves species membership as it was
	babies := make([]*Organism, 0, total)
	for _, s := range p.Species {
		members := s.Organisms
		if s.ExpectedOffspring == 0 || len(members) == 0 {
			continue
		}

		parents := make([]*Organism, 0, len(members))
		for _, o := range members {
			if !o.Eliminate {
				parents = append(parents, o)
			}
		}
		if len(parents) == 0 {
			parents = members[:1]
		}

		champ := s.Champion()
		champDone := false
		for count := 0; count < s.ExpectedOffspring; count++ {
			var (
				baby *Organism
				err  error
			)
			switch {
			case champ.SuperChampOffspring > 0:
				baby, err = p.superChampClone(champ, generation)
				champ.SuperChampOffspring--
			case !champDone && s.ExpectedOffspring > 5:
				baby, err = p.cloneOrganism(champ, generation)
				champDone = true
			default:
				mom := parents[p.rng.Intn(len(parents))]
				baby, err = p.mutateClone(mom, generation)
			}
			if err != nil {
				return fmt.Errorf("reproduce species %d: %w", s.ID, err)
			}
			babies = append(babies, baby)
		}
	}
	for _, baby := range babies {
		p.speciateOrganism(baby, true)
	}

	// Drop the previous generation
	kept := p.Species[:0]
	for _, s := range p.Species {
		if n := oldSize[s.ID]; n > 0 {
			s.Organisms = s.Organisms[n:]
		}
		if len(s.Organisms) == 0 {
			p.Logger.Debug("species died out", "species", s.ID, "generation", generation)
			continue
		}
		if s.Novel {
			s.Novel = false
		} else {
			s.Age++
		}
		s.Obliterate = false
		kept = append(kept, s)
	}
	p.Species = kept
	p.Organisms = babies

	if len(p.Organisms) != total {
		p.Logger.Warn("population size changed during reproduction", "before", total, "after", len(p.Organisms))
	}
	return nil
}

// superChampClone copies a population or species champion. All but the last
// of its clones get a weight perturbation.
func (p *Population) superChampClone(champ *Organism, generation int) (*Organism, error) {
	genome, err := champ.Genome.Clone(p.getNextKey())
	if err != nil {
		return nil, err
	}
	if champ.SuperChampOffspring > 1 {
		genome.MutateLinkWeights(p.rng, superChampPower, 1.0, GaussianMutation)
	}
	baby := NewOrganism(0.0, genome, generation)
	if champ.SuperChampOffspring == 1 && champ.PopChamp {
		baby.PopChampChild = true
		baby.HighFit = champ.OrigFitness
	}
	return baby, nil
}

// cloneOrganism copies an organism's genome without mutation.
func (p *Population) cloneOrganism(o *Organism, generation int) (*Organism, error) {
	genome, err := o.Genome.Clone(p.getNextKey())
	if err != nil {
		return nil, err
	}
	return NewOrganism(0.0, genome, generation), nil
}

// mutateClone copies a parent and applies the non-structural mutations,
// each with its configured probability.
func (p *Population) mutateClone(mom *Organism, generation int) (*Organism, error) {
	genome, err := mom.Genome.Clone(p.getNextKey())
	if err != nil {
		return nil, err
	}

	cfg := p.Config
	if p.rng.Float64() < cfg.MutateRandomTraitProb {
		genome.MutateRandomTrait(p.rng, cfg)
	}
	if p.rng.Float64() < cfg.MutateLinkTraitProb {
		genome.MutateLinkTrait(p.rng, 1, cfg)
	}
	if p.rng.Float64() < cfg.MutateNodeTraitProb {
		genome.MutateNodeTrait(p.rng, 1, cfg)
	}
	if p.rng.Float64() < cfg.MutateLinkWeightsProb {
		genome.MutateLinkWeights(p.rng, cfg.WeightMutPower, 1.0, GaussianMutation)
	}
	if p.rng.Float64() < cfg.MutateToggleEnableProb {
		genome.MutateToggleEnable(p.rng, 1)
	}
	if p.rng.Float64() < cfg.MutateGeneReenableProb {
		genome.MutateGeneReenable()
	}

	return NewOrganism(0.0, genome, generation), nil
}
