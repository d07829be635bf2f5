package neat

// obliterationInterval is the number of generations between obliterations.
const obliterationInterval = 30

// obliterationAge is the minimum age of a species that can be obliterated.
const obliterationAge = 20

// obliterateWorst flags the lowest ranked species old enough to be
// obliterated, every obliterationInterval generations. sorted must be
// ordered best first. Only one species is flagged per call.
func (p *Population) obliterateWorst(sorted []*Species, generation int) *Species {
	if generation <= 0 || generation%obliterationInterval != 0 {
		return nil
	}
	for i := len(sorted) - 1; i >= 0; i-- {
		s := sorted[i]
		if s.Age >= obliterationAge {
			s.Obliterate = true
			p.Logger.Info("obliterating stagnant species", "species", s.ID, "age", s.Age, "generation", generation)
			return s
		}
	}
	return nil
}

// deltaCode is the response to population-wide stagnation: the two best
// species share all offspring, split between their champions, and every
// other species gets none.
func (p *Population) deltaCode(sorted []*Species, total int) {
	p.HighestLastChanged = 0
	half := total / 2

	first := sorted[0]
	if len(sorted) == 1 {
		first.Champion().SuperChampOffspring = total
		first.ExpectedOffspring = total
		first.AgeOfLastImprovement = first.Age
		p.Logger.Info("population stagnated, delta coding", "species", first.ID)
		return
	}

	first.Champion().SuperChampOffspring = half
	first.ExpectedOffspring = half
	first.AgeOfLastImprovement = first.Age

	second := sorted[1]
	second.Champion().SuperChampOffspring = total - half
	second.ExpectedOffspring = total - half
	second.AgeOfLastImprovement = second.Age

	for _, s := range sorted[2:] {
		s.ExpectedOffspring = 0
	}
	p.Logger.Info("population stagnated, delta coding", "species", first.ID, "runner_up", second.ID)
}

// stealBabies takes up to babies_stolen offspring from the worst species and
// hands them to the champions of the best improving species. Offspring not
// placed go to the best species, so the total is unchanged. It returns the
// number of offspring taken.
func (p *Population) stealBabies(sorted []*Species) int {
	target := p.Config.BabiesStolen
	stolen := 0

	// Take from the worst species, leaving each at least one offspring
	for i := len(sorted) - 1; i > 0 && stolen < target; i-- {
		s := sorted[i]
		if s.Age <= 5 || s.ExpectedOffspring <= 2 {
			continue
		}
		if s.ExpectedOffspring-1 >= target-stolen {
			s.ExpectedOffspring -= target - stolen
			stolen = target
		} else {
			stolen += s.ExpectedOffspring - 1
			s.ExpectedOffspring = 1
		}
	}
	taken := stolen

	oneFifth := target / 5
	oneTenth := target / 10

	i := 0
	skipDying := func() {
		for i < len(sorted) && sorted[i].LastImproved() > p.Config.DropoffAge {
			i++
		}
	}
	give := func(s *Species, n int) {
		s.Champion().SuperChampOffspring = n
		s.ExpectedOffspring += n
		stolen -= n
	}

	// The top three improving species get 1/5, 1/5 and 1/10 of the pool
	for _, share := range []int{oneFifth, oneFifth, oneTenth} {
		skipDying()
		if i < len(sorted) && stolen >= share {
			give(sorted[i], share)
			i++
		}
	}

	// The rest is spread a few at a time, with some randomness in who gets it
	skipDying()
	for ; stolen > 0 && i < len(sorted); i++ {
		s := sorted[i]
		if p.rng.Float64() > 0.1 && s.LastImproved() <= p.Config.DropoffAge {
			give(s, min(stolen, 3))
		}
	}

	if stolen > 0 {
		best := sorted[0]
		best.Champion().SuperChampOffspring += stolen
		best.ExpectedOffspring += stolen
	}

	if taken > 0 {
		p.Logger.Debug("redistributed stolen offspring", "stolen", taken)
	}
	return taken
}
