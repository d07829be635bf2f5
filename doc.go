// Package neatcore is the reproduction core of a NeuroEvolution of Augmenting Topologies (NEAT) engine.
//
// NEAT evolves graph-structured genomes that encode neural networks. Genes carry
// historical markings (innovation numbers) so two independently mutated genomes
// can be aligned gene by gene, and the distance computed from that alignment
// clusters the population into species that share fitness and compete for
// offspring.
//
// The library lives in the neat package; neat/nn builds activatable networks
// from genomes and examples/xor is a complete driver.
//
// Basic usage:
//
//	config, err := neat.LoadConfig("path/to/config.ne")
//	if err != nil {
//		log.Fatalf("Error loading config: %v", err)
//	}
//
//	pop, err := neat.NewPopulation(startGenome, config, rand.New(rand.NewSource(1)))
//	if err != nil {
//		log.Fatalf("Error creating population: %v", err)
//	}
//
//	for gen := 1; gen <= 100; gen++ {
//		evaluate(pop.Organisms) // sets Fitness on every organism
//
//		if _, err := pop.Epoch(gen); err != nil {
//			log.Fatalf("Epoch failed: %v", err)
//		}
//		if err := pop.Reproduce(gen + 1); err != nil {
//			log.Fatalf("Reproduction failed: %v", err)
//		}
//	}
package neatcore
