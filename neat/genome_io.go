package neat

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Write prints the genome in the classic NEAT text form, with the node
// function and the frozen flags appended to node and gene records:
//
//	genomestart <id>
//	trait <id> <p1> ... <p8>
//	node <id> <trait> <type> <place> <function> <frozen>
//	gene <trait> <in> <out> <weight> <recurrent> <innovation> <mutation> <enabled> <frozen>
//	genomeend <id>
func (g *Genome) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "genomestart %d\n", g.ID)
	for _, t := range g.Traits {
		fmt.Fprintf(bw, "trait %d", t.ID)
		for _, param := range t.Params {
			fmt.Fprintf(bw, " %g", param)
		}
		fmt.Fprintln(bw)
	}
	for _, n := range g.Nodes {
		fmt.Fprintf(bw, "node %d %d %d %d %d %d\n", n.ID, n.TraitID, int(n.Type), int(n.Place),
			int(n.Function), boolToInt(n.Frozen))
	}
	for _, gene := range g.Genes {
		fmt.Fprintf(bw, "gene %d %d %d %g %d %g %g %d %d\n",
			gene.TraitID, gene.InNode, gene.OutNode, gene.Weight, boolToInt(gene.Recurrent),
			gene.Innovation(), gene.MutationNum, boolToInt(gene.Enabled), boolToInt(gene.Frozen))
	}
	fmt.Fprintf(bw, "genomeend %d\n", g.ID)

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write genome %d: %w", g.ID, err)
	}
	return nil
}

// WriteFile writes the genome to a new file at filePath.
func (g *Genome) WriteFile(filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create genome file '%s': %w", filePath, err)
	}
	if err := g.Write(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// ReadGenome parses a genome written by Write. Lines before genomestart and
// lines starting with '/' are ignored; reading stops at genomeend. Node and
// gene records without the trailing function and frozen fields are accepted
// and get the NewNode / NewGene defaults.
func ReadGenome(r io.Reader) (*Genome, error) {
	scanner := bufio.NewScanner(r)
	var g *Genome
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "/") {
			continue
		}
		if g == nil && fields[0] != "genomestart" {
			continue
		}

		if fields[0] == "genomeend" {
			return g, nil
		}
		var err error
		if g, err = readRecord(g, fields); err != nil {
			return nil, fmt.Errorf("genome line %d: %w: %v", lineNum, ErrMalformedLine, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read genome: %w", err)
	}
	if g == nil {
		return nil, fmt.Errorf("%w: no genomestart record", ErrMalformedLine)
	}
	return nil, fmt.Errorf("genome %d: %w: missing genomeend", g.ID, ErrMalformedLine)
}

// readRecord applies one record to g. A genomestart record begins a new genome.
func readRecord(g *Genome, fields []string) (*Genome, error) {
	values, err := parseNumbers(fields[1:])
	if err != nil {
		return nil, err
	}

	switch fields[0] {
	case "genomestart":
		if len(values) != 1 {
			return nil, errors.New("genomestart expects an id")
		}
		ids, err := wholeNumbers(values)
		if err != nil {
			return nil, err
		}
		return NewGenome(ids[0]), nil

	case "trait":
		if len(values) != NumTraitParams+1 {
			return nil, fmt.Errorf("trait expects %d values", NumTraitParams+1)
		}
		ids, err := wholeNumbers(values[:1])
		if err != nil {
			return nil, err
		}
		var params [NumTraitParams]float64
		copy(params[:], values[1:])
		g.AddTrait(NewTrait(ids[0], params))

	case "node":
		if len(values) != 4 && len(values) != 6 {
			return nil, errors.New("node expects 4 or 6 values")
		}
		ints, err := wholeNumbers(values)
		if err != nil {
			return nil, err
		}
		n := NewNode(ints[0], ints[1], NodeType(ints[2]), NodePlace(ints[3]))
		if len(ints) == 6 {
			n.Function = FunctionType(ints[4])
			if n.Frozen, err = flag(ints[5]); err != nil {
				return nil, err
			}
		}
		if err := checkNodeKinds(n); err != nil {
			return nil, err
		}
		g.AddNode(n)

	case "gene":
		if len(values) != 8 && len(values) != 9 {
			return nil, errors.New("gene expects 8 or 9 values")
		}
		whole := []float64{values[0], values[1], values[2], values[4], values[7]}
		if len(values) == 9 {
			whole = append(whole, values[8])
		}
		ints, err := wholeNumbers(whole)
		if err != nil {
			return nil, err
		}
		flags := make([]bool, len(ints)-3)
		for i, v := range ints[3:] {
			if flags[i], err = flag(v); err != nil {
				return nil, err
			}
		}
		gene := NewGene(ints[0], ints[1], ints[2], values[3], flags[0], values[5], values[6], flags[1])
		if len(flags) == 3 {
			gene.Frozen = flags[2]
		}
		g.AddGene(gene)

	default:
		return nil, fmt.Errorf("unknown record %q", fields[0])
	}
	return g, nil
}

func wholeNumbers(values []float64) ([]int, error) {
	ints := make([]int, len(values))
	for i, v := range values {
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%g is not a whole number", v)
		}
		ints[i] = int(v)
	}
	return ints, nil
}

func flag(v int) (bool, error) {
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, fmt.Errorf("flag must be 0 or 1, got %d", v)
}

func checkNodeKinds(n Node) error {
	if n.Type != Neuron && n.Type != Sensor {
		return fmt.Errorf("node %d: unknown type %d", n.ID, int(n.Type))
	}
	if n.Place < Hidden || n.Place > Bias {
		return fmt.Errorf("node %d: unknown place %d", n.ID, int(n.Place))
	}
	if _, err := GetActivation(n.Function); err != nil {
		return fmt.Errorf("node %d: %w", n.ID, err)
	}
	return nil
}

// ReadGenomeFile reads a genome from the file at filePath.
func ReadGenomeFile(filePath string) (*Genome, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open genome file '%s': %w", filePath, err)
	}
	defer file.Close()
	return ReadGenome(file)
}

func parseNumbers(fields []string) ([]float64, error) {
	values := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
