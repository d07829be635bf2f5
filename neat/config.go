package neat

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// ErrMalformedLine is returned when a configuration line names a key without a value.
var ErrMalformedLine = errors.New("configuration line not formatted correctly")

// Config stores the named parameters consumed by every algorithm of the engine.
type Config struct {
	// --- Trait and link-trait mutation ---
	TraitParamMutProb  float64 `ini:"trait_param_mut_prob" yaml:"trait_param_mut_prob"`
	TraitMutationPower float64 `ini:"trait_mutation_power" yaml:"trait_mutation_power"` // Power of mutation on a single trait param
	LinkTraitMutSig    float64 `ini:"linktrait_mut_sig" yaml:"linktrait_mut_sig"`       // MutationNum change for a trait change inside a link
	NodeTraitMutSig    float64 `ini:"nodetrait_mut_sig" yaml:"nodetrait_mut_sig"`       // MutationNum change on links of a node that changed its trait
	WeightMutPower     float64 `ini:"weight_mut_power" yaml:"weight_mut_power"`
	RecurProb          float64 `ini:"recur_prob" yaml:"recur_prob"`

	// --- Compatibility: disjoint_coeff*D + excess_coeff*E + mutdiff_coeff*W ---
	DisjointCoeff   float64 `ini:"disjoint_coeff" yaml:"disjoint_coeff"`
	ExcessCoeff     float64 `ini:"excess_coeff" yaml:"excess_coeff"`
	MutdiffCoeff    float64 `ini:"mutdiff_coeff" yaml:"mutdiff_coeff"`
	CompatThreshold float64 `ini:"compat_threshold" yaml:"compat_threshold"`

	// --- Epoch ---
	AgeSignificance float64 `ini:"age_significance" yaml:"age_significance"`
	SurvivalThresh  float64 `ini:"survival_thresh" yaml:"survival_thresh"`

	// --- Reproduction probabilities ---
	MutateOnlyProb         float64 `ini:"mutate_only_prob" yaml:"mutate_only_prob"`
	MutateRandomTraitProb  float64 `ini:"mutate_random_trait_prob" yaml:"mutate_random_trait_prob"`
	MutateLinkTraitProb    float64 `ini:"mutate_link_trait_prob" yaml:"mutate_link_trait_prob"`
	MutateNodeTraitProb    float64 `ini:"mutate_node_trait_prob" yaml:"mutate_node_trait_prob"`
	MutateLinkWeightsProb  float64 `ini:"mutate_link_weights_prob" yaml:"mutate_link_weights_prob"`
	MutateToggleEnableProb float64 `ini:"mutate_toggle_enable_prob" yaml:"mutate_toggle_enable_prob"`
	MutateGeneReenableProb float64 `ini:"mutate_gene_reenable_prob" yaml:"mutate_gene_reenable_prob"`
	MutateAddNodeProb      float64 `ini:"mutate_add_node_prob" yaml:"mutate_add_node_prob"`
	MutateAddLinkProb      float64 `ini:"mutate_add_link_prob" yaml:"mutate_add_link_prob"`
	InterspeciesMateRate   float64 `ini:"interspecies_mate_rate" yaml:"interspecies_mate_rate"`
	MateMultipointProb     float64 `ini:"mate_multipoint_prob" yaml:"mate_multipoint_prob"`
	MateMultipointAvgProb  float64 `ini:"mate_multipoint_avg_prob" yaml:"mate_multipoint_avg_prob"`
	MateSinglepointProb    float64 `ini:"mate_singlepoint_prob" yaml:"mate_singlepoint_prob"`
	MateOnlyProb           float64 `ini:"mate_only_prob" yaml:"mate_only_prob"`
	RecurOnlyProb          float64 `ini:"recur_only_prob" yaml:"recur_only_prob"`

	// --- Counts ---
	PopSize      int `ini:"pop_size" yaml:"pop_size"`
	DropoffAge   int `ini:"dropoff_age" yaml:"dropoff_age"` // Age where a species starts to be penalized
	NewlinkTries int `ini:"newlink_tries" yaml:"newlink_tries"`
	PrintEvery   int `ini:"print_every" yaml:"print_every"`
	BabiesStolen int `ini:"babies_stolen" yaml:"babies_stolen"` // Offspring siphoned off to the champions
	NumRuns      int `ini:"num_runs" yaml:"num_runs"`
}

// DefaultConfig returns the classic NEAT parameter set.
func DefaultConfig() *Config {
	return &Config{
		TraitParamMutProb:  0.5,
		TraitMutationPower: 1.0,
		LinkTraitMutSig:    1.0,
		NodeTraitMutSig:    0.5,
		WeightMutPower:     2.5,
		RecurProb:          0.0,

		DisjointCoeff:   1.0,
		ExcessCoeff:     1.0,
		MutdiffCoeff:    0.4,
		CompatThreshold: 3.0,

		AgeSignificance: 1.0,
		SurvivalThresh:  0.2,

		MutateOnlyProb:         0.25,
		MutateRandomTraitProb:  0.1,
		MutateLinkTraitProb:    0.1,
		MutateNodeTraitProb:    0.1,
		MutateLinkWeightsProb:  0.9,
		MutateToggleEnableProb: 0.0,
		MutateGeneReenableProb: 0.0,
		MutateAddNodeProb:      0.03,
		MutateAddLinkProb:      0.08,
		InterspeciesMateRate:   0.001,
		MateMultipointProb:     0.3,
		MateMultipointAvgProb:  0.3,
		MateSinglepointProb:    0.3,
		MateOnlyProb:           0.2,
		RecurOnlyProb:          0.0,

		PopSize:      150,
		DropoffAge:   15,
		NewlinkTries: 20,
		PrintEvery:   5,
		BabiesStolen: 0,
		NumRuns:      1,
	}
}

// LoadConfig loads configuration parameters from a file.
// Files ending in .yaml or .yml are read as YAML; anything else uses the
// line format, one `name value` pair per line separated by whitespace.
// Keys missing from the file keep their DefaultConfig value.
func LoadConfig(filePath string) (*Config, error) {
	var (
		config *Config
		err    error
	)
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".yaml", ".yml":
		config, err = loadYAMLConfig(filePath)
	default:
		config, err = loadLineConfig(filePath)
	}
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// loadLineConfig reads the whitespace separated `name value` format.
func loadLineConfig(filePath string) (*Config, error) {
	src, err := ini.LoadSources(ini.LoadOptions{
		KeyValueDelimiters: " \t",
		IgnoreContinuation: true,
	}, filePath)
	if err != nil {
		if ini.IsErrDelimiterNotFound(err) {
			return nil, fmt.Errorf("config error: %w: %v", ErrMalformedLine, err)
		}
		return nil, fmt.Errorf("failed to load config file '%s': %w", filePath, err)
	}

	config := DefaultConfig()
	fields := configFields(config)
	for _, section := range src.Sections() {
		for _, key := range section.Keys() {
			name := key.Name()
			field, ok := fields[name]
			if !ok {
				slog.Warn("config variable not recognized, skipping", "key", name, "file", filePath)
				continue
			}
			if strings.TrimSpace(key.String()) == "" {
				return nil, fmt.Errorf("config error: %w: key %s has no value", ErrMalformedLine, name)
			}
			if err := setConfigField(field, key); err != nil {
				return nil, fmt.Errorf("config error: reading value %s: %w", name, err)
			}
		}
	}
	return config, nil
}

// loadYAMLConfig reads the same keys from a YAML mapping.
func loadYAMLConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", filePath, err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("config error: failed to parse '%s': %w", filePath, err)
	}

	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config error: failed to parse '%s': %w", filePath, err)
	}
	fields := configFields(config)
	for name := range raw {
		if _, ok := fields[name]; !ok {
			slog.Warn("config variable not recognized, skipping", "key", name, "file", filePath)
		}
	}
	return config, nil
}

// configFields maps every `ini` tag of Config to its settable field.
func configFields(config *Config) map[string]reflect.Value {
	v := reflect.ValueOf(config).Elem()
	t := v.Type()
	fields := make(map[string]reflect.Value, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if tag := t.Field(i).Tag.Get("ini"); tag != "" {
			fields[tag] = v.Field(i)
		}
	}
	return fields
}

func setConfigField(field reflect.Value, key *ini.Key) error {
	switch field.Kind() {
	case reflect.Float64:
		f, err := key.Float64()
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Int:
		// Key.Int infers the base from prefixes such as 0 and 0x; counts are decimal
		n, err := strconv.ParseInt(strings.TrimSpace(key.String()), 10, 0)
		if err != nil {
			return err
		}
		field.SetInt(n)
	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}
	return nil
}

// Validate checks value ranges. LoadConfig calls it; callers building a Config by hand should too.
func (c *Config) Validate() error {
	if c.PopSize <= 0 {
		return fmt.Errorf("config error: pop_size must be positive")
	}
	if c.DropoffAge < 0 {
		return fmt.Errorf("config error: dropoff_age cannot be negative")
	}
	if c.BabiesStolen < 0 {
		return fmt.Errorf("config error: babies_stolen cannot be negative")
	}
	if c.NewlinkTries < 0 || c.PrintEvery < 0 || c.NumRuns < 0 {
		return fmt.Errorf("config error: newlink_tries, print_every and num_runs cannot be negative")
	}
	if c.DisjointCoeff < 0 || c.ExcessCoeff < 0 || c.MutdiffCoeff < 0 {
		return fmt.Errorf("config error: compatibility coefficients cannot be negative")
	}
	if c.CompatThreshold < 0 {
		return fmt.Errorf("config error: compat_threshold cannot be negative")
	}
	if c.WeightMutPower < 0 {
		return fmt.Errorf("config error: weight_mut_power cannot be negative")
	}
	if c.SurvivalThresh < 0 || c.SurvivalThresh > 1 {
		return fmt.Errorf("config error: survival_thresh must be between 0 and 1")
	}

	probabilities := map[string]float64{
		"trait_param_mut_prob":      c.TraitParamMutProb,
		"recur_prob":                c.RecurProb,
		"mutate_only_prob":          c.MutateOnlyProb,
		"mutate_random_trait_prob":  c.MutateRandomTraitProb,
		"mutate_link_trait_prob":    c.MutateLinkTraitProb,
		"mutate_node_trait_prob":    c.MutateNodeTraitProb,
		"mutate_link_weights_prob":  c.MutateLinkWeightsProb,
		"mutate_toggle_enable_prob": c.MutateToggleEnableProb,
		"mutate_gene_reenable_prob": c.MutateGeneReenableProb,
		"mutate_add_node_prob":      c.MutateAddNodeProb,
		"mutate_add_link_prob":      c.MutateAddLinkProb,
		"interspecies_mate_rate":    c.InterspeciesMateRate,
		"mate_multipoint_prob":      c.MateMultipointProb,
		"mate_multipoint_avg_prob":  c.MateMultipointAvgProb,
		"mate_singlepoint_prob":     c.MateSinglepointProb,
		"mate_only_prob":            c.MateOnlyProb,
		"recur_only_prob":           c.RecurOnlyProb,
	}
	for name, p := range probabilities {
		if p < 0 || p > 1 {
			return fmt.Errorf("config error: %s must be between 0 and 1", name)
		}
	}
	return nil
}
