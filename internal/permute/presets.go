package permute

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hakim/brandwatch/internal/models"
)

// ErrUnknownStrategy is returned for a strategy or preset name that does not exist.
var ErrUnknownStrategy = errors.New("unknown strategy")

// Preset is a named strategy set a scan can be started with.
type Preset struct {
	Name        string
	Description string
	Strategies  []models.Strategy
}

// Presets are the built-in strategy sets.
var Presets = map[string]Preset{
	"all": {
		Name:        "all",
		Description: "Every permutation strategy",
		Strategies:  models.AllStrategies,
	},
	"typo": {
		Name:        "typo",
		Description: "Keyboard mistakes: omission, substitution, transposition",
		Strategies: []models.Strategy{
			models.StrategyOmission,
			models.StrategySubstitution,
			models.StrategyTransposition,
		},
	},
	"lookalike": {
		Name:        "lookalike",
		Description: "Visual deception: homoglyphs and substitutions",
		Strategies: []models.Strategy{
			models.StrategySubstitution,
			models.StrategyHomoglyph,
		},
	},
	"brand": {
		Name:        "brand",
		Description: "Brand abuse: TLD swaps and keyword combos",
		Strategies: []models.Strategy{
			models.StrategyTLDVariation,
			models.StrategyCombosquat,
		},
	},
}

// GetPreset returns a preset by name.
func GetPreset(name string) (Preset, error) {
	p, ok := Presets[strings.ToLower(name)]
	if !ok {
		return Preset{}, fmt.Errorf("%w: preset %q (available: %s)", ErrUnknownStrategy, name, strings.Join(PresetNames(), ", "))
	}
	return p, nil
}

// PresetNames returns the sorted preset names.
func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for n := range Presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ResolveStrategies returns the strategy set for a scan. A preset name wins;
// otherwise the explicit list is parsed; with neither, every strategy runs.
func ResolveStrategies(preset string, names []string) ([]models.Strategy, error) {
	if preset != "" {
		p, err := GetPreset(preset)
		if err != nil {
			return nil, err
		}
		return p.Strategies, nil
	}
	if len(names) == 0 {
		return models.AllStrategies, nil
	}
	out := make([]models.Strategy, 0, len(names))
	for _, n := range names {
		s, ok := models.ParseStrategy(n)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, n)
		}
		out = append(out, s)
	}
	return out, nil
}
