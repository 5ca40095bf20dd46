package groups

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rules holds the externally supplied classification policy. Keeping the
// keyword and prefix lists in configuration means the policy can be
// audited and updated without touching classification code.
type Rules struct {
	InternalGroupType  RulesInternalGroupType `yaml:"internal_group_type"`
	DenylistPhrases    []string               `yaml:"denylist_phrases"`
	PublicPrefixes     []string               `yaml:"public_prefixes"`
	SeasonalPrefixes   []string               `yaml:"seasonal_prefixes"`
	LeadershipKeywords []string               `yaml:"leadership_keywords"`
}

type RulesInternalGroupType struct {
	IDs   []string `yaml:"ids"`
	Names []string `yaml:"names"`
}

func LoadRules(rulesFile string) (*Rules, error) {
	data, err := os.ReadFile(rulesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules YAML: %w", err)
	}

	if err := rules.validate(); err != nil {
		return nil, fmt.Errorf("invalid rules %s: %w", rulesFile, err)
	}

	rules.normalize()

	return &rules, nil
}

func (r *Rules) validate() error {
	if len(r.DenylistPhrases) == 0 {
		return fmt.Errorf("denylist_phrases must not be empty")
	}
	if len(r.PublicPrefixes) == 0 {
		return fmt.Errorf("public_prefixes must not be empty")
	}
	if len(r.SeasonalPrefixes) > 0 && len(r.LeadershipKeywords) == 0 {
		return fmt.Errorf("leadership_keywords is required when seasonal_prefixes are set")
	}
	for i, phrase := range r.DenylistPhrases {
		if strings.TrimSpace(phrase) == "" {
			return fmt.Errorf("denylist phrase at index %d is blank", i)
		}
	}
	return nil
}

// normalize lower-cases every list once at load so matching stays
// case-insensitive without per-record conversions.
func (r *Rules) normalize() {
	lower := func(values []string) {
		for i, v := range values {
			values[i] = strings.ToLower(strings.TrimSpace(v))
		}
	}
	lower(r.InternalGroupType.Names)
	lower(r.DenylistPhrases)
	lower(r.PublicPrefixes)
	lower(r.SeasonalPrefixes)
	lower(r.LeadershipKeywords)
}
