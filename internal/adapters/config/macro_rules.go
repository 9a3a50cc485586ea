package config

import (
	"strconv"
	"strings"

	"marketpulse/pkg/errors"
)

// MacroRule adds Bonus to the macro sub-score when snapshot[Key] > Above
type MacroRule struct {
	Key    string
	Above  float64
	Bonus  float64
	Reason string
}

// MacroRules decodes "KEY>bound:bonus:reason;KEY>bound:bonus:reason"
type MacroRules []MacroRule

// Decode implements envconfig.Decoder
func (r *MacroRules) Decode(value string) error {
	rules := MacroRules{}
	for _, raw := range strings.Split(value, ";") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		parts := strings.SplitN(raw, ":", 3)
		if len(parts) != 3 {
			return errors.Wrapf(errors.ErrInvalidInput, "macro rule %q: want KEY>bound:bonus:reason", raw)
		}

		cond := strings.SplitN(parts[0], ">", 2)
		if len(cond) != 2 || strings.TrimSpace(cond[0]) == "" {
			return errors.Wrapf(errors.ErrInvalidInput, "macro rule %q: missing KEY>bound", raw)
		}

		above, err := strconv.ParseFloat(strings.TrimSpace(cond[1]), 64)
		if err != nil {
			return errors.Wrapf(errors.ErrInvalidInput, "macro rule %q: bound: %v", raw, err)
		}
		bonus, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return errors.Wrapf(errors.ErrInvalidInput, "macro rule %q: bonus: %v", raw, err)
		}

		rules = append(rules, MacroRule{
			Key:    strings.TrimSpace(cond[0]),
			Above:  above,
			Bonus:  bonus,
			Reason: strings.TrimSpace(parts[2]),
		})
	}

	*r = rules
	return nil
}
