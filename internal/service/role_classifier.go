package service

import (
	"context"
	_ "embed"
	"fmt"
	"math"

	"gopkg.in/yaml.v3"

	"github.com/emworks/ux-agent/internal/model"
)

//go:embed role_network.yaml
var defaultRoleNetwork []byte

// RoleClassifier labels the assistant persona for a round from quantized signals.
type RoleClassifier interface {
	Classify(ctx context.Context, roundID string, levels model.SignalLevels) (string, error)
}

type roleNetwork struct {
	Roles []string   `yaml:"roles"`
	Table []roleCell `yaml:"table"`
}

type roleCell struct {
	Evidence model.SignalLevels `yaml:"evidence"`
	Probs    []float64          `yaml:"probs"`
}

// BayesRoleClassifier evaluates a role node whose three parents are always
// observed, so the posterior is the matching table column.
type BayesRoleClassifier struct {
	roles []string
	table map[model.SignalLevels][]float64
}

// NewDefaultRoleClassifier uses the built-in table.
func NewDefaultRoleClassifier() (*BayesRoleClassifier, error) {
	return NewRoleClassifier(defaultRoleNetwork)
}

// NewRoleClassifier parses and validates a YAML role table.
func NewRoleClassifier(doc []byte) (*BayesRoleClassifier, error) {
	var net roleNetwork
	if err := yaml.Unmarshal(doc, &net); err != nil {
		return nil, fmt.Errorf("parse role network: %w", err)
	}
	if len(net.Roles) == 0 {
		return nil, fmt.Errorf("role network has no roles")
	}

	c := &BayesRoleClassifier{
		roles: net.Roles,
		table: make(map[model.SignalLevels][]float64, len(net.Table)),
	}
	for i, cell := range net.Table {
		if len(cell.Probs) != len(net.Roles) {
			return nil, fmt.Errorf("role network row %d: %d probabilities for %d roles", i, len(cell.Probs), len(net.Roles))
		}
		sum := 0.0
		for _, p := range cell.Probs {
			if p < 0 {
				return nil, fmt.Errorf("role network row %d: negative probability", i)
			}
			sum += p
		}
		if math.Abs(sum-1) > 1e-6 {
			return nil, fmt.Errorf("role network row %d: probabilities sum to %.4f", i, sum)
		}
		if _, dup := c.table[cell.Evidence]; dup {
			return nil, fmt.Errorf("role network row %d: duplicate evidence %+v", i, cell.Evidence)
		}
		c.table[cell.Evidence] = cell.Probs
	}

	for _, cl := range []model.Level{model.LevelLow, model.LevelHigh} {
		for _, tp := range []model.Level{model.LevelLow, model.LevelHigh} {
			for _, rl := range []model.Level{model.LevelLow, model.LevelHigh} {
				ev := model.SignalLevels{CognitiveLoad: cl, TeamPerformance: tp, Reliance: rl}
				if _, ok := c.table[ev]; !ok {
					return nil, fmt.Errorf("role network is missing evidence %+v", ev)
				}
			}
		}
	}
	return c, nil
}

// Classify returns the most probable role; the earlier role wins a tie.
func (c *BayesRoleClassifier) Classify(ctx context.Context, roundID string, levels model.SignalLevels) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: classify round %s: %v", ErrBridge, roundID, err)
	}
	probs, ok := c.table[levels]
	if !ok {
		return "", fmt.Errorf("%w: classify round %s: unknown evidence %+v", ErrBridge, roundID, levels)
	}
	best := 0
	for i := 1; i < len(probs); i++ {
		if probs[i] > probs[best] {
			best = i
		}
	}
	return c.roles[best], nil
}
