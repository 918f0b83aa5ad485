package intent

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// EntityType labels an extracted span.
type EntityType int

const (
	EntityMeasurement EntityType = iota
)

// Entity is one value extracted from the utterance.
type Entity struct {
	Type       EntityType
	Value      string
	Confidence float64
}

// ParseResult is a parsed utterance with its winning action.
type ParseResult struct {
	Action     RobotAction
	Confidence float64
	Text       string
	Entities   []Entity
}

// Config tunes the parser.
type Config struct {
	// ConfidenceThreshold gates pattern matches; matches scoring below it
	// fall through to the keyword fallback.
	ConfidenceThreshold float64
}

// DefaultConfig accepts anything at or above the joint-move prior.
func DefaultConfig() Config {
	return Config{ConfidenceThreshold: 0.7}
}

type pattern struct {
	name string
	re   *regexp.Regexp
	// prior is the base confidence for a match on this pattern.
	prior float64
}

// shortTextBonus rewards terse, direct commands.
const (
	shortTextBonus = 0.1
	shortTextLimit = 20
	fallbackScore  = 0.5
)

const linearUnits = `(cm|centimeters?|mm|millimeters?|inches?|in)`

// Parser compiles its pattern table once at construction. Patterns are
// tried in table order; the first whose confidence clears the threshold
// wins.
type Parser struct {
	config   Config
	patterns []pattern
}

func NewParser(config Config) (*Parser, error) {
	specs := []struct {
		name  string
		expr  string
		prior float64
	}{
		// Lazy gaps before the number groups keep multi-digit values whole.
		{"raise_arm", `(?i)(raise|lift|move up|go up).*?arm.*?(\d+(?:\.\d+)?)\s*` + linearUnits, 0.8},
		{"lower_arm", `(?i)(lower|drop|move down|go down).*?arm.*?(\d+(?:\.\d+)?)\s*` + linearUnits, 0.8},
		{"extend_arm", `(?i)(extend|move forward|go forward).*?arm.*?(\d+(?:\.\d+)?)\s*` + linearUnits, 0.8},
		{"retract_arm", `(?i)(retract|move back|go back).*?arm.*?(\d+(?:\.\d+)?)\s*` + linearUnits, 0.8},
		{"rotate_left", `(?i)(rotate|turn).*?left.*?(\d+(?:\.\d+)?)\s*(degrees?|deg|°)`, 0.8},
		{"rotate_right", `(?i)(rotate|turn).*?right.*?(\d+(?:\.\d+)?)\s*(degrees?|deg|°)`, 0.8},
		{"stop", `(?i)(stop|halt|freeze|emergency stop)`, 0.9},
		{"home", `(?i)(go to|move to).*?home.*?position`, 0.9},
		{"joint_move", `(?i)move.*?joint.*?(\d+).*?to.*?(\d+(?:\.\d+)?)\s*(degrees?|deg|°|radians?|rad)`, 0.7},
	}

	p := &Parser{config: config, patterns: make([]pattern, 0, len(specs))}
	for _, s := range specs {
		re, err := regexp.Compile(s.expr)
		if err != nil {
			return nil, fmt.Errorf("compiling pattern %s: %w", s.name, err)
		}
		p.patterns = append(p.patterns, pattern{name: s.name, re: re, prior: s.prior})
	}
	return p, nil
}

// Parse translates one utterance. The keyword fallback catches bare
// stop/halt and home requests at reduced confidence; anything else is
// ErrNoIntent.
func (p *Parser) Parse(text string) (ParseResult, error) {
	t := strings.ToLower(strings.TrimSpace(text))

	for _, pat := range p.patterns {
		m := pat.re.FindStringSubmatch(t)
		if m == nil {
			continue
		}
		confidence := pat.prior
		if len(t) < shortTextLimit {
			confidence += shortTextBonus
		}
		if confidence < p.config.ConfidenceThreshold {
			continue
		}
		action, err := buildAction(pat.name, m)
		if err != nil {
			return ParseResult{}, err
		}
		return ParseResult{
			Action:     action,
			Confidence: confidence,
			Text:       t,
			Entities:   extractEntities(m),
		}, nil
	}

	if strings.Contains(t, "stop") || strings.Contains(t, "halt") {
		return ParseResult{Action: StopAction(), Confidence: fallbackScore, Text: t}, nil
	}
	if strings.Contains(t, "home") {
		return ParseResult{Action: HomeAction(), Confidence: fallbackScore, Text: t}, nil
	}
	return ParseResult{}, fmt.Errorf("%w: %q", ErrNoIntent, t)
}

func buildAction(name string, m []string) (RobotAction, error) {
	switch name {
	case "raise_arm", "lower_arm", "extend_arm", "retract_arm":
		distance, _ := strconv.ParseFloat(m[2], 64)
		unit := ParseUnit(m[3])
		return MotionAction(motionDirection(name), distance, unit), nil

	case "rotate_left":
		angle, _ := strconv.ParseFloat(m[2], 64)
		return MotionAction(Left, angle, Degrees), nil

	case "rotate_right":
		angle, _ := strconv.ParseFloat(m[2], 64)
		return MotionAction(Right, angle, Degrees), nil

	case "stop":
		return StopAction(), nil

	case "home":
		return HomeAction(), nil

	case "joint_move":
		jointID, _ := strconv.ParseUint(m[1], 10, 32)
		position, _ := strconv.ParseFloat(m[2], 64)
		unit := ParseUnit(m[3])
		return JointAction(uint32(jointID), position, unit), nil
	}
	return RobotAction{}, fmt.Errorf("%w: unknown pattern %q", ErrNoIntent, name)
}

func motionDirection(name string) Direction {
	switch name {
	case "raise_arm":
		return Up
	case "lower_arm":
		return Down
	case "extend_arm":
		return Forward
	case "retract_arm":
		return Backward
	}
	return Forward
}

// extractEntities collects numeric capture groups as measurements.
func extractEntities(m []string) []Entity {
	var out []Entity
	for _, g := range m[1:] {
		if g == "" {
			continue
		}
		if _, err := strconv.ParseFloat(g, 64); err == nil {
			out = append(out, Entity{Type: EntityMeasurement, Value: g, Confidence: 0.9})
		}
	}
	return out
}
