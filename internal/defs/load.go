package defs

import (
	"bytes"
	"fmt"
	"io"
	"os"

	yaml "go.yaml.in/yaml/v3"
)

// Load reads and validates a catalog file.
func Load(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes catalog YAML strictly; unknown fields are errors so typos
// surface at load time instead of silently disabling behavior.
func Parse(b []byte) (*Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && err != io.EOF {
		return nil, err
	}

	for _, d := range c.Missions {
		d.Kind = KindMission
	}
	for _, d := range c.WorldEvents {
		d.Kind = KindWorldEvent
	}
	for _, d := range c.StoryArcs {
		d.Kind = KindStoryArc
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	c.byID = make(map[string]*Definition, len(c.Missions)+len(c.WorldEvents)+len(c.StoryArcs))
	for _, d := range c.all() {
		c.byID[d.ID] = d
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	seen := map[string]bool{}
	for _, d := range c.all() {
		if d.ID == "" {
			return fmt.Errorf("definition with empty id (name %q)", d.Name)
		}
		if seen[d.ID] {
			return fmt.Errorf("%s: duplicate definition id", d.ID)
		}
		seen[d.ID] = true
		if err := d.validate(); err != nil {
			return fmt.Errorf("%s: %w", d.ID, err)
		}
	}
	return nil
}

func (d *Definition) validate() error {
	if len(d.Phases) == 0 {
		return fmt.Errorf("at least one phase is required")
	}
	if d.Weight < 0 {
		return fmt.Errorf("weight must be >= 0")
	}
	if d.Kind == KindWorldEvent && !d.TriggeredOnly && d.Weight == 0 {
		return fmt.Errorf("ambient world event needs a positive weight")
	}
	if d.BaseChance < 0 || d.BaseChance > 1 {
		return fmt.Errorf("base_chance must be in [0,1]")
	}
	if d.SkillWeight < 0 || d.LoyaltyWeight < 0 {
		return fmt.Errorf("factor weights must be >= 0")
	}
	if d.BaseChance+d.SkillWeight+d.LoyaltyWeight > 1 {
		return fmt.Errorf("base_chance + skill_weight + loyalty_weight must not exceed 1")
	}

	names := map[string]bool{}
	for i := range d.Phases {
		p := &d.Phases[i]
		if p.Name == "" {
			return fmt.Errorf("phase %d: empty name", i)
		}
		if names[p.Name] {
			return fmt.Errorf("phase %q: duplicate name", p.Name)
		}
		names[p.Name] = true
		if err := p.validate(d.Kind); err != nil {
			return fmt.Errorf("phase %q: %w", p.Name, err)
		}
	}

	// Branch targets must resolve.
	for i := range d.Phases {
		p := &d.Phases[i]
		if p.Next != "" && d.PhaseIndex(p.Next) < 0 {
			return fmt.Errorf("phase %q: next %q not found", p.Name, p.Next)
		}
		for choice, target := range p.Choices {
			if target == "" || target == ChoiceEnd {
				continue
			}
			if d.PhaseIndex(target) < 0 {
				return fmt.Errorf("phase %q: choice %q targets unknown phase %q", p.Name, choice, target)
			}
		}
	}
	return nil
}

func (p *Phase) validate(kind Kind) error {
	drives := 0
	if p.Duration > 0 || p.MaxDuration > 0 {
		drives++
	}
	if p.Requirement != nil {
		drives++
	}
	if len(p.Choices) > 0 {
		drives++
	}
	if drives != 1 {
		return fmt.Errorf("exactly one of duration, requirement, or choices is required")
	}

	if p.MaxDuration > 0 {
		if p.Duration > 0 {
			return fmt.Errorf("duration and min/max range are mutually exclusive")
		}
		if p.MinDuration > p.MaxDuration {
			return fmt.Errorf("min_duration exceeds max_duration")
		}
	}
	if p.MinDuration > 0 && p.MaxDuration == 0 {
		return fmt.Errorf("min_duration without max_duration")
	}

	if len(p.Choices) > 0 && kind != KindStoryArc {
		return fmt.Errorf("choices are only valid on story arcs")
	}

	if r := p.Requirement; r != nil {
		if r.Event == "" {
			return fmt.Errorf("requirement.event is required")
		}
		if (r.Count > 0) == (r.Threshold > 0) {
			return fmt.Errorf("requirement needs exactly one of count or threshold")
		}
		if r.Count < 0 || r.Threshold < 0 {
			return fmt.Errorf("requirement targets must be positive")
		}
		if r.MinAmount > 0 && r.MaxAmount > 0 && r.MinAmount > r.MaxAmount {
			return fmt.Errorf("requirement min_amount exceeds max_amount")
		}
	}
	return nil
}
