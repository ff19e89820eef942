package recipe

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownStep is returned when a patch targets a step id the recipe lacks.
var ErrUnknownStep = errors.New("unknown step")

// Patch is a partial edit of a step. Nil fields are left unchanged.
type Patch struct {
	Title        *string  `json:"title,omitempty"`
	Instructions []string `json:"instructions,omitempty"`
	Note         *string  `json:"note,omitempty"`
	Timer        *int     `json:"timer,omitempty"`
	TimerLabel   *string  `json:"timer_label,omitempty"`
	Images       []string `json:"images,omitempty"`
}

// Apply returns s with the patch applied.
func (p Patch) Apply(s Step) (Step, error) {
	if p.Timer != nil && *p.Timer < 0 {
		return s, fmt.Errorf("timer %d: must not be negative", *p.Timer)
	}
	if p.Title != nil {
		if strings.TrimSpace(*p.Title) == "" {
			return s, errors.New("title must not be empty")
		}
		s.Title = *p.Title
	}
	if p.Instructions != nil {
		s.Instructions = append([]string(nil), p.Instructions...)
	}
	if p.Note != nil {
		s.Note = *p.Note
	}
	if p.Timer != nil {
		s.Timer = *p.Timer
	}
	if p.TimerLabel != nil {
		s.TimerLabel = *p.TimerLabel
	}
	if p.Images != nil {
		s.Images = append([]string(nil), p.Images...)
	}
	return s, nil
}

// Overrides holds edited steps keyed by step id. An edited step fully
// replaces the built-in one.
type Overrides map[int]Step

// Update applies p to the current version of step id and records the result.
func (o Overrides) Update(r *Recipe, id int, p Patch) (Step, error) {
	idx := r.IndexOf(id)
	if idx < 0 {
		return Step{}, fmt.Errorf("step %d: %w", id, ErrUnknownStep)
	}
	current, _ := r.StepAt(idx, o)
	updated, err := p.Apply(current)
	if err != nil {
		return Step{}, fmt.Errorf("step %d: %w", id, err)
	}
	o[id] = updated
	return updated, nil
}
