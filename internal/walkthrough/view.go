package walkthrough

import (
	"github.com/sweeney/bread-timer/internal/recipe"
	"github.com/sweeney/bread-timer/internal/status"
	"github.com/sweeney/bread-timer/internal/timer"
)

// Progress dot states.
const (
	DotPassed   = "passed"
	DotActive   = "active"
	DotUpcoming = "upcoming"
)

// View is a point-in-time copy of everything the step card shows.
type View struct {
	RecipeTitle string                    `json:"recipe_title"`
	StepIndex   int                       `json:"step_index"`
	StepCount   int                       `json:"step_count"`
	HasPrev     bool                      `json:"has_prev"`
	HasNext     bool                      `json:"has_next"`
	Progress    []string                  `json:"progress"`
	Step        recipe.Step               `json:"step"`
	Ingredients []recipe.ScaledIngredient `json:"ingredients"`
	Weight      float64                   `json:"weight"`
	BaseWeight  float64                   `json:"base_weight"`
	ImageIndex  int                       `json:"image_index"`
	Image       string                    `json:"image,omitempty"`
	Timer       TimerView                 `json:"timer"`
	Alarm       AlarmView                 `json:"alarm"`
	Counts      timer.EventCounts         `json:"event_counts"`
}

// TimerView describes the live session.
type TimerView struct {
	HasTimer         bool        `json:"has_timer"`
	State            timer.State `json:"state"`
	RunID            string      `json:"run_id,omitempty"`
	DurationSeconds  int         `json:"duration_seconds"`
	RemainingSeconds int         `json:"remaining_seconds"`
	Display          string      `json:"display"`
	Label            string      `json:"label,omitempty"`
	EndTimestamp     *int64      `json:"end_timestamp"`
	// Button is the label of the single timer control.
	Button string `json:"button"`
}

// AlarmView describes the alarm output.
type AlarmView struct {
	Ringing      bool   `json:"ringing"`
	Mode         string `json:"mode"`
	Armed        bool   `json:"armed"`
	SourceActive bool   `json:"source_active"`
}

// View returns the current step card.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	n := len(c.recipe.Steps)
	step, _ := c.recipe.StepAt(c.stepIndex, c.overrides)

	progress := make([]string, n)
	for i := range progress {
		switch {
		case i < c.stepIndex:
			progress[i] = DotPassed
		case i == c.stepIndex:
			progress[i] = DotActive
		default:
			progress[i] = DotUpcoming
		}
	}

	remaining := c.session.Remaining(now)
	v := View{
		RecipeTitle: c.recipe.Title,
		StepIndex:   c.stepIndex,
		StepCount:   n,
		HasPrev:     c.stepIndex > 0,
		HasNext:     c.stepIndex < n-1,
		Progress:    progress,
		Step:        step,
		Ingredients: step.Scaled(c.recipe.BaseWeight, c.weight),
		Weight:      c.weight,
		BaseWeight:  c.recipe.BaseWeight,
		ImageIndex:  c.imageIndex,
		Timer: TimerView{
			HasTimer:         c.session.HasTimer(),
			State:            c.session.State,
			RunID:            c.session.RunID,
			DurationSeconds:  c.session.DurationSeconds,
			RemainingSeconds: remaining,
			Display:          timer.FormatClock(remaining),
			Label:            step.TimerLabel,
			Button:           buttonLabel(c.session.State),
		},
		Alarm: AlarmView{
			Ringing:      c.alarm.Ringing(),
			Mode:         string(c.alarm.Mode()),
			Armed:        c.alarm.Armed(),
			SourceActive: c.alarm.SourceActive(),
		},
		Counts: c.counts,
	}
	if c.session.EndTimestamp != nil {
		end := *c.session.EndTimestamp
		v.Timer.EndTimestamp = &end
	}
	if c.imageIndex < len(step.Images) {
		v.Image = step.Images[c.imageIndex]
	}
	return v
}

// Markdown renders the current step card as Markdown.
func (v View) Markdown() string {
	return recipe.Markdown(v.Step, v.BaseWeight, v.Weight, v.Timer.Display)
}

// Status summarizes the view for the daemon status tracker.
func (v View) Status() status.Walkthrough {
	return status.Walkthrough{
		StepIndex:        v.StepIndex,
		StepCount:        v.StepCount,
		StepTitle:        v.Step.Title,
		Weight:           v.Weight,
		TimerState:       v.Timer.State,
		RemainingSeconds: v.Timer.RemainingSeconds,
		AlarmRinging:     v.Alarm.Ringing,
		AlarmMode:        v.Alarm.Mode,
		Counts:           v.Counts,
	}
}

func buttonLabel(s timer.State) string {
	switch s {
	case timer.StateRunning:
		return "Pause"
	case timer.StatePaused:
		return "Reprendre"
	case timer.StateExpired:
		return "ALERTE - Arrêter"
	case timer.StateAcknowledged:
		return "Terminé"
	default:
		return "Démarrer"
	}
}
