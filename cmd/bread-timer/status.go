package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/sweeney/bread-timer/internal/config"
	"github.com/sweeney/bread-timer/internal/recipe"
	"github.com/sweeney/bread-timer/internal/store"
	"github.com/sweeney/bread-timer/internal/timer"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("172"))
	labelStyle = lipgloss.NewStyle().Bold(true).Width(10)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	alertStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
)

// persisted is the stored walkthrough record resolved against a recipe.
type persisted struct {
	State     store.AppState
	Step      recipe.Step
	StepCount int
	// Remaining is the countdown left at Now; only meaningful with an end timestamp.
	Remaining int
}

func readPersisted(kv store.KV, rec *recipe.Recipe, now time.Time) persisted {
	bridge := store.NewBridge(kv, rec.DefaultWeight)
	st := bridge.Load()
	if st.Step >= len(rec.Steps) {
		st.Step = len(rec.Steps) - 1
	}
	step, _ := rec.StepAt(st.Step, bridge.LoadOverrides())

	p := persisted{State: st, Step: step, StepCount: len(rec.Steps), Remaining: step.Timer}
	if st.TimerEndTimestamp != nil {
		left := *st.TimerEndTimestamp - now.UnixMilli()
		p.Remaining = int((left + 999) / 1000)
		if p.Remaining < 0 {
			p.Remaining = 0
		}
	}
	return p
}

func printStatus(w io.Writer, cfg config.Config) error {
	rec, err := loadRecipe(cfg)
	if err != nil {
		return err
	}
	kv, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer kv.Close()

	p := readPersisted(kv, rec, time.Now())
	writeSummary(w, rec, p)

	md := recipe.Markdown(p.Step, rec.BaseWeight, p.State.Weight, timer.FormatClock(p.Remaining))
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(80)); err == nil {
			if out, err := r.Render(md); err == nil {
				md = out
			}
		}
	}
	fmt.Fprintln(w)
	fmt.Fprint(w, md)
	return nil
}

func writeSummary(w io.Writer, rec *recipe.Recipe, p persisted) {
	fmt.Fprintln(w, titleStyle.Render(rec.Title))
	fmt.Fprintf(w, "%s %d/%d %s\n", labelStyle.Render("Étape"), p.State.Step+1, p.StepCount, p.Step.Title)
	fmt.Fprintf(w, "%s %.0f g\n", labelStyle.Render("Poids"), p.State.Weight)

	var timerText string
	switch {
	case p.Step.Timer == 0:
		timerText = mutedStyle.Render("aucun")
	case p.State.TimerEndTimestamp == nil:
		timerText = mutedStyle.Render("arrêté")
	case p.Remaining == 0:
		timerText = alertStyle.Render("terminé")
	default:
		end := time.UnixMilli(*p.State.TimerEndTimestamp)
		timerText = fmt.Sprintf("%s (fin à %s)", timer.FormatClock(p.Remaining), end.Format("15:04"))
	}
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Minuteur"), timerText)
}

func resetState(w io.Writer, cfg config.Config, withOverrides bool) error {
	rec, err := loadRecipe(cfg)
	if err != nil {
		return err
	}
	kv, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer kv.Close()

	var failed error
	bridge := store.NewBridge(kv, rec.DefaultWeight)
	bridge.OnError = func(op string, err error) { failed = fmt.Errorf("%s: %w", op, err) }
	bridge.Clear()
	if withOverrides {
		bridge.ClearOverrides()
	}
	if failed != nil {
		return failed
	}
	fmt.Fprintln(w, "état effacé")
	return nil
}
