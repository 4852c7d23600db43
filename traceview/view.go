// Package traceview renders interpreter state captured under
// keep_debug_info as a tview/tcell terminal display: register file,
// the last-8-instruction call-stack ring, and cache/counter
// statistics. It is a read-only snapshot viewer, not a stepping
// debugger — the interpreter runs a program to completion in one
// shot, so there is nothing to single-step through.
package traceview

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/lookbusy1344/rv32im-sim/asmutil"
	"github.com/lookbusy1344/rv32im-sim/interp"
)

// View is the text user interface over one finished (or failed)
// Machine run.
type View struct {
	Machine *interp.Machine
	RunErr  error

	App  *tview.Application
	Root *tview.Flex

	RegisterView *tview.TextView
	TraceView    *tview.TextView
	StatsView    *tview.TextView
}

// New builds a View over a Machine; call Show to run the event loop.
func New(m *interp.Machine, runErr error) *View {
	v := &View{
		Machine: m,
		RunErr:  runErr,
		App:     tview.NewApplication(),
	}
	v.initializeViews()
	v.buildLayout()
	v.refresh()
	return v
}

func (v *View) initializeViews() {
	v.RegisterView = tview.NewTextView().SetDynamicColors(true)
	v.RegisterView.SetBorder(true).SetTitle(" Registers ")

	v.TraceView = tview.NewTextView().SetDynamicColors(true).SetScrollable(true)
	v.TraceView.SetBorder(true).SetTitle(" Last instructions (call frame) ")

	v.StatsView = tview.NewTextView().SetDynamicColors(true)
	v.StatsView.SetBorder(true).SetTitle(" Cache / cycle statistics ")
}

func (v *View) buildLayout() {
	top := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(v.RegisterView, 0, 1, false).
		AddItem(v.StatsView, 0, 1, false)

	v.Root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(top, 0, 2, false).
		AddItem(v.TraceView, 0, 1, false)

	v.App.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyCtrlC || event.Rune() == 'q' {
			v.App.Stop()
			return nil
		}
		return event
	})
}

// Show runs the view's event loop until the user quits.
func (v *View) Show() error {
	return v.App.SetRoot(v.Root, true).Run()
}

func (v *View) refresh() {
	v.RegisterView.SetText(v.registerText())
	v.StatsView.SetText(v.statsText())
	v.TraceView.SetText(v.traceText())
}

func (v *View) registerText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "PC=0x%08x\n", v.Machine.PC)
	for i := 0; i < 32; i += 4 {
		for j := i; j < i+4; j++ {
			fmt.Fprintf(&b, "%-4s=0x%08x  ", asmutil.RegisterName(j), v.Machine.Regs[j])
		}
		b.WriteByte('\n')
	}
	if v.RunErr != nil {
		fmt.Fprintf(&b, "\n[red]error: %v[white]\n", v.RunErr)
	}
	return b.String()
}

func (v *View) statsText() string {
	s := v.Machine.Stats
	var b strings.Builder
	fmt.Fprintf(&b, "instructions: %d\n", v.Machine.TotalInsts)
	fmt.Fprintf(&b, "cycles total: %d\n\n", s.CycleTotal)
	fmt.Fprintf(&b, "simple:    %d\n", s.Simple)
	fmt.Fprintf(&b, "mul:       %d\n", s.Mul)
	fmt.Fprintf(&b, "div:       %d\n", s.Div)
	fmt.Fprintf(&b, "branch:    %d\n", s.Branch)
	fmt.Fprintf(&b, "cache hit: %d\n", s.CacheHit)
	fmt.Fprintf(&b, "mem miss:  %d\n", s.MemMiss)
	fmt.Fprintf(&b, "libc io:   %d\n", s.LibcIO)
	fmt.Fprintf(&b, "libc mem:  %d\n", s.LibcMem)
	fmt.Fprintf(&b, "\ncache hits/misses: %d/%d\n", v.Machine.Cache.Hits, v.Machine.Cache.Misses)
	return b.String()
}

func (v *View) traceText() string {
	if v.Machine.Trace == nil {
		return "[yellow]keep_debug_info was not enabled; no trace ring captured[white]"
	}
	var b strings.Builder
	for _, e := range v.Machine.Trace.LastFrame() {
		fmt.Fprintf(&b, "0x%08x  %s\n", e.PC, e.Op)
	}
	return b.String()
}
