package main

import (
	"strconv"

	"github.com/reactor-ui/reactor/pkg/reactive"
	"github.com/reactor-ui/reactor/pkg/server"
	"github.com/reactor-ui/reactor/pkg/snapshot"
	"github.com/reactor-ui/reactor/pkg/view"
)

// demoApp is a small counter with a theme toggle. The count and theme
// survive reconnects through the session snapshot.
func demoApp(rt *reactive.Runtime, snap *snapshot.Snapshot) (view.Template, server.CaptureFunc, error) {
	start := 0
	dark := false
	if snap != nil {
		if _, err := snap.Get("count", &start); err != nil {
			return nil, nil, err
		}
		if _, err := snap.Get("dark", &dark); err != nil {
			return nil, nil, err
		}
	}

	count := reactive.NewSignal(rt, start)
	theme := reactive.NewSignal(rt, dark)
	parity := reactive.NewMemo(rt, func() string {
		if count.Get()%2 == 0 {
			return "even"
		}
		return "odd"
	})

	tpl := view.El("div",
		view.El("h1", view.Text("Reactor demo")),
		view.El("p",
			view.TextFunc(func() string {
				return "count: " + strconv.Itoa(count.Get()) + " (" + parity.Get() + ")"
			}),
		),
		view.El("button", view.Text("+1")).
			On("click", func(string) error {
				return count.Update(func(n int) int { return n + 1 })
			}),
		view.El("button", view.Text("reset")).
			On("click", func(string) error {
				return count.Set(0)
			}),
		view.El("button",
			view.TextFunc(func() string {
				if theme.Get() {
					return "light mode"
				}
				return "dark mode"
			}),
		).On("click", func(string) error {
			return theme.Update(func(on bool) bool { return !on })
		}),
		view.Cond(func() bool { return count.Get() >= 10 },
			view.El("p", view.Text("double digits!")),
			nil,
		),
	).AttrFunc("class", func() string {
		if theme.Get() {
			return "dark"
		}
		return "light"
	})

	capture := func(s *snapshot.Snapshot) {
		s.Set("count", count.Peek())
		s.Set("dark", theme.Peek())
	}
	return tpl, capture, nil
}
