package components

import (
	"strings"
	"testing"

	tea "charm.land/bubbletea/v2"
)

func TestButton_PressOnEnterAndSpace(t *testing.T) {
	pressed := 0
	b := NewButton("開始", true, func() tea.Cmd {
		pressed++
		return nil
	})

	b, _ = b.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	b, _ = b.Update(tea.KeyPressMsg{Code: ' ', Text: " "})
	b, _ = b.Update(tea.KeyPressMsg{Code: 'x', Text: "x"})
	if pressed != 2 {
		t.Fatalf("expected 2 presses, got %d", pressed)
	}

	b.Active = false
	b.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	if pressed != 2 {
		t.Fatal("an inactive button must not fire")
	}
}

func TestMeter(t *testing.T) {
	tests := []struct {
		name  string
		meter Meter
		want  float64
	}{
		{"empty", Meter{Used: 0, Max: 1000}, 0},
		{"half", Meter{Used: 500, Max: 1000}, 0.5},
		{"over budget", Meter{Used: 1400, Max: 1000}, 1},
		{"no budget", Meter{Used: 10, Max: 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.meter.Ratio(); got != tt.want {
				t.Fatalf("Ratio() = %v, want %v", got, tt.want)
			}
		})
	}

	view := Meter{Label: "記憶", Used: 420, Max: 1000, Width: 40}.View()
	if !strings.Contains(view, "記憶") || !strings.Contains(view, "420/1000") {
		t.Fatalf("unexpected view %q", view)
	}
}
