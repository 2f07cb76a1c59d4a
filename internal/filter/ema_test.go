package filter

import (
	"math"
	"testing"
)

func TestNewEMA_Validation(t *testing.T) {
	tests := []struct {
		alpha   float64
		wantErr bool
	}{
		{0.3, false},
		{1, false},
		{0, true},
		{-0.1, true},
		{1.5, true},
	}

	for _, tt := range tests {
		_, err := NewEMA(tt.alpha)
		if (err != nil) != tt.wantErr {
			t.Errorf("NewEMA(%v) error = %v, wantErr %v", tt.alpha, err, tt.wantErr)
		}
	}
}

func TestEMA_FirstUpdatePassesThrough(t *testing.T) {
	e, _ := NewEMA(0.3)
	x, y := e.Update(0.7, 0.2)
	if x != 0.7 || y != 0.2 {
		t.Errorf("Update = (%v, %v), want (0.7, 0.2)", x, y)
	}
}

func TestEMA_Smoothing(t *testing.T) {
	e, _ := NewEMA(0.5)
	e.Update(0, 0)

	x, y := e.Update(1, 1)
	if x != 0.5 || y != 0.5 {
		t.Errorf("second update = (%v, %v), want (0.5, 0.5)", x, y)
	}

	x, _ = e.Update(1, 1)
	if x != 0.75 {
		t.Errorf("third update x = %v, want 0.75", x)
	}
}

func TestEMA_ConvergesToConstantInput(t *testing.T) {
	e, _ := NewEMA(0.3)
	e.Update(0, 0)

	var x, y float64
	for i := 0; i < 200; i++ {
		x, y = e.Update(0.8, 0.4)
	}
	if math.Abs(x-0.8) > 1e-9 || math.Abs(y-0.4) > 1e-9 {
		t.Errorf("converged to (%v, %v), want (0.8, 0.4)", x, y)
	}
}

func TestEMA_AlphaOneTracksInput(t *testing.T) {
	e, _ := NewEMA(1)
	e.Update(0.1, 0.1)
	x, y := e.Update(0.9, 0.6)
	if x != 0.9 || y != 0.6 {
		t.Errorf("Update = (%v, %v), want (0.9, 0.6)", x, y)
	}
}

func TestEMA_Reset(t *testing.T) {
	e, _ := NewEMA(0.3)
	e.Update(0, 0)
	e.Update(1, 1)
	e.Reset()

	x, y := e.Update(0.6, 0.6)
	if x != 0.6 || y != 0.6 {
		t.Errorf("Update after Reset = (%v, %v), want (0.6, 0.6)", x, y)
	}
}
