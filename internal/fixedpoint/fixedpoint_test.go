package fixedpoint

import "testing"

func TestConversions(t *testing.T) {
	tests := []struct {
		name  string
		x     FP
		trunc int
		round int
	}{
		{"zero", FromInt(0), 0, 0},
		{"whole", FromInt(5), 5, 5},
		{"negative whole", FromInt(-5), -5, -5},
		{"half rounds away", FromInt(1).DivInt(2), 0, 1},
		{"negative half rounds away", FromInt(-1).DivInt(2), 0, -1},
		{"below half rounds down", FromInt(49).DivInt(100), 0, 0},
		{"above half rounds up", FromInt(51).DivInt(100), 0, 1},
		{"large", FromInt(59).DivInt(60).MulInt(60), 58, 59},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.x.Trunc(); got != tt.trunc {
				t.Errorf("Trunc() = %d, want %d", got, tt.trunc)
			}
			if got := tt.x.Round(); got != tt.round {
				t.Errorf("Round() = %d, want %d", got, tt.round)
			}
		})
	}
}

func TestArithmetic(t *testing.T) {
	a := FromInt(3)
	b := FromInt(2)

	if got := a.Mul(b).Trunc(); got != 6 {
		t.Errorf("3*2 = %d, want 6", got)
	}
	if got := a.Div(b).Round(); got != 2 {
		t.Errorf("round(3/2) = %d, want 2", got)
	}
	if got := a.AddInt(4).Trunc(); got != 7 {
		t.Errorf("3+4 = %d, want 7", got)
	}
	if got := a.SubInt(4).Round(); got != -1 {
		t.Errorf("3-4 = %d, want -1", got)
	}

	// The load average decay coefficient 59/60 must survive a
	// multiply-accumulate without drifting more than one ulp.
	coeff := FromInt(59).Div(FromInt(60))
	load := FromInt(1)
	load = coeff.Mul(load).Add(FromInt(1).Div(FromInt(60)))
	if got := load.MulInt(100).Round(); got != 100 {
		t.Errorf("steady-state load*100 = %d, want 100", got)
	}
}
