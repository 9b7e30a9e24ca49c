package turn

import "testing"

func TestAdaptiveDebounceController_InitialValue(t *testing.T) {
	c := NewAdaptiveDebounceController()
	if got := c.Debounce(); got != MinDebounceMS {
		t.Errorf("initial debounce = %d, want %d", got, MinDebounceMS)
	}
}

func TestAdaptiveDebounceController_HighCancellationRateIncreasesDebounce(t *testing.T) {
	c := NewAdaptiveDebounceController()
	// 4 of 10 canceled => rate 0.4 > 0.30 => debounce goes 400 -> 450.
	var debounce int
	for i := 0; i < 10; i++ {
		canceled := i < 4
		debounce, _ = c.RecordTurn(canceled, true)
	}
	if debounce != 450 {
		t.Errorf("debounce after r=0.4 = %d, want 450", debounce)
	}
}

func TestAdaptiveDebounceController_LowCancellationRateDecreasesDebounce(t *testing.T) {
	c := NewAdaptiveDebounceController()
	c.SetDebounce(500)
	// 0 of 10 canceled => rate 0 < 0.15 => debounce decreases by 25.
	var debounce int
	for i := 0; i < 10; i++ {
		debounce, _ = c.RecordTurn(false, true)
	}
	if debounce != 475 {
		t.Errorf("debounce after r=0 = %d, want 475", debounce)
	}
}

func TestAdaptiveDebounceController_MiddleRateUnchanged(t *testing.T) {
	c := NewAdaptiveDebounceController()
	c.SetDebounce(600)
	// 2 of 10 canceled => rate 0.2, between 0.15 and 0.30 => unchanged.
	var debounce int
	for i := 0; i < 10; i++ {
		debounce, _ = c.RecordTurn(i < 2, true)
	}
	if debounce != 600 {
		t.Errorf("debounce after r=0.2 = %d, want unchanged 600", debounce)
	}
}

func TestAdaptiveDebounceController_ClampsAtUpperBound(t *testing.T) {
	c := NewAdaptiveDebounceController()
	c.SetDebounce(MaxDebounceMS)
	debounce, _ := c.RecordTurn(true, true)
	for i := 1; i < 10; i++ {
		debounce, _ = c.RecordTurn(true, true)
	}
	if debounce != MaxDebounceMS {
		t.Errorf("debounce = %d, must stay clamped at %d", debounce, MaxDebounceMS)
	}
}

func TestAdaptiveDebounceController_ClampsAtLowerBound(t *testing.T) {
	c := NewAdaptiveDebounceController() // already at MinDebounceMS
	var debounce int
	for i := 0; i < 10; i++ {
		debounce, _ = c.RecordTurn(false, true)
	}
	if debounce != MinDebounceMS {
		t.Errorf("debounce = %d, must stay clamped at %d", debounce, MinDebounceMS)
	}
}

func TestAdaptiveDebounceController_DisabledAdaptationLeavesDebounceAlone(t *testing.T) {
	c := NewAdaptiveDebounceController()
	c.SetDebounce(500)
	for i := 0; i < 10; i++ {
		c.RecordTurn(true, false)
	}
	if got := c.Debounce(); got != 500 {
		t.Errorf("debounce with adaptation disabled = %d, want unchanged 500", got)
	}
}

func TestAdaptiveDebounceController_RollingWindowDropsOldTurns(t *testing.T) {
	c := NewAdaptiveDebounceController()
	for i := 0; i < 10; i++ {
		c.RecordTurn(true, false)
	}
	for i := 0; i < 10; i++ {
		c.RecordTurn(false, false)
	}
	if rate := c.Rate(); rate != 0 {
		t.Errorf("rate after 10 fresh non-canceled turns = %f, want 0 (old canceled turns must roll off)", rate)
	}
}
