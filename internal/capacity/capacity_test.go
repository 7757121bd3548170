package capacity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var t0 = time.Date(2025, 5, 5, 8, 0, 0, 0, time.UTC)

func win(fromH, toH int) Window {
	return Window{Start: t0.Add(time.Duration(fromH) * time.Hour), End: t0.Add(time.Duration(toH) * time.Hour)}
}

func TestPeak(t *testing.T) {
	cases := []struct {
		name    string
		windows []Window
		in      Window
		want    int
	}{
		{"empty", nil, win(0, 10), 0},
		{"disjoint", []Window{win(0, 2), win(3, 5)}, win(0, 10), 1},
		{"nested", []Window{win(0, 10), win(2, 4), win(3, 5)}, win(0, 10), 3},
		{"back to back", []Window{win(0, 2), win(2, 4)}, win(0, 4), 1},
		{"outside query", []Window{win(0, 2), win(0, 2)}, win(2, 4), 0},
		{"partial overlap", []Window{win(0, 3), win(2, 6), win(5, 8)}, win(4, 9), 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Peak(tc.windows, tc.in))
		})
	}
}

func TestFits(t *testing.T) {
	existing := []Window{win(0, 4), win(2, 6)}
	assert.False(t, Fits(existing, win(3, 5), 1, 2))
	assert.True(t, Fits(existing, win(4, 5), 1, 2))
	assert.True(t, Fits(existing, win(6, 8), 2, 2))
	assert.False(t, Fits(existing, win(6, 8), 3, 2))
}

func TestCompute(t *testing.T) {
	a := Compute([]Window{win(0, 4), win(1, 3), win(2, 5)}, win(0, 5), 2)
	assert.Equal(t, 3, a.Peak)
	assert.Equal(t, 0, a.Available)

	a = Compute([]Window{win(0, 1)}, win(0, 5), 4)
	assert.Equal(t, 3, a.Available)
}

func TestEffectiveWindow(t *testing.T) {
	now := t0.Add(10 * time.Hour)
	apS, apE := t0.Add(time.Hour), t0.Add(2*time.Hour)

	w := EffectiveWindow("PENDING", t0, t0.Add(3*time.Hour), nil, nil, nil, now)
	assert.Equal(t, win(0, 3), w)

	w = EffectiveWindow("APPROVED", t0, t0.Add(3*time.Hour), &apS, &apE, nil, now)
	assert.Equal(t, win(1, 2), w)

	out := apS.Add(30 * time.Minute)
	w = EffectiveWindow("OVERDUE", t0, t0.Add(3*time.Hour), &apS, &apE, &out, now)
	assert.Equal(t, apS, w.Start)
	assert.Equal(t, now, w.End, "an item still out blocks until now")

	early := t0
	w = EffectiveWindow("ACTIVE", t0, t0.Add(3*time.Hour), &apS, &apE, &early, t0.Add(30*time.Minute))
	assert.Equal(t, win(0, 2), w, "an early checkout blocks from the checkout time")

	w = EffectiveWindow("RETURNED", t0, t0.Add(3*time.Hour), &apS, &apE, &early, now)
	assert.Equal(t, win(1, 2), w)
}
