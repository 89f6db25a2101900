package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEWMA_AccumulatesAndDecays(t *testing.T) {
	e := NewEWMA(0.5, 3, 1_000_000)
	for i := 0; i < 4; i++ {
		e.Arrival(0)
	}
	e.Tick(1_000_000)
	assert.InDelta(t, 2.0, e.value, 1e-9)
	assert.InDelta(t, 2.0, e.Rate(), 1e-9)

	e.Tick(2_000_000)
	assert.InDelta(t, 1.0, e.value, 1e-9)
}

func TestEWMA_TickPeriod(t *testing.T) {
	e := NewEWMA(DefaultEstimatorAlpha, DefaultEstimatorBuckets, 250_000)
	assert.Equal(t, int64(250_000), e.TickPeriod())
}

func TestDRE_ArrivalDecayRateCongestion(t *testing.T) {
	d := NewDRE(0.1, 1_000_000, 10)
	d.Arrival(0)
	d.Arrival(0)
	assert.Equal(t, 2.0, d.Value())

	tau := d.tau()
	assert.InDelta(t, 2.0/tau, d.Rate(), 1e-9)
	assert.InDelta(t, 2.0/(tau*10), d.Congestion(), 1e-9)

	d.Tick(1_000_000)
	assert.InDelta(t, 1.8, d.Value(), 1e-9)
}
