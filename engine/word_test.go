package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"engbench/engine"
)

func TestWordCamCrk(t *testing.T) {
	var w uint8

	engine.SetCam(&w, engine.High)
	assert.Equal(t, uint8(0x01), w)
	assert.Equal(t, engine.High, engine.GetCam(w))
	assert.Equal(t, engine.Low, engine.GetCrk(w))

	engine.SetCrk(&w, engine.High)
	assert.Equal(t, uint8(0x03), w)
	assert.Equal(t, engine.High, engine.GetCrk(w))

	engine.SetCam(&w, engine.Low)
	assert.Equal(t, uint8(0x02), w)
	assert.Equal(t, engine.Low, engine.GetCam(w))
}

func TestWordTDCMasks(t *testing.T) {
	// TDC cylinder k lives at bit 2+k, for every width.
	for cyl := 0; cyl < engine.MaxCylinders; cyl++ {
		var w uint32
		engine.SetTDC(&w, cyl, engine.High)
		assert.Equal(t, uint32(1)<<(2+cyl), w, "cylinder %d", cyl)
		assert.Equal(t, engine.High, engine.GetTDC(w, cyl))

		engine.SetTDC(&w, cyl, engine.Low)
		assert.Equal(t, uint32(0), w)
	}
}

func TestWordSetPreservesOtherBits(t *testing.T) {
	var w uint16 = 0xFF00

	engine.SetCam(&w, engine.High)
	engine.SetTDC(&w, 3, engine.High)
	assert.Equal(t, uint16(0xFF21), w)

	engine.SetTDC(&w, 3, engine.Low)
	assert.Equal(t, uint16(0xFF01), w)
}

func TestWordTDCOutOfRangePanics(t *testing.T) {
	var w uint8
	assert.Panics(t, func() { engine.SetTDC(&w, engine.MaxCylinders, engine.High) })
	assert.Panics(t, func() { _ = engine.GetTDC(w, -1) })
}

func TestLevelNot(t *testing.T) {
	assert.Equal(t, engine.Low, engine.High.Not())
	assert.Equal(t, engine.High, engine.Low.Not())
}
