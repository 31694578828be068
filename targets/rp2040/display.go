//go:build rp2040

package main

import (
	"image/color"
	"machine"

	"tinygo.org/x/drivers/ssd1306"

	"engbench/device"
	"engbench/engine"
)

// SSD1306 status display on I2C0: SDA=GPIO4, SCL=GPIO5, address 0x3C.
// The display is optional; without one the writes go nowhere.
const (
	displaySDA  = machine.Pin(4)
	displaySCL  = machine.Pin(5)
	displayAddr = 0x3C
)

var (
	display   ssd1306.Device
	displayOn = color.RGBA{255, 255, 255, 255}
)

func initDisplay() {
	err := machine.I2C0.Configure(machine.I2CConfig{
		Frequency: 400000,
		SDA:       displaySDA,
		SCL:       displaySCL,
	})
	if err != nil {
		return
	}

	display = ssd1306.NewI2C(machine.I2C0)
	display.Configure(ssd1306.Config{
		Width:   128,
		Height:  32,
		Address: displayAddr,
	})
	display.ClearDisplay()
}

// updateDisplay redraws the status: a run indicator block, a load
// progress bar, and a speed bar. No font, just pixels.
func updateDisplay(b *device.Bench) {
	display.ClearBuffer()

	// Run indicator: solid 8x8 block top left while playing
	if b.Running() {
		fillRect(0, 0, 8, 8)
	}

	// Load bar, rows 12..18: full width means a complete train
	loadWidth := int16(int64(b.Loaded()) * 127 / engine.TrainLen)
	fillRect(0, 12, loadWidth+1, 7)

	// Speed bar, rows 24..30: full width at 10000 rpm
	const maxRate = 10000 * 60
	rate := b.Rate()
	if rate > maxRate {
		rate = maxRate
	}
	rateWidth := int16(int64(rate) * 127 / maxRate)
	fillRect(0, 24, rateWidth+1, 7)

	display.Display()
}

func fillRect(x, y, w, h int16) {
	for dx := int16(0); dx < w; dx++ {
		for dy := int16(0); dy < h; dy++ {
			display.SetPixel(x+dx, y+dy, displayOn)
		}
	}
}
