// Package ssd1963 controls an SSD1963 LCD controller over a 16-bit parallel
// bus.
//
// The SSD1963 drives RGB TFT panels up to 864×480 pixels. This driver
// configures it for 16-bit RGB565 pixel data and implements the
// display.Drawer interface from periph.io.
//
// # Controller Characteristics
//
// - 8080-style parallel interface: D0-D15, D/C, WR, RD, CS, RESET
// - Internal frame memory, written and read through address windows
// - Programmable panel timing (sync pulses, porches, pixel clock)
// - Backlight PWM output
// - Display inversion and vertical hardware scrolling
//
// # Hardware Connection
//
//	Controller Pin → System Pin
//	D0-D15         → 16 GPIOs (a single port or gpiochip for bulk writes)
//	D/C (RS)       → GPIO
//	WR             → GPIO
//	RD             → GPIO (optional, required for read-back and scrolling)
//	CS             → GPIO (or GND if always selected)
//	RESET          → GPIO (optional)
//
// # Basic Usage
//
//	b, _ := bus.New(bus.Pins{
//		Data: &bus.PinBus{Pins: dataPins},
//		DC:   gpioreg.ByName("GPIO20"),
//		WR:   gpioreg.ByName("GPIO21"),
//		RD:   gpioreg.ByName("GPIO22"),
//		CS:   gpioreg.ByName("GPIO23"),
//	}, nil)
//
//	dev, _ := ssd1963.NewParallel(b, &ssd1963.Opts{W: 800, H: 480})
//	defer dev.Halt()
//
//	area, _ := bounds.Clip(bounds.Span(10, 109), bounds.Span(10, 59), dev.Extent())
//	dev.Fill(area, rgb565.Red)
//
// # Windows and Streams
//
// Every memory access goes through a window: an inclusive rectangle set with
// SetWindow. Fill writes a single color, FillStream consumes an iter.Seq of
// colors and ReadStream yields the window contents back. Pixels stream row by
// row, or column by column when Opts.Exchange is set; Transposed reports
// which. Windows are checked against Extent before any bus traffic.
//
// # Panel Timing
//
// Opts.Timing holds the horizontal and vertical period registers, written as
// given, and the blanking added to the resolution when programming the pixel
// clock for Timing.Refresh. DefaultTiming fits the common 800×480 7" panels.
//
// # TinyGo Drawing
//
// Displayer returns an adapter implementing drivers.Displayer from
// tinygo.org/x/drivers, so tinyfont and tinydraw can render directly on the
// panel.
//
// # Datasheet
//
// https://www.solomon-systech.com/product/ssd1963/
package ssd1963
