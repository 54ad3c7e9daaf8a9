package panel

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/nerrad567/keycounter-core/internal/device"
	"github.com/nerrad567/keycounter-core/internal/display"
)

// Default geometry, matching the original 320x240 TFT.
const (
	DefaultWidth      = 320
	DefaultHeight     = 240
	DefaultBrightness = 100
)

// chartHeight is the sparkline strip height in Telemetry mode.
const chartHeight = 60

// Palette before brightness scaling.
var (
	colorBackground = color.RGBA{0, 0, 0, 255}
	colorHeader     = color.RGBA{0, 160, 220, 255}
	colorText       = color.RGBA{230, 230, 230, 255}
	colorDim        = color.RGBA{130, 130, 130, 255}
	colorAccent     = color.RGBA{80, 220, 100, 255}
	colorWarn       = color.RGBA{240, 170, 40, 255}
)

// Config holds framebuffer settings.
type Config struct {
	Width  int
	Height int
	// Brightness scales every colour, 0 to 100.
	Brightness int
	// SnapshotPath, when set, receives a PNG of every frame.
	SnapshotPath string
}

// Framebuffer is a display.Panel backed by an image.RGBA.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Framebuffer struct {
	mu      sync.Mutex
	cfg     Config
	img     *image.RGBA
	powered bool
	frames  uint64
}

// New creates a powered-on, blank framebuffer.
func New(cfg Config) (*Framebuffer, error) {
	if cfg.Width == 0 {
		cfg.Width = DefaultWidth
	}
	if cfg.Height == 0 {
		cfg.Height = DefaultHeight
	}
	if cfg.Width < 0 || cfg.Height < 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, cfg.Width, cfg.Height)
	}
	if cfg.Brightness <= 0 || cfg.Brightness > 100 {
		cfg.Brightness = DefaultBrightness
	}

	fb := &Framebuffer{
		cfg:     cfg,
		img:     image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height)),
		powered: true,
	}
	fb.clear()
	return fb, nil
}

// Render draws one frame for mode.
func (f *Framebuffer) Render(mode display.Mode, view display.View, showChart bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.clear()
	y := f.header(mode, view)

	switch mode {
	case display.ModeTelemetry:
		f.telemetry(y, view.Devices, showChart)
	case display.ModeSession:
		f.session(y, view.Devices)
	case display.ModeHost:
		f.host(y, view.Host)
	case display.ModeWireless:
		f.wireless(y, view.Wireless)
	default:
		f.line(margin, y, "unknown mode "+string(mode), colorWarn)
	}

	f.frames++
	return f.flush()
}

// Power switches the panel. Powering off blanks the frame.
func (f *Framebuffer) Power(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.powered = on
	if on {
		return nil
	}
	f.clear()
	return f.flush()
}

// Powered reports whether the panel is on.
func (f *Framebuffer) Powered() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.powered
}

// Frames returns the number of frames rendered.
func (f *Framebuffer) Frames() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frames
}

// Image returns a copy of the current frame.
func (f *Framebuffer) Image() *image.RGBA {
	f.mu.Lock()
	defer f.mu.Unlock()

	cpy := image.NewRGBA(f.img.Bounds())
	copy(cpy.Pix, f.img.Pix)
	return cpy
}

// WritePNG encodes the current frame to w.
func (f *Framebuffer) WritePNG(w io.Writer) error {
	return png.Encode(w, f.Image())
}

// flush writes the snapshot file, replacing it atomically. Caller holds mu.
func (f *Framebuffer) flush() error {
	if f.cfg.SnapshotPath == "" {
		return nil
	}

	dir := filepath.Dir(f.cfg.SnapshotPath)
	tmp, err := os.CreateTemp(dir, ".snapshot-*.png")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSnapshot, err)
	}
	defer os.Remove(tmp.Name())

	if err := png.Encode(tmp, f.img); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: encoding: %w", ErrSnapshot, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrSnapshot, err)
	}
	if err := os.Rename(tmp.Name(), f.cfg.SnapshotPath); err != nil {
		return fmt.Errorf("%w: %w", ErrSnapshot, err)
	}
	return nil
}

func (f *Framebuffer) clear() {
	draw.Draw(f.img, f.img.Bounds(), image.NewUniform(colorBackground), image.Point{}, draw.Src)
}

// shade applies brightness to c.
func (f *Framebuffer) shade(c color.RGBA) color.RGBA {
	scale := func(v uint8) uint8 { return uint8(int(v) * f.cfg.Brightness / 100) }
	return color.RGBA{scale(c.R), scale(c.G), scale(c.B), c.A}
}

// line draws one clipped text line and returns the y of the next line.
func (f *Framebuffer) line(x, y int, s string, c color.RGBA) int {
	drawText(f.img, x, y, fitText(s, f.cfg.Width-x-margin), f.shade(c))
	return y + lineHeight
}

// rowsLeft reports how many text lines fit between y and bottom.
func rowsLeft(y, bottom int) int {
	if bottom <= y {
		return 0
	}
	return (bottom - y) / lineHeight
}

// header draws the title bar and returns the first body line.
func (f *Framebuffer) header(mode display.Mode, view display.View) int {
	title := view.Title
	if title == "" {
		title = "KeyCounter"
	}
	y := f.line(margin, margin, title+" | "+string(mode), colorHeader)
	if !view.At.IsZero() {
		y = f.line(margin, y, view.At.Format("2006-01-02 15:04:05"), colorDim)
	}
	return y + lineHeight/2
}

func (f *Framebuffer) telemetry(y int, devices []device.State, showChart bool) {
	if len(devices) == 0 {
		f.line(margin, y, "Waiting for telemetry...", colorDim)
		return
	}

	bottom := f.cfg.Height - margin
	if showChart {
		bottom -= chartHeight + margin
	}

	if showChart {
		d := devices[0]
		y = f.line(margin, y, "Device "+d.ID.String(), colorAccent)
		y = f.line(margin, y, "Streak    "+strconv.FormatInt(d.StreakCurrent, 10), colorText)
		y = f.line(margin, y, "Average   "+formatOne(d.StreakAverage), colorText)
		y = f.line(margin, y, "Session   "+strconv.FormatInt(d.SessionTotal, 10), colorText)
		if d.SystemLabel != "" && rowsLeft(y, bottom) > 0 {
			f.line(margin, y, "System    "+d.SystemLabel, colorDim)
		}

		chart := image.Rect(margin, f.cfg.Height-margin-chartHeight, f.cfg.Width-margin, f.cfg.Height-margin)
		drawSparkline(f.img, d.History, chart, f.shade(colorAccent))
		return
	}

	rows := rowsLeft(y, bottom)
	if rows == 0 {
		return
	}
	for i, d := range devices {
		if i == rows-1 && len(devices) > rows {
			f.line(margin, y, fmt.Sprintf("+%d more", len(devices)-i), colorDim)
			return
		}
		y = f.line(margin, y, fmt.Sprintf("%-10s streak %-6d avg %s",
			d.ID.String(), d.StreakCurrent, formatOne(d.StreakAverage)), colorText)
	}
}

func (f *Framebuffer) session(y int, devices []device.State) {
	if len(devices) == 0 {
		f.line(margin, y, "No active sessions", colorDim)
		return
	}

	rows := rowsLeft(y, f.cfg.Height-margin)
	for i, d := range devices {
		if rows < 2 {
			f.line(margin, y, fmt.Sprintf("+%d more", len(devices)-i), colorDim)
			return
		}
		y = f.line(margin, y, fmt.Sprintf("%-10s total %d", d.ID.String(), d.SessionTotal), colorText)
		stamp := d.Time
		if stamp == "" {
			stamp = d.Timestamp
		}
		y = f.line(margin*3, y, fmt.Sprintf("seq %d  %s", d.Sequence, stamp), colorDim)
		rows -= 2
	}
}

func (f *Framebuffer) host(y int, h display.HostView) {
	if !h.Valid {
		f.line(margin, y, "No temperature sensor", colorWarn)
		return
	}
	y = f.line(margin, y, "Temperature  "+formatOne(h.Current)+" C", colorAccent)
	y = f.line(margin, y, "Max          "+formatOne(h.Max)+" C", colorText)
	y = f.line(margin, y, "Min          "+formatOne(h.Min)+" C", colorText)
	f.line(margin, y, "Avg          "+formatOne(h.Avg)+" C", colorText)
}

func (f *Framebuffer) wireless(y int, w display.WirelessView) {
	if !w.Connected {
		y = f.line(margin, y, "Not connected", colorWarn)
	} else {
		y = f.line(margin, y, "Connected", colorAccent)
	}
	y = f.line(margin, y, "SSID      "+orDash(w.SSID), colorText)
	y = f.line(margin, y, "IP        "+orDash(w.IP), colorText)
	f.line(margin, y, "Hostname  "+orDash(w.Hostname), colorText)
}

func formatOne(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
