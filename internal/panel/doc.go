// Package panel renders display frames into an in-memory framebuffer.
//
// A Framebuffer stands in for the physical 320x240 screen: each mode is
// drawn into an image.RGBA with a fixed 7x13 bitmap font, and when a
// snapshot path is configured every frame is also written out as a PNG so
// the current screen can be inspected on a headless host. A powered-off
// panel is a black frame.
package panel
