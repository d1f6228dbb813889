package board

import "DrawPad/internal/state"

// ToLocal converts a device pointer position into surface coordinates by
// subtracting the surface's on-screen origin. Nothing is clipped: positions
// left of or above the surface come back negative.
func ToLocal(device state.Point, surface state.Rect) state.Point {
	return state.Point{X: device.X - surface.X, Y: device.Y - surface.Y}
}
