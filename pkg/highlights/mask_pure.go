//go:build purego || js

package highlights

func dilatePlane(src, dst []uint8, m maskGeometry) {
	dilatePlaneGo(src, dst, m)
}
