//go:build !purego && !js

package highlights

import (
	"gocv.io/x/gocv"
)

// dilationKernel is the structuring element matching dilateOffsets.
func dilationKernel() (gocv.Mat, error) {
	data := make([]byte, 7*7)
	for _, o := range dilateOffsets {
		data[(o.dy+3)*7+o.dx+3] = 1
	}
	return gocv.NewMatFromBytes(7, 7, gocv.MatTypeCV8U, data)
}

// dilatePlane runs the dilation through OpenCV. Only interior cells are
// copied back so the border stays unset, as in dilatePlaneGo.
func dilatePlane(src, dst []uint8, m maskGeometry) {
	srcMat, err := gocv.NewMatFromBytes(m.rows, m.stride, gocv.MatTypeCV8U, src[:m.size])
	if err != nil {
		dilatePlaneGo(src, dst, m)
		return
	}
	defer srcMat.Close()

	kernel, err := dilationKernel()
	if err != nil {
		dilatePlaneGo(src, dst, m)
		return
	}
	defer kernel.Close()

	dstMat := gocv.NewMat()
	defer dstMat.Close()
	gocv.MorphologyExWithParams(srcMat, &dstMat, gocv.MorphDilate, kernel, 1, gocv.BorderReflect)

	out, err := dstMat.DataPtrUint8()
	if err != nil || len(out) < m.size {
		dilatePlaneGo(src, dst, m)
		return
	}
	for row := maskBorder; row < m.mheight-maskBorder; row++ {
		off := row * m.stride
		for col := maskBorder; col < m.mwidth-maskBorder; col++ {
			dst[off+col] = out[off+col]
		}
	}
}
