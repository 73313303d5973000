package stitch

import "testing"

func TestCropBordersExactInterior(t *testing.T) {
	canvas := NewImage(60, 40)
	// 10px black border on every side around a bright interior.
	for y := 10; y < 30; y++ {
		for x := 10; x < 50; x++ {
			canvas.Set(x, y, 180, 180, 180)
		}
	}

	cropped := CropBorders(canvas, DefaultCropThreshold, testLogger())

	if cropped.Width != 40 || cropped.Height != 20 {
		t.Fatalf("cropped to %dx%d, want 40x20", cropped.Width, cropped.Height)
	}
	if r, _, _ := cropped.At(0, 0); r != 180 {
		t.Fatalf("cropped corner should be interior pixel, got %d", r)
	}
	if r, _, _ := cropped.At(39, 19); r != 180 {
		t.Fatalf("cropped far corner should be interior pixel, got %d", r)
	}
}

func TestCropBordersTreatsNearBlackAsEmpty(t *testing.T) {
	canvas := NewImage(20, 20)
	// Below-threshold noise in the border must not survive the crop.
	canvas.Set(0, 0, 8, 8, 8)
	canvas.Set(10, 10, 200, 200, 200)

	cropped := CropBorders(canvas, DefaultCropThreshold, testLogger())
	if cropped.Width != 1 || cropped.Height != 1 {
		t.Fatalf("cropped to %dx%d, want 1x1", cropped.Width, cropped.Height)
	}
}

func TestCropBordersAllEmptyReturnsUnmodified(t *testing.T) {
	canvas := NewImage(16, 12)

	cropped := CropBorders(canvas, DefaultCropThreshold, testLogger())
	if cropped != canvas {
		t.Fatalf("degenerate canvas must be returned as-is")
	}
}
