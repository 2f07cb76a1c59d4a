package face

import "math"

// NumFeatures is the length of the vector returned by Features.
const NumFeatures = 20

// Features returns the regression input for one face: absolute iris
// positions, eye-relative iris positions, eye sizes, head landmarks and the
// mean iris position.
func Features(f *Face) []float64 {
	lms := f.Landmarks
	l, r := f.LeftIris, f.RightIris

	lrx, lry, lew, leh := eyeRelative(lms, l.X, l.Y, LeftEyeTop, LeftEyeBottom, LeftEyeOuter, LeftEyeInner)
	rrx, rry, rew, reh := eyeRelative(lms, r.X, r.Y, RightEyeTop, RightEyeBottom, RightEyeOuter, RightEyeInner)

	return []float64{
		l.X, l.Y, r.X, r.Y,
		lrx, lry, rrx, rry,
		lew, leh, rew, reh,
		lms[NoseTip].X, lms[NoseTip].Y,
		lms[Chin].X, lms[Chin].Y,
		lms[Forehead].X, lms[Forehead].Y,
		(l.X + r.X) / 2, (l.Y + r.Y) / 2,
	}
}

// eyeRelative places the iris inside the eye's bounding box.
func eyeRelative(lms []Landmark, ix, iy float64, top, bottom, outer, inner int) (relX, relY, width, height float64) {
	xMin := math.Min(lms[outer].X, lms[inner].X)
	xMax := math.Max(lms[outer].X, lms[inner].X)
	yTop, yBot := lms[top].Y, lms[bottom].Y

	width = xMax - xMin + eps
	height = math.Abs(yBot-yTop) + eps
	relX = (ix - xMin) / width
	relY = (iy - math.Min(yTop, yBot)) / height
	return relX, relY, width, height
}
