package segmentation

import (
	"image"

	"github.com/swdee/go-handtrack/matrix"
)

// Cursor is the resumable position of a foreground scan.  The zero value
// starts at the top-left pixel.
type Cursor struct {
	image.Point
}

// FindNextForegroundPixel scans the foreground mask in row-major order from
// the cursor and returns the next foreground pixel that has not been marked in
// searched.  The cursor is advanced past the returned pixel so repeated calls
// resume where the previous one stopped.  It returns false once no unsearched
// foreground pixel remains.
//
// The scanner never marks pixels itself, callers are expected to mark the whole
// blob a seed belongs to before calling again.
func FindNextForegroundPixel(foreground, searched *matrix.Byte, cursor *Cursor) (image.Point, bool) {

	width := foreground.Width
	height := foreground.Height

	start := cursor.Y*width + cursor.X

	if start < 0 {
		start = 0
	}

	total := width * height

	for idx := start; idx < total; idx++ {
		if foreground.Data[idx] == 0 || searched.Data[idx] != 0 {
			continue
		}

		pt := image.Pt(idx%width, idx/width)

		next := idx + 1
		cursor.Point = image.Pt(next%width, next/width)

		return pt, true
	}

	cursor.Point = image.Pt(0, height)

	return image.Point{}, false
}
