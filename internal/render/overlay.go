package render

// Status icons drawn along the top edge of the panel: home on the main
// screen, food while hungry, poop while the pen needs cleaning.

var iconHome = ParseBitmap([]string{
	"...##...",
	"..####..",
	".######.",
	"########",
	".#....#.",
	".#.##.#.",
	".#.##.#.",
	".######.",
})

var iconFood = ParseBitmap([]string{
	".#.#..#.",
	".#.#..#.",
	".###..#.",
	"..#..##.",
	"..#...#.",
	"..#...#.",
	"..#...#.",
	"..#...#.",
})

var iconPoop = ParseBitmap([]string{
	"....#...",
	"...##...",
	"..####..",
	"..####..",
	".######.",
	".######.",
	"########",
	".######.",
})

// drawBar draws an outlined gauge filled proportionally to frac.
func drawBar(dst *Bitmap, x, y, w, h int, frac float64) {
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	dst.Rect(x, y, w, h)
	fill := int(frac*float64(w-2) + 0.5)
	dst.Fill(x+1, y+1, fill, h-2)
}
