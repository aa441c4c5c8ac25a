package distill

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatrixWindow(t *testing.T) {
	def := MatrixOpts{Before: 15, Shown: 35, PerRow: 5}
	data := []struct {
		child, count int
		m            MatrixOpts
		start, end   int
	}{
		{0, 3, def, 0, 5},
		{2, 10, def, 0, 10},
		{17, 100, def, 0, 35},
		{20, 100, def, 5, 40},
		{99, 100, def, 80, 100},
		{40, 42, def, 25, 45},
		{5, 20, MatrixOpts{Before: 2, Shown: 4, PerRow: 2}, 2, 6},
	}
	for _, d := range data {
		t.Run(fmt.Sprintf("%d_of_%d", d.child, d.count), func(t *testing.T) {
			start, end := matrixWindow(d.child, d.count, d.m)
			assert.Equal(t, d.start, start, "start")
			assert.Equal(t, d.end, end, "end")
			assert.LessOrEqual(t, start, d.child)
			assert.Greater(t, end, d.child)
			assert.Zero(t, start%d.m.PerRow)
		})
	}
}

func TestMatrixRows(t *testing.T) {
	rows := matrixRows([]matrixCell{{Label: 1}, {Label: 2}, {Label: 3}}, 2)
	assert.Len(t, rows, 2)
	assert.Equal(t, 3, rows[1][0].Label)
	assert.True(t, rows[1][1].Blank)
}

func TestContent(t *testing.T) {
	got := currentContent(2, 5, "Tom's boat", [][2]string{{"Date", "2009-01-02"}, {"Comment", ""}})
	assert.Equal(t, `<p><strong>Picture</strong> 2 of 5:</p><p><b>Description:</b><br>Tom\'s boat</p><p><b>Date:</b><br>2009-01-02</p>`, got)

	got = siblingContent(3, 5, "jpo_1_l.jpg", "a\nb")
	assert.Equal(t, `<p>Picture 3/5:</p><p><img src="jpo_1_l.jpg" width=120 alt="Thumbnail"></p><p><i>a b</i></p>`, got)
}

func TestHref(t *testing.T) {
	data := []struct {
		in   string
		want string
	}{
		{"index.htm", "index.htm"},
		{"a#1.htm", "a%231.htm"},
		{"what?.jpg", "what%3F.jpg"},
		{"/tmp/my pics/a.jpg", "/tmp/my%20pics/a.jpg"},
		{"http://example.com/a.jpg?w=1&h=2", "http://example.com/a.jpg?w=1&amp;h=2"},
	}
	for _, d := range data {
		t.Run(d.in, func(t *testing.T) {
			assert.Equal(t, d.want, href(d.in))
		})
	}
}

func TestGroupPageClosesOnWriteError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.htm")
	gp, err := createGroupPage(path, 2)
	require.NoError(t, err)
	// Writes now fail when the buffer is flushed.
	require.NoError(t, gp.f.Close())

	gp.header(groupHeader{Title: "Trip", Columns: 2})
	gp.pictureCell(pictureCell{ID: "a_l.jpg", Link: "a.htm", Src: "a_l.jpg"}, "A")
	err = gp.close()
	assert.ErrorContains(t, err, "flush")

	// close keeps the first error.
	assert.Equal(t, err, gp.close())
}
