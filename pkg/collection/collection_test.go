package collection

import (
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJPEG(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for x := 0; x < 40; x++ {
		img.Set(x, x%30, color.RGBA{R: 200, A: 255})
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, jpeg.Encode(f, img, &jpeg.Options{Quality: 80}))
}

func TestAddRejectsLeafAndReparent(t *testing.T) {
	root := NewGroup("r", "Root")
	pic := NewPicture("p", &Picture{Location: "a.jpg"})
	require.NoError(t, root.Add(pic))

	assert.ErrorIs(t, pic.Add(NewGroup("g", "G")), ErrLeaf)

	other := NewGroup("o", "Other")
	assert.Error(t, other.Add(pic))
	assert.Equal(t, root, pic.Parent())
	assert.Equal(t, 0, pic.Index())
	assert.Equal(t, -1, root.Index())
}

func TestCount(t *testing.T) {
	root := NewGroup("r", "Trip")
	sub := NewGroup("s", "Sub")
	require.NoError(t, root.Add(NewPicture("p1", &Picture{})))
	require.NoError(t, root.Add(NewPicture("p2", &Picture{})))
	require.NoError(t, root.Add(sub))
	require.NoError(t, sub.Add(NewPicture("p3", &Picture{})))

	assert.Equal(t, 5, Count(root))
	assert.Equal(t, 3, CountPictures(root))

	var order []string
	Walk(root, func(n *Node) bool {
		order = append(order, n.ID)
		return true
	})
	assert.Equal(t, []string{"r", "p1", "p2", "s", "p3"}, order)
}

func TestNewIDStable(t *testing.T) {
	assert.Equal(t, NewID("a/b.jpg"), NewID("a/b.jpg"))
	assert.NotEqual(t, NewID("a/b.jpg"), NewID("a/c.jpg"))
}

func TestNormalizeRotation(t *testing.T) {
	data := []struct {
		in, out int
	}{
		{0, 0}, {90, 90}, {360, 0}, {450, 90}, {-90, 270},
	}
	for _, d := range data {
		assert.Equal(t, d.out, NormalizeRotation(d.in), "rotation %d", d.in)
	}
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	writeJPEG(t, filepath.Join(dir, "b.jpg"))
	writeJPEG(t, filepath.Join(dir, "a.jpg"))
	writeJPEG(t, filepath.Join(dir, "sub", "c.jpg"))
	writeJPEG(t, filepath.Join(dir, ".hidden", "d.jpg"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o644))

	rot := 90
	require.NoError(t, WriteSidecar(filepath.Join(dir, "a.jpg"), &Sidecar{Description: "first", Rotation: &rot}))

	root, err := Scan(dir, ScanOptions{Title: "Trip"})
	require.NoError(t, err)

	assert.Equal(t, "Trip", root.Group().Name)
	require.Len(t, root.Children, 3)
	assert.Equal(t, "first", root.Children[0].Picture().Description)
	assert.Equal(t, 90, root.Children[0].Picture().Rotation)
	assert.Equal(t, filepath.Join(dir, "b.jpg"), root.Children[1].Picture().Location)
	assert.Equal(t, "sub", root.Children[2].Group().Name)
	assert.Len(t, root.Children[2].Children, 1)

	again, err := Scan(dir, ScanOptions{Title: "Trip"})
	require.NoError(t, err)
	assert.Equal(t, root.Children[2].ID, again.Children[2].ID)
}

func TestReadXML(t *testing.T) {
	doc := `<?xml version='1.0' encoding='UTF-8'?>
<collection collection_name="Trip" collection_protected="No">
<picture>
	<description><![CDATA[Beach & sun]]></description>
	<file_URL>file:/photos/p1.jpg</file_URL>
	<ROTATION>90.0</ROTATION>
	<LATLNG>47.5x8.25</LATLNG>
</picture>
<group group_name="Sub">
<picture>
	<description><![CDATA[P3]]></description>
	<file_URL>file:/photos/p3.jpg</file_URL>
	<PHOTOGRAPHER>Ann</PHOTOGRAPHER>
</picture>
</group>
<picture>
	<description><![CDATA[P2]]></description>
	<file_URL>file:/photos/p2.jpg</file_URL>
</picture>
</collection>`

	root, err := ReadXML(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, "Trip", root.Group().Name)
	require.Len(t, root.Children, 3)

	p1 := root.Children[0].Picture()
	require.NotNil(t, p1)
	assert.Equal(t, "Beach & sun", p1.Description)
	assert.Equal(t, 90, p1.Rotation)
	assert.Equal(t, &LatLng{Lat: 47.5, Lng: 8.25}, p1.LatLng)

	sub := root.Children[1]
	assert.Equal(t, "Sub", sub.Group().Name)
	require.Len(t, sub.Children, 1)
	assert.Equal(t, "Ann", sub.Children[0].Picture().Photographer)

	assert.Equal(t, "P2", root.Children[2].Picture().Description)
	assert.NotEqual(t, root.Children[0].ID, root.Children[2].ID)
}

func TestReadXMLWithoutCollection(t *testing.T) {
	_, err := ReadXML(strings.NewReader("<group/>"))
	assert.Error(t, err)
}
