package distill

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFlatFile(t *testing.T) {
	root, _ := namingTree(t)
	var b bytes.Buffer
	require.NoError(t, WriteFlatFile(&b, root))
	assert.Equal(t, "/src/My Photo.JPG\nhttp://example.com/a/b.png?size=1\n/src/noext\nfile:///src/x&y.jpg\n", b.String())
}
