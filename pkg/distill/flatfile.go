package distill

import (
	"bufio"
	"fmt"
	"io"

	"github.com/tstromberg/distiller/pkg/collection"
)

// WriteFlatFile lists the location of every picture under root, one per line, in
// depth-first order.
func WriteFlatFile(w io.Writer, root *collection.Node) error {
	bw := bufio.NewWriter(w)
	var err error
	collection.Walk(root, func(n *collection.Node) bool {
		if err != nil {
			return false
		}
		if p := n.Picture(); p != nil {
			_, err = fmt.Fprintln(bw, p.Location)
		}
		return true
	})
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return bw.Flush()
}
