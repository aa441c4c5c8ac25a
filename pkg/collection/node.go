// Package collection models a photo collection as an ordered tree of groups and pictures.
package collection

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// namespace seeds name-based node IDs so the same relative path always gets the same ID.
var namespace = uuid.MustParse("6f1c7c5e-3a0b-4f55-9d3e-0b8a2f4c1d77")

// ErrLeaf is returned when adding children to a picture node.
var ErrLeaf = errors.New("picture nodes cannot have children")

// Payload is the content of a node: either a *Group or a *Picture.
type Payload interface {
	payload()
}

// Group is a folder-like node with a display name.
type Group struct {
	Name string
}

func (*Group) payload() {}

// LatLng is a GPS position.
type LatLng struct {
	Lat float64
	Lng float64
}

// Picture references one original image plus its metadata.
type Picture struct {
	// Location is a local path or a file/http(s) URL.
	Location string
	// Rotation in degrees, clockwise.
	Rotation    int
	Description string

	CreationTime    string
	Photographer    string
	Comment         string
	FilmReference   string
	CopyrightHolder string
	Keywords        []string

	LatLng  *LatLng
	ModTime time.Time
}

func (*Picture) payload() {}

// Node is a node in the collection tree.
type Node struct {
	ID       string
	Payload  Payload
	Children []*Node

	parent *Node
}

// NewID returns the stable ID for a node at relative path rel.
func NewID(rel string) string {
	return uuid.NewSHA1(namespace, []byte(rel)).String()
}

// NewGroup returns a group node.
func NewGroup(id string, name string) *Node {
	return &Node{ID: id, Payload: &Group{Name: name}}
}

// NewPicture returns a picture node.
func NewPicture(id string, p *Picture) *Node {
	return &Node{ID: id, Payload: p}
}

// Parent returns the parent node, or nil for a root.
func (n *Node) Parent() *Node {
	return n.parent
}

// Add appends a child to a group node.
func (n *Node) Add(c *Node) error {
	if _, ok := n.Payload.(*Group); !ok {
		return ErrLeaf
	}
	if c.parent != nil {
		return fmt.Errorf("node %s already has a parent", c.ID)
	}
	c.parent = n
	n.Children = append(n.Children, c)
	return nil
}

// Group returns the group payload, or nil.
func (n *Node) Group() *Group {
	g, _ := n.Payload.(*Group)
	return g
}

// Picture returns the picture payload, or nil.
func (n *Node) Picture() *Picture {
	p, _ := n.Payload.(*Picture)
	return p
}

// Index returns the position of n among its siblings, or -1 for a root.
func (n *Node) Index() int {
	if n.parent == nil {
		return -1
	}
	for i, c := range n.parent.Children {
		if c == n {
			return i
		}
	}
	return -1
}

func (n *Node) String() string {
	switch p := n.Payload.(type) {
	case *Group:
		return p.Name
	case *Picture:
		if p.Description != "" {
			return p.Description
		}
		return p.Location
	default:
		return n.ID
	}
}

// Count returns the number of nodes under and including n.
func Count(n *Node) int {
	total := 1
	for _, c := range n.Children {
		total += Count(c)
	}
	return total
}

// CountPictures returns the number of picture nodes under and including n.
func CountPictures(n *Node) int {
	total := 0
	if n.Picture() != nil {
		total++
	}
	for _, c := range n.Children {
		total += CountPictures(c)
	}
	return total
}

// Walk visits n and its descendants depth-first in pre-order.
// Returning false from fn skips the children of that node.
func Walk(n *Node, fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		Walk(c, fn)
	}
}

// NormalizeRotation maps any angle onto [0, 360).
func NormalizeRotation(deg int) int {
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	return deg
}
