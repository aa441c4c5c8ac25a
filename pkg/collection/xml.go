package collection

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"k8s.io/klog/v2"
)

// LoadXML reads a collection file from disk.
func LoadXML(path string) (*Node, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	return ReadXML(f)
}

// ReadXML parses a collection XML document: a <collection> root holding nested
// <group> and <picture> elements in display order.
func ReadXML(r io.Reader) (*Node, error) {
	d := xml.NewDecoder(r)
	d.Strict = false

	var (
		root  *Node
		stack []*Node
		pic   *Picture
		field string
		text  strings.Builder
	)

	// child IDs hash the parent ID plus the child position.
	pos := func(parent *Node) string {
		return fmt.Sprintf("%s/%d", parent.ID, len(parent.Children))
	}

	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "collection":
				if root != nil {
					return nil, errors.New("nested collection element")
				}
				root = NewGroup(NewID("xml:0"), attr(t, "collection_name"))
				stack = append(stack, root)
			case "group":
				if len(stack) == 0 {
					return nil, errors.New("group outside of collection")
				}
				parent := stack[len(stack)-1]
				g := NewGroup(NewID("xml:"+pos(parent)), attr(t, "group_name"))
				if err := parent.Add(g); err != nil {
					return nil, err
				}
				stack = append(stack, g)
			case "picture":
				if len(stack) == 0 {
					return nil, errors.New("picture outside of collection")
				}
				pic = &Picture{}
			default:
				if pic != nil {
					field = t.Name.Local
					text.Reset()
				}
			}
		case xml.CharData:
			if field != "" {
				text.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "collection", "group":
				if len(stack) > 0 {
					stack = stack[:len(stack)-1]
				}
			case "picture":
				if pic == nil || len(stack) == 0 {
					continue
				}
				parent := stack[len(stack)-1]
				if err := parent.Add(NewPicture(NewID("xml:"+pos(parent)), pic)); err != nil {
					return nil, err
				}
				pic = nil
			default:
				if pic != nil && field == t.Name.Local {
					setField(pic, field, strings.TrimSpace(text.String()))
					field = ""
				}
			}
		}
	}

	if root == nil {
		return nil, errors.New("no collection element")
	}
	return root, nil
}

func attr(e xml.StartElement, name string) string {
	for _, a := range e.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func setField(p *Picture, field string, v string) {
	switch field {
	case "description":
		p.Description = v
	case "CREATION_TIME":
		p.CreationTime = v
	case "file_URL":
		p.Location = v
	case "COMMENT":
		p.Comment = v
	case "PHOTOGRAPHER":
		p.Photographer = v
	case "film_reference":
		p.FilmReference = v
	case "COPYRIGHT_HOLDER":
		p.CopyrightHolder = v
	case "ROTATION":
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			klog.Warningf("bad rotation %q: %v", v, err)
			return
		}
		p.Rotation = NormalizeRotation(int(f))
	case "LATLNG":
		ll, err := parseLatLng(v)
		if err != nil {
			klog.Warningf("bad latlng %q: %v", v, err)
			return
		}
		p.LatLng = ll
	}
}

// parseLatLng parses "47.1x8.5".
func parseLatLng(s string) (*LatLng, error) {
	lat, lng, ok := strings.Cut(s, "x")
	if !ok {
		return nil, fmt.Errorf("missing separator")
	}
	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return nil, err
	}
	ln, err := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	if err != nil {
		return nil, err
	}
	return &LatLng{Lat: la, Lng: ln}, nil
}
