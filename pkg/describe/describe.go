// Package describe writes AI-generated picture descriptions into JSON sidecars, so
// the next scan of a directory picks them up.
package describe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"
	"go.uber.org/multierr"
	"google.golang.org/genai"
	"k8s.io/klog/v2"

	"github.com/tstromberg/distiller/pkg/collection"
)

// thumbSize is the longest edge of the JPEG sent to the model.
const thumbSize = 512

// maxTags caps the number of tags stored per picture.
const maxTags = 5

const prompt = "Describe this photo for a photo album caption in one plain sentence of at most " +
	"20 words. Do not start with 'This photo' or 'The image'. " +
	"On a second line write 'tags:' followed by 1-5 comma-separated one-word tags, such as " +
	"bw for black and white photos, family, friends, landscape, nature, bird, beach, " +
	"cycling, urban, forest or sunrise. Tags should be a present-tense singular word that a " +
	"professional photographer would organize albums with. If you know the location, add " +
	"the name of the place, city or country as a tag."

// Generator is the part of the genai client used here.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Describer asks a model for descriptions.
type Describer struct {
	gen   Generator
	model string
}

// New connects to the Gemini API.
func New(ctx context.Context, apiKey string, model string) (*Describer, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return NewWithGenerator(client.Models, model), nil
}

// NewWithGenerator returns a Describer using gen.
func NewWithGenerator(gen Generator, model string) *Describer {
	return &Describer{gen: gen, model: model}
}

// Suggestion is what the model proposed for one picture.
type Suggestion struct {
	Description string
	Tags        []string
}

// Describe asks the model about the image at path.
func (d *Describer) Describe(ctx context.Context, path string) (*Suggestion, error) {
	bs, err := thumbnail(path)
	if err != nil {
		return nil, fmt.Errorf("thumbnail: %w", err)
	}

	parts := []*genai.Part{
		genai.NewPartFromBytes(bs, "image/jpeg"),
		genai.NewPartFromText(prompt),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := d.gen.GenerateContent(ctx, d.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	s := parse(resp.Text())
	if s.Description == "" {
		return nil, fmt.Errorf("empty response for %s", path)
	}
	return s, nil
}

// thumbnail returns a small JPEG of the image at path.
func thumbnail(path string) ([]byte, error) {
	img, err := imgio.Open(path)
	if err != nil {
		return nil, err
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w > thumbSize || h > thumbSize {
		if w >= h {
			w, h = thumbSize, max(h*thumbSize/w, 1)
		} else {
			w, h = max(w*thumbSize/h, 1), thumbSize
		}
		img = transform.Resize(img, w, h, transform.Linear)
	}
	var b bytes.Buffer
	if err := imgio.JPEGEncoder(80)(&b, img); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// parse splits a model answer into a description and tags.
func parse(text string) *Suggestion {
	s := &Suggestion{}
	var desc []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if rest, ok := cutPrefixFold(line, "tags:"); ok {
			for _, t := range strings.Split(rest, ",") {
				t = strings.ToLower(strings.TrimSpace(strings.Trim(t, " .*")))
				t = strings.ReplaceAll(t, " ", "")
				if t != "" && len(s.Tags) < maxTags {
					s.Tags = append(s.Tags, t)
				}
			}
			continue
		}
		desc = append(desc, line)
	}
	s.Description = strings.Trim(strings.Join(desc, " "), "\"' *")
	return s
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}

// Options control Fill.
type Options struct {
	// Overwrite replaces descriptions that are already set.
	Overwrite bool
	// DryRun logs suggestions without writing sidecars.
	DryRun bool
}

// Result counts what Fill did.
type Result struct {
	Described int
	Skipped   int
	Failed    int
}

// Fill describes every local picture under root that has no description yet and
// stores the result in its sidecar. Existing sidecar fields are kept.
func (d *Describer) Fill(ctx context.Context, root *collection.Node, opts Options) (Result, error) {
	var res Result
	var errs error
	collection.Walk(root, func(n *collection.Node) bool {
		if ctx.Err() != nil {
			return false
		}
		p := n.Picture()
		if p == nil {
			return true
		}
		if p.Description != "" && !opts.Overwrite {
			klog.V(1).Infof("%s has a description: %q", p.Location, p.Description)
			res.Skipped++
			return true
		}
		if err := d.fillOne(ctx, p, opts); err != nil {
			klog.Errorf("describe %s: %v", p.Location, err)
			errs = multierr.Append(errs, err)
			res.Failed++
			return true
		}
		res.Described++
		return true
	})
	return res, multierr.Append(errs, ctx.Err())
}

func (d *Describer) fillOne(ctx context.Context, p *collection.Picture, opts Options) error {
	s, err := d.Describe(ctx, p.Location)
	if err != nil {
		return err
	}
	klog.Infof("%s: %q %v", p.Location, s.Description, s.Tags)
	p.Description = s.Description

	sc, err := collection.ReadSidecar(p.Location)
	if err != nil {
		return err
	}
	if sc == nil {
		sc = &collection.Sidecar{}
	}
	sc.Description = s.Description
	if len(sc.Tags) == 0 {
		sc.Tags = s.Tags
	}
	if opts.DryRun {
		return nil
	}
	return collection.WriteSidecar(p.Location, sc)
}
