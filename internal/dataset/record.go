package dataset

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/ironsheep/specimen-tools-mcp/internal/detection"
	"github.com/ironsheep/specimen-tools-mcp/internal/fsutil"
)

// Part is one landmark of a training record, by dense index.
type Part struct {
	Index int `json:"index"`
	X     int `json:"x"`
	Y     int `json:"y"`
}

// Record is one training sample: a normalized image, the specimen box in that
// image's pixel space, and its landmarks sorted by dense index.
type Record struct {
	ImagePath string        `json:"image_path"`
	Box       detection.Box `json:"box"`
	Parts     []Part        `json:"parts"`
}

// SortParts orders r.Parts by dense index.
func (r *Record) SortParts() {
	sort.Slice(r.Parts, func(i, j int) bool { return r.Parts[i].Index < r.Parts[j].Index })
}

type xmlDataset struct {
	XMLName xml.Name   `xml:"dataset"`
	Images  []xmlImage `xml:"images>image"`
}

type xmlImage struct {
	File  string   `xml:"file,attr"`
	Boxes []xmlBox `xml:"box"`
}

type xmlBox struct {
	Top    int       `xml:"top,attr"`
	Left   int       `xml:"left,attr"`
	Width  int       `xml:"width,attr"`
	Height int       `xml:"height,attr"`
	Parts  []xmlPart `xml:"part"`
}

type xmlPart struct {
	Name string `xml:"name,attr"`
	X    int    `xml:"x,attr"`
	Y    int    `xml:"y,attr"`
}

// WriteXML atomically writes records in the dlib image-dataset layout.
func WriteXML(path string, records []Record) error {
	doc := xmlDataset{Images: make([]xmlImage, 0, len(records))}
	for _, r := range records {
		box := xmlBox{
			Top:    r.Box.Top,
			Left:   r.Box.Left,
			Width:  r.Box.Width(),
			Height: r.Box.Height(),
		}
		for _, p := range r.Parts {
			box.Parts = append(box.Parts, xmlPart{Name: strconv.Itoa(p.Index), X: p.X, Y: p.Y})
		}
		doc.Images = append(doc.Images, xmlImage{File: r.ImagePath, Boxes: []xmlBox{box}})
	}

	return fsutil.Write(path, func(w io.Writer) error {
		if _, err := io.WriteString(w, xml.Header); err != nil {
			return err
		}
		enc := xml.NewEncoder(w)
		enc.Indent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Flush()
	})
}

// ReadXML reads a dataset written by WriteXML. Only the first box of each
// image is used.
func ReadXML(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	var doc xmlDataset
	if err := xml.NewDecoder(f).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse dataset %s: %w", path, err)
	}

	records := make([]Record, 0, len(doc.Images))
	for _, img := range doc.Images {
		if len(img.Boxes) == 0 {
			continue
		}
		b := img.Boxes[0]
		r := Record{
			ImagePath: img.File,
			Box: detection.Box{
				Left:   b.Left,
				Top:    b.Top,
				Right:  b.Left + b.Width,
				Bottom: b.Top + b.Height,
			},
		}
		for _, p := range b.Parts {
			idx, err := strconv.Atoi(p.Name)
			if err != nil {
				return nil, fmt.Errorf("invalid part name %q in %s: %w", p.Name, path, err)
			}
			r.Parts = append(r.Parts, Part{Index: idx, X: p.X, Y: p.Y})
		}
		r.SortParts()
		records = append(records, r)
	}
	return records, nil
}

// NumParts returns the largest part count over records.
func NumParts(records []Record) int {
	n := 0
	for _, r := range records {
		n = max(n, len(r.Parts))
	}
	return n
}
