// Package mapping implements the sparse relation between point cloud points and image pixels.
//
// A Mapping is an arena: one flat slice of entries plus two integer indexes, one by point
// identifier and one by image index. It is immutable once built and every operation returns
// a new Mapping, so it can be shared between goroutines without locking.
package mapping

import (
	"image"
	"sort"

	"github.com/pkg/errors"
)

// DefaultKey is the mapping key used when none is configured.
const DefaultKey = "mapping_index"

// Entry is one (point, image, pixel) correspondence.
type Entry struct {
	PointID int64
	Image   int
	Pixel   image.Point

	// Radius is the splat radius, in frame pixels, the entry was produced with.
	Radius float64
	// Weight is in (0, 1]; approximate splatting always yields 1.
	Weight float64
	Exact  bool
	Depth  float64

	Density   float64
	Occlusion float64
}

// Key identifies the (point, image, pixel) triple of an entry.
type Key struct {
	PointID int64
	Image   int
	Pixel   image.Point
}

// Key returns the identity of the entry.
func (e Entry) Key() Key {
	return Key{PointID: e.PointID, Image: e.Image, Pixel: e.Pixel}
}

// Mapping is an immutable set of entries keyed by a mapping key name.
type Mapping struct {
	key       string
	numImages int
	entries   []Entry
	byPoint   map[int64][]int
	byImage   [][]int
}

// New builds a mapping over numImages images from the given entries. The entries are copied.
func New(key string, numImages int, entries []Entry) (*Mapping, error) {
	if key == "" {
		key = DefaultKey
	}
	if numImages < 0 {
		return nil, errors.Errorf("negative image count %d", numImages)
	}
	m := &Mapping{
		key:       key,
		numImages: numImages,
		entries:   append([]Entry(nil), entries...),
		byPoint:   make(map[int64][]int),
		byImage:   make([][]int, numImages),
	}
	for i, e := range m.entries {
		if e.Image < 0 || e.Image >= numImages {
			return nil, errors.Errorf("entry %d references image %d of %d", i, e.Image, numImages)
		}
		m.byPoint[e.PointID] = append(m.byPoint[e.PointID], i)
		m.byImage[e.Image] = append(m.byImage[e.Image], i)
	}
	return m, nil
}

// Empty returns a mapping with no entries.
func Empty(key string, numImages int) *Mapping {
	// cannot fail without entries
	//nolint:errcheck
	m, _ := New(key, numImages, nil)
	return m
}

// Key returns the name of the identifier shared by points and entries.
func (m *Mapping) Key() string {
	return m.key
}

// NumImages returns how many images the mapping spans, including images without entries.
func (m *Mapping) NumImages() int {
	return m.numImages
}

// Len returns the number of entries.
func (m *Mapping) Len() int {
	return len(m.entries)
}

// At returns the i-th entry.
func (m *Mapping) At(i int) Entry {
	return m.entries[i]
}

// Entries returns a copy of all entries in order.
func (m *Mapping) Entries() []Entry {
	return append([]Entry(nil), m.entries...)
}

// ForPoint returns the entries of a point in order.
func (m *Mapping) ForPoint(id int64) []Entry {
	return m.gather(m.byPoint[id])
}

// ForImage returns the entries of an image in order.
func (m *Mapping) ForImage(img int) []Entry {
	if img < 0 || img >= m.numImages {
		return nil
	}
	return m.gather(m.byImage[img])
}

func (m *Mapping) gather(idxs []int) []Entry {
	out := make([]Entry, len(idxs))
	for i, idx := range idxs {
		out[i] = m.entries[idx]
	}
	return out
}

// HasPoint returns whether any entry references the point.
func (m *Mapping) HasPoint(id int64) bool {
	return len(m.byPoint[id]) > 0
}

// PointIDs returns the distinct point identifiers referenced by the mapping, ascending.
func (m *Mapping) PointIDs() []int64 {
	ids := make([]int64, 0, len(m.byPoint))
	for id := range m.byPoint {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ImagePoints returns the distinct point identifiers seen by an image in entry order.
func (m *Mapping) ImagePoints(img int) []int64 {
	if img < 0 || img >= m.numImages {
		return nil
	}
	seen := make(map[int64]struct{})
	var out []int64
	for _, idx := range m.byImage[img] {
		id := m.entries[idx].PointID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Filter returns a mapping holding the entries for which keep returns true.
func (m *Mapping) Filter(keep func(e Entry) bool) *Mapping {
	entries := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		if keep(e) {
			entries = append(entries, e)
		}
	}
	// image indexes are unchanged so this cannot fail
	//nolint:errcheck
	out, _ := New(m.key, m.numImages, entries)
	return out
}

// Map returns a mapping whose entries are fn applied to every entry.
func (m *Mapping) Map(fn func(e Entry) Entry) (*Mapping, error) {
	entries := make([]Entry, len(m.entries))
	for i, e := range m.entries {
		entries[i] = fn(e)
	}
	return New(m.key, m.numImages, entries)
}

// WithEntries returns a mapping with the same key and image count holding other entries.
func (m *Mapping) WithEntries(entries []Entry) (*Mapping, error) {
	return New(m.key, m.numImages, entries)
}

// SelectImages keeps the entries of the listed images and renumbers images by their position
// in the list.
func (m *Mapping) SelectImages(images []int) (*Mapping, error) {
	renumber := make(map[int]int, len(images))
	for i, img := range images {
		if img < 0 || img >= m.numImages {
			return nil, errors.Errorf("cannot select image %d of %d", img, m.numImages)
		}
		if _, dup := renumber[img]; dup {
			return nil, errors.Errorf("image %d selected twice", img)
		}
		renumber[img] = i
	}
	var entries []Entry
	for _, img := range images {
		for _, idx := range m.byImage[img] {
			e := m.entries[idx]
			e.Image = renumber[img]
			entries = append(entries, e)
		}
	}
	return New(m.key, len(images), entries)
}

// Coverage returns, per point, the number of distinct images observing it.
func (m *Mapping) Coverage() map[int64]int {
	out := make(map[int64]int, len(m.byPoint))
	for id, idxs := range m.byPoint {
		images := make(map[int]struct{})
		for _, idx := range idxs {
			images[m.entries[idx].Image] = struct{}{}
		}
		out[id] = len(images)
	}
	return out
}

// PixelCounts returns, per image, the number of distinct pixels referenced by its entries.
func (m *Mapping) PixelCounts() []int {
	out := make([]int, m.numImages)
	for img := range m.byImage {
		out[img] = len(m.Pixels(img))
	}
	return out
}

// Pixels returns the distinct pixels referenced by an image's entries.
func (m *Mapping) Pixels(img int) map[image.Point]struct{} {
	out := make(map[image.Point]struct{})
	if img < 0 || img >= m.numImages {
		return out
	}
	for _, idx := range m.byImage[img] {
		out[m.entries[idx].Pixel] = struct{}{}
	}
	return out
}

// PixelBounds returns the smallest rectangle containing every pixel referenced by the image,
// and false when the image has no entries.
func (m *Mapping) PixelBounds(img int) (image.Rectangle, bool) {
	if img < 0 || img >= m.numImages || len(m.byImage[img]) == 0 {
		return image.Rectangle{}, false
	}
	var r image.Rectangle
	for i, idx := range m.byImage[img] {
		px := m.entries[idx].Pixel
		cell := image.Rect(px.X, px.Y, px.X+1, px.Y+1)
		if i == 0 {
			r = cell
			continue
		}
		r = r.Union(cell)
	}
	return r, true
}
