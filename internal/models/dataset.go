// Package models defines the domain types for mldataset.
package models

import (
	"time"

	"github.com/google/uuid"
)

// FileItem is anything that can be stored as a file inside a category.
type FileItem interface {
	Name() string
	Data() []byte
}

// MaxItemSize bounds the content of a single item, whichever surface stores it.
const MaxItemSize = 50 << 20

// ImageFile is a captured picture handed over by the capture collaborator.
type ImageFile struct {
	FileName string
	Content  []byte
}

func (f ImageFile) Name() string { return f.FileName }
func (f ImageFile) Data() []byte { return f.Content }

var captureExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/heic": ".heic",
}

// CaptureExtension returns the file extension for an image media type, or ""
// when the type is not a known capture format.
func CaptureExtension(mediaType string) string {
	return captureExtensions[mediaType]
}

// NewCapture names an unnamed capture "capture-<uuid><ext>".
func NewCapture(data []byte, ext string) ImageFile {
	return ImageFile{
		FileName: "capture-" + uuid.NewString() + ext,
		Content:  data,
	}
}

// Item describes a stored file by name only.
type Item struct {
	Name string `json:"name"`
}

// Category is one data set, backed by a directory under the store root.
//
// Items is nil while the category has not been enumerated and points to a
// (possibly empty) slice once it has.
type Category struct {
	Name  string  `json:"name"`
	Items *[]Item `json:"items"`
}

// NewCategory returns an enumerated category with no items.
func NewCategory(name string) Category {
	items := []Item{}
	return Category{Name: name, Items: &items}
}

// Loaded reports whether the item list has been enumerated.
func (c Category) Loaded() bool {
	return c.Items != nil
}

// ItemList returns the items, or nil when not enumerated.
func (c Category) ItemList() []Item {
	if c.Items == nil {
		return nil
	}
	return *c.Items
}

// Clone returns a deep copy.
func (c Category) Clone() Category {
	if c.Items == nil {
		return Category{Name: c.Name}
	}
	items := make([]Item, len(*c.Items))
	copy(items, *c.Items)
	return Category{Name: c.Name, Items: &items}
}

// Snapshot is the full category list published to observers.
type Snapshot struct {
	Loaded     bool       `json:"loaded"`
	Categories []Category `json:"categories"`
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{Loaded: s.Loaded}
	if s.Categories != nil {
		out.Categories = make([]Category, len(s.Categories))
		for i, c := range s.Categories {
			out.Categories[i] = c.Clone()
		}
	}
	return out
}

// Names returns category names in snapshot order.
func (s Snapshot) Names() []string {
	names := make([]string, len(s.Categories))
	for i, c := range s.Categories {
		names[i] = c.Name
	}
	return names
}

// ItemMetadata is returned by item listings.
type ItemMetadata struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
