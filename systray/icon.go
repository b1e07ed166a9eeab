package systray

import "fmt"

// Icon represents a single pixmap of the system tray item icon.
type Icon struct {
	Width  int32
	Height int32

	// Bytes holds ARGB32 pixel data in network byte order.
	Bytes []byte
}

// IconSet is a collection of pixmaps of the same icon in different sizes.
type IconSet []*Icon

// Best returns the smallest icon that is at least size pixels wide, or the
// largest icon if none is big enough. It returns nil for an empty set.
func (s IconSet) Best(size int32) *Icon {
	var best *Icon

	for _, icon := range s {
		switch {
		case best == nil:
			best = icon
		case icon.Width >= size && (best.Width < size || icon.Width < best.Width):
			best = icon
		case best.Width < size && icon.Width > best.Width:
			best = icon
		}
	}

	return best
}

// NewIconFromDBusPixmap returns a new [Icon] from D-Bus pixmap.
//
// Format of pixmap is as follows
//
//	[<width>, <height>, <bytes>]
//
// Where:
//   - <width>: width of the icon (int32)
//   - <height>: height of the icon (int32)
//   - <bytes>: content of the icon ([]byte)
func NewIconFromDBusPixmap(pixmap any) (*Icon, error) {
	data, ok := pixmap.([]any)
	if !ok || len(data) != 3 {
		return nil, fmt.Errorf("invalid pixmap format: expected a slice of 3 elements")
	}

	width, ok := data[0].(int32)
	if !ok {
		return nil, fmt.Errorf("invalid width type: expected int32")
	}

	height, ok := data[1].(int32)
	if !ok {
		return nil, fmt.Errorf("invalid height type: expected int32")
	}

	bytes, ok := data[2].([]byte)
	if !ok {
		return nil, fmt.Errorf("invalid bytes format: expected []byte")
	}

	return &Icon{
		Width:  width,
		Height: height,
		Bytes:  bytes,
	}, nil
}

// NewIconSetFromDBusProperty returns a new [IconSet] from the value of an
// a(iiay) property, such as IconPixmap. Malformed pixmaps are skipped.
func NewIconSetFromDBusProperty(value any) (IconSet, error) {
	var pixmaps []any

	switch v := value.(type) {
	case [][]any:
		pixmaps = make([]any, len(v))
		for i := range v {
			pixmaps[i] = v[i]
		}
	case []any:
		pixmaps = v
	default:
		return nil, fmt.Errorf("invalid icon set format: expected an array of pixmaps")
	}

	set := make(IconSet, 0, len(pixmaps))

	for _, pixmap := range pixmaps {
		icon, err := NewIconFromDBusPixmap(pixmap)
		if err != nil {
			continue
		}

		set = append(set, icon)
	}

	return set, nil
}
