package render

import (
	"fmt"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
)

type fontWeight int

const (
	weightRegular fontWeight = iota
	weightBold
	weightMono
)

type faceKey struct {
	weight fontWeight
	size   float64
}

// fontLibrary parses the embedded Go fonts once and caches faces by size,
// so no font files are required on disk.
type fontLibrary struct {
	mu    sync.Mutex
	fonts map[fontWeight]*sfnt.Font
	faces map[faceKey]font.Face
}

func newFontLibrary() (*fontLibrary, error) {
	sources := map[fontWeight][]byte{
		weightRegular: goregular.TTF,
		weightBold:    gobold.TTF,
		weightMono:    gomono.TTF,
	}
	lib := &fontLibrary{
		fonts: make(map[fontWeight]*sfnt.Font, len(sources)),
		faces: make(map[faceKey]font.Face),
	}
	for weight, ttf := range sources {
		parsed, err := opentype.Parse(ttf)
		if err != nil {
			return nil, fmt.Errorf("parse embedded font: %w", err)
		}
		lib.fonts[weight] = parsed
	}
	return lib, nil
}

func (l *fontLibrary) face(weight fontWeight, size float64) (font.Face, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := faceKey{weight: weight, size: size}
	if face, ok := l.faces[key]; ok {
		return face, nil
	}
	face, err := opentype.NewFace(l.fonts[weight], &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("build face at %.0fpt: %w", size, err)
	}
	l.faces[key] = face
	return face, nil
}
