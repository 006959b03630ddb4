package assets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/cases"

	"episode-studio/internal/clip"
)

var ErrNotFound = errors.New("asset not found")

// Library looks up studio assets by kind and name. Names match
// case-insensitively and exactly.
type Library interface {
	Find(ctx context.Context, kind clip.Kind, name string) (*clip.AssetRecord, error)
}

// Key is the normalized lookup key for an asset name.
func Key(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

type memoryKey struct {
	kind clip.Kind
	name string
}

// MemoryLibrary keeps records in a map. Later records replace earlier ones
// with the same kind and name.
type MemoryLibrary struct {
	mu      sync.RWMutex
	records map[memoryKey]clip.AssetRecord
}

func NewMemoryLibrary(records ...clip.AssetRecord) *MemoryLibrary {
	lib := &MemoryLibrary{records: make(map[memoryKey]clip.AssetRecord, len(records))}
	for _, r := range records {
		_ = lib.Put(r)
	}
	return lib
}

func (l *MemoryLibrary) Put(r clip.AssetRecord) error {
	if !r.Kind.Valid() {
		return fmt.Errorf("asset %q: invalid kind %q", r.Name, r.Kind)
	}
	key := Key(r.Name)
	if key == "" {
		return errors.New("asset name is empty")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.records[memoryKey{kind: r.Kind, name: key}] = r
	return nil
}

func (l *MemoryLibrary) Find(_ context.Context, kind clip.Kind, name string) (*clip.AssetRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	r, ok := l.records[memoryKey{kind: kind, name: Key(name)}]
	if !ok {
		return nil, fmt.Errorf("%w: %s %q", ErrNotFound, kind, name)
	}
	out := r
	return &out, nil
}

func (l *MemoryLibrary) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Resolve looks up every asset the clip names. Missing assets are left nil;
// any other lookup error aborts.
func Resolve(ctx context.Context, lib Library, c clip.Descriptor) (clip.Assets, error) {
	var out clip.Assets
	if lib == nil {
		return out, nil
	}

	names := c.CharacterNames()
	if len(names) > 0 {
		out.Characters = make([]*clip.AssetRecord, len(names))
	}
	for i, name := range names {
		r, err := find(ctx, lib, clip.KindCharacter, name)
		if err != nil {
			return clip.Assets{}, err
		}
		out.Characters[i] = r
	}

	var err error
	if out.Location, err = find(ctx, lib, clip.KindLocation, c.Location); err != nil {
		return clip.Assets{}, err
	}
	if out.Style, err = find(ctx, lib, clip.KindStyle, c.Style); err != nil {
		return clip.Assets{}, err
	}
	if out.Camera, err = find(ctx, lib, clip.KindCamera, c.Camera); err != nil {
		return clip.Assets{}, err
	}
	return out, nil
}

func find(ctx context.Context, lib Library, kind clip.Kind, name string) (*clip.AssetRecord, error) {
	if strings.TrimSpace(name) == "" {
		return nil, nil
	}
	r, err := lib.Find(ctx, kind, name)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve %s %q: %w", kind, name, err)
	}
	return r, nil
}

// BuildPools collects the asset images into selector pools. explicit are the
// user attached images and are copied as given.
func BuildPools(a clip.Assets, explicit []string) clip.Pools {
	var p clip.Pools
	if a.Location != nil && strings.TrimSpace(a.Location.ImageURL) != "" {
		p.Location = []string{strings.TrimSpace(a.Location.ImageURL)}
	}
	if len(a.Characters) > 0 {
		p.Characters = make([]string, len(a.Characters))
		for i, r := range a.Characters {
			if r != nil {
				p.Characters[i] = strings.TrimSpace(r.ImageURL)
			}
		}
	}
	if a.Style != nil {
		p.Style = strings.TrimSpace(a.Style.ImageURL)
	}
	p.Explicit = append([]string(nil), explicit...)
	return p
}
