// Package resolver implements the path-resolution pipeline of
// spec.md §4.5: translating a virtual path into the real backing path
// of its effective version, loading and caching metadata records along
// the way.
package resolver

import (
	"os"
	"path/filepath"

	"github.com/dedis/rcsfs/internal/cache"
	"github.com/dedis/rcsfs/internal/meta"
	"github.com/dedis/rcsfs/internal/rcserr"
	"github.com/dedis/rcsfs/internal/selector"
	"github.com/dedis/rcsfs/internal/store"
	"github.com/dedis/rcsfs/internal/vpath"
)

// Resolver walks the virtual tree, reading metadata files from the
// version store and populating Cache as it goes. The store root is
// carried explicitly on the receiver (see the REDESIGN FLAGS) rather
// than kept as a package-level global.
type Resolver struct {
	Root  store.Root
	Cache *cache.Cache
}

// New builds a Resolver over the given version store root and cache.
func New(root store.Root, c *cache.Cache) *Resolver {
	return &Resolver{Root: root, Cache: c}
}

// Resolve translates a virtual path into the real path of its
// effective version, per the selection policy opts describes.
func (r *Resolver) Resolve(vp string, opts selector.Options) (string, error) {
	components := vpath.Split(vp, "/")
	if len(components) == 0 {
		_, eff, err := r.resolveRoot(opts)
		if err != nil {
			return "", err
		}
		return eff.RFile, nil
	}
	_, eff, err := r.walk(components, opts)
	if err != nil {
		return "", err
	}
	return eff.RFile, nil
}

// TranslateToMetadata performs the same walk as Resolve, then
// re-looks-up the cached record for the full virtual path — guaranteed
// present, because insertion happens as part of the walk.
func (r *Resolver) TranslateToMetadata(vp string, opts selector.Options) (*meta.Metadata, error) {
	components := vpath.Split(vp, "/")
	if len(components) == 0 {
		md, _, err := r.resolveRoot(opts)
		return md, err
	}
	md, _, err := r.walk(components, opts)
	if err != nil {
		return nil, err
	}
	if cached, ok := r.Cache.Get(md.VPath); ok {
		return cached, nil
	}
	return md, nil
}

// resolveRoot handles the root special case from spec.md §4.5: if the
// root's metadata is already cached, use it directly; otherwise load
// <root>/metadata. and <root>/dfl-meta., rewrite every version's real
// path to the store root itself, and cache the result.
func (r *Resolver) resolveRoot(opts selector.Options) (*meta.Metadata, meta.Version, error) {
	if cached, ok := r.Cache.Get("/"); ok {
		eff, ok2 := selector.Select(cached, meta.Latest(), meta.Latest(), opts)
		if !ok2 {
			return cached, meta.Version{}, rcserr.New(rcserr.NoSuchEntry, "resolve", "/")
		}
		return cached, eff, nil
	}

	data, err := os.ReadFile(r.Root.MetaPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, meta.Version{}, rcserr.New(rcserr.NoSuchEntry, "resolve", "/")
		}
		return nil, meta.Version{}, rcserr.Wrap("resolve", "/", err)
	}
	versions, deleted := meta.ParseMetadataFile(data)
	for i := range versions {
		versions[i].RFile = r.Root.Path
	}

	pinVID, pinSVID := meta.Latest(), meta.Latest()
	if dflData, err := os.ReadFile(r.Root.DflPath()); err == nil {
		if v, s, ok := meta.ParseDefaultFile(dflData); ok {
			pinVID, pinSVID = v, s
		}
	}

	md := &meta.Metadata{
		VPath:      "/",
		Components: nil,
		Versions:   versions,
		Deleted:    deleted,
		PinVID:     pinVID,
		PinSVID:    pinSVID,
	}
	r.Cache.Add(md)

	eff, ok := selector.Select(md, meta.Latest(), meta.Latest(), opts)
	if !ok {
		return md, meta.Version{}, rcserr.New(rcserr.NoSuchEntry, "resolve", "/")
	}
	return md, eff, nil
}

// walk implements the general case of spec.md §4.5: find the maximal
// cached prefix, then load one metadata/dfl-meta pair per remaining
// component, rewriting real paths and inserting into the cache as it
// goes.
func (r *Resolver) walk(components []string, opts selector.Options) (*meta.Metadata, meta.Version, error) {
	var base string
	var curMD *meta.Metadata
	var curEff meta.Version
	startIdx := 0

	if k, cachedMD, ok := r.Cache.FindMaximalMatch(components); ok {
		eff, ok2 := selector.Select(cachedMD, meta.Latest(), meta.Latest(), opts)
		if !ok2 {
			return nil, meta.Version{}, rcserr.New(rcserr.NoSuchEntry, "resolve", cachedMD.VPath)
		}
		base, startIdx, curMD, curEff = eff.RFile, k, cachedMD, eff
	} else {
		rootMD, rootEff, err := r.resolveRoot(opts)
		if err != nil {
			return nil, meta.Version{}, err
		}
		base, startIdx, curMD, curEff = rootEff.RFile, 0, rootMD, rootEff
	}

	for i := startIdx; i < len(components); i++ {
		c := components[i]
		dirBase := base
		vp := vpath.JoinVirtual(components[:i+1])

		metaPath := filepath.Join(dirBase, store.MetaFileName(c))
		data, err := os.ReadFile(metaPath)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, meta.Version{}, rcserr.New(rcserr.NoSuchEntry, "resolve", vp)
			}
			return nil, meta.Version{}, rcserr.Wrap("resolve", vp, err)
		}
		versions, deleted := meta.ParseMetadataFile(data)
		for j := range versions {
			versions[j].RFile = filepath.Join(dirBase, versions[j].Basename)
		}

		pinVID, pinSVID := meta.Latest(), meta.Latest()
		dflPath := filepath.Join(dirBase, store.DflFileName(c))
		if dflData, err := os.ReadFile(dflPath); err == nil {
			if v, s, ok := meta.ParseDefaultFile(dflData); ok {
				pinVID, pinSVID = v, s
			}
		}

		md := &meta.Metadata{
			VPath:      vp,
			Components: append([]string{}, components[:i+1]...),
			Versions:   versions,
			Deleted:    deleted,
			PinVID:     pinVID,
			PinSVID:    pinSVID,
		}
		r.Cache.Add(md)

		eff, ok := selector.Select(md, meta.Latest(), meta.Latest(), opts)
		if !ok {
			return nil, meta.Version{}, rcserr.New(rcserr.NoSuchEntry, "resolve", vp)
		}

		base = eff.RFile
		curMD, curEff = md, eff
	}

	return curMD, curEff, nil
}
