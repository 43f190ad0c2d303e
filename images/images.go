// Package images inserts the qualification scans of a supplier profile into
// a filled document.
//
// Scans are grouped: a group is one logical attachment such as the business
// licence, the legal representative's ID card (front and back) or one
// certificate. Anchors are looked for in the main document in four passes,
// the first pass that places an image wins:
//
//  1. explicit markers such as [营业执照], replaced by the pictures in the
//     same paragraph;
//  2. standalone placeholder paragraphs such as 法定代表人身份证附件, whose
//     text becomes a caption followed by one centred picture per scan;
//  3. section headings such as 公司资质, after which every required group
//     still unplaced is appended;
//  4. a generated appendix at the end of the document for the rest.
//
// Each image key is inserted at most once. StampSeals separately places the
// first seal of the profile after every seal suffix; seals may repeat.
// Unreadable files are reported as ImageError warnings and skipped.
package images

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/beevik/etree"

	"github.com/tsawler/tenderfill/config"
	"github.com/tsawler/tenderfill/docx"
	"github.com/tsawler/tenderfill/placeholder"
	"github.com/tsawler/tenderfill/profile"
	"github.com/tsawler/tenderfill/render"
)

// Classifier names the image key of a scan that came without key or hint.
type Classifier interface {
	Classify(path string) (string, error)
}

// Asset is one scan to insert.
type Asset struct {
	Key        string // image key, e.g. legal_id_front
	Path       string
	Label      string  // side label of paired scans, e.g. 正面
	MaxWidthIn float64 // display width cap
}

// Group is a set of scans inserted together under one caption.
type Group struct {
	Key     string
	Caption string
	Assets  []Asset

	qualification bool
}

type embedded struct {
	relID string
	pic   *picture
}

// Inserter places the scans of one render.
type Inserter struct {
	rc      *render.Context
	pkg     *docx.Package
	cfg     config.ImageConfig
	cat     *placeholder.Catalogue
	prof    *profile.Profile
	proj    *profile.Project
	classer Classifier

	groups []*Group
	byKey  map[string]*Group
	placed map[string]bool
	cache  map[string]*embedded
	failed map[string]bool
	errs   []*render.ImageError
	req    []*Group
	reqSet bool
}

// New prepares an inserter. cat supplies the seal anchors and may be nil
// when seals are not stamped. classifier may be nil.
func New(rc *render.Context, pkg *docx.Package, cat *placeholder.Catalogue, prof *profile.Profile, proj *profile.Project, classifier Classifier) *Inserter {
	in := &Inserter{
		rc:      rc,
		pkg:     pkg,
		cfg:     rc.Config.Images,
		cat:     cat,
		prof:    prof,
		proj:    proj,
		classer: classifier,
		byKey:   make(map[string]*Group),
		placed:  make(map[string]bool),
		cache:   make(map[string]*embedded),
		failed:  make(map[string]bool),
	}
	in.buildGroups()
	return in
}

// Groups returns the groups built from the profile, kinds first.
func (in *Inserter) Groups() []*Group {
	return in.groups
}

// Errors returns the image errors recorded so far.
func (in *Inserter) Errors() []*render.ImageError {
	return in.errs
}

// Insert runs the anchor passes over the main document. Image keys already
// present as pictures are not inserted again. Insert only fails when the
// deadline passes.
func (in *Inserter) Insert() error {
	body := in.pkg.Document()
	paras := body.Paragraphs()

	// Pictures are named after their image key; a document rendered before
	// keeps its scans.
	for _, el := range body.Root().FindElements(".//wp:docPr") {
		if name := el.SelectAttrValue("name", ""); name != "" {
			in.placed[name] = true
		}
	}

	passes := []func(*docx.Paragraph){in.markers, in.standalone, in.section}
	for _, pass := range passes {
		for _, p := range paras {
			if err := in.rc.Check(); err != nil {
				return err
			}
			if p.InTOC() {
				continue
			}
			pass(p)
		}
	}
	in.appendix(body)
	return nil
}

// StampSeals places the first seal of the profile after every seal suffix
// of the main document outside procurer context. It only fails when the
// deadline passes.
func (in *Inserter) StampSeals() error {
	return in.stampSeals(in.pkg.Document().Paragraphs())
}

func (in *Inserter) kind(key string) (config.ImageKind, bool) {
	for _, k := range in.cfg.Kinds {
		if k.Key == key {
			return k, true
		}
	}
	return config.ImageKind{}, false
}

// buildGroups creates one group per configured kind, then one per profile
// qualification not already covered by a kind.
func (in *Inserter) buildGroups() {
	for _, k := range in.cfg.Kinds {
		if k.All {
			continue
		}
		g := &Group{Key: k.Key, Caption: k.Caption}
		if len(k.Sides) > 0 {
			for _, s := range k.Sides {
				if path, ok := in.prof.Image(s.Key); ok {
					g.Assets = append(g.Assets, Asset{Key: s.Key, Path: path, Label: s.Label, MaxWidthIn: in.cfg.IDCardWidthIn})
				}
			}
		} else if path, ok := in.prof.Image(k.Key); ok {
			g.Assets = append(g.Assets, Asset{Key: k.Key, Path: path, MaxWidthIn: in.cfg.MaxWidthIn})
		}
		in.add(g)
	}

	if in.prof == nil {
		return
	}
	for i, q := range in.prof.Qualifications {
		key, caption := q.Key, q.Name()
		if key == "" && caption == "" {
			key = in.classify(q.FilePath)
		}
		if key == "" {
			key = fmt.Sprintf("qualification_%d", i+1)
		}
		if caption == "" {
			caption = strings.TrimSuffix(filepath.Base(q.FilePath), filepath.Ext(q.FilePath))
		}
		if g, ok := in.byKey[key]; ok {
			// A kind without a scan of its own adopts the qualification.
			if !g.qualification && len(g.Assets) == 0 {
				g.Assets = append(g.Assets, Asset{Key: key, Path: q.FilePath, MaxWidthIn: in.cfg.MaxWidthIn})
			}
			continue
		}
		in.add(&Group{
			Key:           key,
			Caption:       caption,
			Assets:        []Asset{{Key: key, Path: q.FilePath, MaxWidthIn: in.cfg.MaxWidthIn}},
			qualification: true,
		})
	}
}

func (in *Inserter) add(g *Group) {
	in.groups = append(in.groups, g)
	in.byKey[g.Key] = g
}

func (in *Inserter) classify(path string) string {
	if in.classer == nil {
		return ""
	}
	key, err := in.classer.Classify(path)
	if err != nil {
		in.rc.Logger.Debug("classification failed", "path", path, "error", err)
		return ""
	}
	return key
}

// qualifications returns the groups built from profile qualifications.
func (in *Inserter) qualifications() []*Group {
	var out []*Group
	for _, g := range in.groups {
		if g.qualification {
			out = append(out, g)
		}
	}
	return out
}

// resolve returns the groups an image key names: a kind, a side of a kind,
// a qualification, or every qualification for the catch-all kind.
func (in *Inserter) resolve(key string) []*Group {
	if k, ok := in.kind(key); ok && k.All {
		return in.qualifications()
	}
	if g, ok := in.byKey[key]; ok {
		return []*Group{g}
	}
	for _, g := range in.groups {
		for _, a := range g.Assets {
			if a.Key == key {
				return []*Group{g}
			}
		}
	}
	return nil
}

// required returns the groups that must appear in the document: those named
// by the project, in its order, then every profile qualification in profile
// order.
func (in *Inserter) required() []*Group {
	if in.reqSet {
		return in.req
	}
	in.reqSet = true
	var out []*Group
	seen := make(map[*Group]bool)
	add := func(gs []*Group) {
		for _, g := range gs {
			if !seen[g] {
				seen[g] = true
				out = append(out, g)
			}
		}
	}
	if in.proj != nil {
		for _, key := range in.proj.RequiredQualifications {
			gs := in.resolve(key)
			if len(gs) == 0 || !hasAssets(gs) {
				in.rc.Warn(render.Warning{
					Kind:    render.WarnMissingField,
					Key:     key,
					Message: "required image not in profile",
				})
				continue
			}
			add(gs)
		}
	}
	add(in.qualifications())
	in.req = out
	return out
}

func hasAssets(gs []*Group) bool {
	for _, g := range gs {
		if len(g.Assets) > 0 {
			return true
		}
	}
	return false
}

// prepare loads and embeds the scan of a, once per file. Failures are
// reported once and return nil.
func (in *Inserter) prepare(a Asset) *embedded {
	if e, ok := in.cache[a.Path]; ok {
		return e
	}
	if in.failed[a.Path] {
		return nil
	}
	pic, err := loadPicture(a.Path, in.cfg.MaxPixelWidth)
	var relID string
	if err == nil {
		relID, err = in.pkg.AddImage(pic.data, pic.ext)
	}
	if err != nil {
		in.failed[a.Path] = true
		ie := &render.ImageError{Key: a.Key, Path: a.Path, Detail: "unreadable image", Err: err}
		in.errs = append(in.errs, ie)
		in.rc.Warn(render.Warning{Kind: render.WarnImage, Key: a.Key, Message: ie.Error()})
		return nil
	}
	e := &embedded{relID: relID, pic: pic}
	in.cache[a.Path] = e
	return e
}

type ready struct {
	asset Asset
	emb   *embedded
}

// pending returns the unplaced scans of gs that could be loaded.
func (in *Inserter) pending(gs []*Group) [][]ready {
	out := make([][]ready, len(gs))
	for i, g := range gs {
		for _, a := range g.Assets {
			if in.placed[a.Key] {
				continue
			}
			if e := in.prepare(a); e != nil {
				out[i] = append(out[i], ready{asset: a, emb: e})
			}
		}
	}
	return out
}

// pictureRun builds the picture run of r and counts it as placed.
func (in *Inserter) pictureRun(g *Group, r ready) *etree.Element {
	cx, cy := r.emb.pic.extent(in.cfg.DPI, r.asset.MaxWidthIn)
	in.placed[r.asset.Key] = true
	in.rc.Stats.ImagesInserted++
	in.rc.Logger.Debug("image inserted", "key", r.asset.Key, "path", r.asset.Path)
	return in.pkg.NewPictureRun(docx.Picture{
		RelID:       r.emb.relID,
		WidthEMU:    cx,
		HeightEMU:   cy,
		Name:        r.asset.Key,
		Description: g.Caption + r.asset.Label,
	})
}
