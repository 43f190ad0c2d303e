package docx

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

const (
	relsNamespace = "http://schemas.openxmlformats.org/package/2006/relationships"
	relTypeImage  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"

	// EMUPerInch is the number of English Metric Units per inch.
	EMUPerInch = 914400
)

var imageContentTypes = map[string]string{
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"jpg":  "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
}

// AddImage stores data as a new media part related to the main document and
// returns the relationship id to reference it with.
func (pkg *Package) AddImage(data []byte, ext string) (string, error) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	ctype, ok := imageContentTypes[ext]
	if !ok {
		return "", fmt.Errorf("unsupported image type %q", ext)
	}

	if err := pkg.ensureDefaultContentType(ext, ctype); err != nil {
		return "", err
	}
	rels, err := pkg.documentRels()
	if err != nil {
		return "", err
	}

	name := pkg.nextMediaName(ext)
	id := nextRelID(rels.Root())
	rel := rels.Root().CreateElement("Relationship")
	rel.CreateAttr("Id", id)
	rel.CreateAttr("Type", relTypeImage)
	rel.CreateAttr("Target", "media/"+path.Base(name))
	rels.touch()

	pkg.media = append(pkg.media, mediaFile{name: name, data: data})
	return id, nil
}

func (pkg *Package) nextMediaName(ext string) string {
	stem := func(name string) string {
		return strings.TrimSuffix(name, path.Ext(name))
	}
	taken := make(map[string]bool)
	for _, name := range pkg.order {
		if strings.HasPrefix(name, "word/media/") {
			taken[stem(name)] = true
		}
	}
	for _, m := range pkg.media {
		taken[stem(m.name)] = true
	}
	for i := 1; ; i++ {
		base := fmt.Sprintf("word/media/image%d", i)
		if !taken[base] {
			return base + "." + ext
		}
	}
}

func (pkg *Package) ensureDefaultContentType(ext, ctype string) error {
	ct, err := pkg.Part(contentTypesPart)
	if err != nil {
		return fmt.Errorf("reading content types: %w", err)
	}
	root := ct.Root()
	for _, d := range root.SelectElements("Default") {
		if strings.EqualFold(d.SelectAttrValue("Extension", ""), ext) {
			return nil
		}
	}
	d := root.CreateElement("Default")
	d.CreateAttr("Extension", ext)
	d.CreateAttr("ContentType", ctype)
	ct.touch()
	return nil
}

func (pkg *Package) documentRels() (*Part, error) {
	if pkg.Has(documentRelsPart) {
		p, err := pkg.Part(documentRelsPart)
		if err != nil {
			return nil, fmt.Errorf("reading document relationships: %w", err)
		}
		return p, nil
	}
	root := etree.NewElement("Relationships")
	root.CreateAttr("xmlns", relsNamespace)
	return pkg.newPart(documentRelsPart, root), nil
}

func nextRelID(root *etree.Element) string {
	taken := make(map[string]bool)
	max := 0
	for _, rel := range root.SelectElements("Relationship") {
		id := rel.SelectAttrValue("Id", "")
		taken[id] = true
		if n, err := strconv.Atoi(strings.TrimPrefix(id, "rId")); err == nil && n > max {
			max = n
		}
	}
	for n := max + 1; ; n++ {
		id := "rId" + strconv.Itoa(n)
		if !taken[id] {
			return id
		}
	}
}

func (pkg *Package) maxDocPrID() int {
	max := 0
	for _, p := range pkg.parts {
		root := p.Root()
		if root == nil {
			continue
		}
		for _, el := range root.FindElements(".//docPr") {
			if n, err := strconv.Atoi(el.SelectAttrValue("id", "")); err == nil && n > max {
				max = n
			}
		}
	}
	return max
}

// Picture describes an inline picture.
type Picture struct {
	RelID       string
	WidthEMU    int64
	HeightEMU   int64
	Name        string
	Description string
}

// NewPictureRun builds a w:r holding an inline picture. The main document root
// receives the namespace declarations the picture needs.
func (pkg *Package) NewPictureRun(pic Picture) *etree.Element {
	doc := pkg.Document()
	root := doc.Root()
	ensureNamespace(root, "w", nsW)
	ensureNamespace(root, "r", nsR)
	ensureNamespace(root, "wp", nsWP)
	doc.touch()

	id := strconv.Itoa(pkg.nextDocPrID)
	pkg.nextDocPrID++
	cx := strconv.FormatInt(pic.WidthEMU, 10)
	cy := strconv.FormatInt(pic.HeightEMU, 10)
	name := pic.Name
	if name == "" {
		name = "Picture " + id
	}

	run := etree.NewElement("w:r")
	drawing := run.CreateElement("w:drawing")
	inline := drawing.CreateElement("wp:inline")
	for _, k := range []string{"distT", "distB", "distL", "distR"} {
		inline.CreateAttr(k, "0")
	}
	extent := inline.CreateElement("wp:extent")
	extent.CreateAttr("cx", cx)
	extent.CreateAttr("cy", cy)
	effect := inline.CreateElement("wp:effectExtent")
	for _, k := range []string{"l", "t", "r", "b"} {
		effect.CreateAttr(k, "0")
	}
	docPr := inline.CreateElement("wp:docPr")
	docPr.CreateAttr("id", id)
	docPr.CreateAttr("name", name)
	if pic.Description != "" {
		docPr.CreateAttr("descr", pic.Description)
	}
	frame := inline.CreateElement("wp:cNvGraphicFramePr")
	locks := frame.CreateElement("a:graphicFrameLocks")
	locks.CreateAttr("xmlns:a", nsA)
	locks.CreateAttr("noChangeAspect", "1")

	graphic := inline.CreateElement("a:graphic")
	graphic.CreateAttr("xmlns:a", nsA)
	data := graphic.CreateElement("a:graphicData")
	data.CreateAttr("uri", nsPic)
	p := data.CreateElement("pic:pic")
	p.CreateAttr("xmlns:pic", nsPic)

	nv := p.CreateElement("pic:nvPicPr")
	cNvPr := nv.CreateElement("pic:cNvPr")
	cNvPr.CreateAttr("id", id)
	cNvPr.CreateAttr("name", name)
	nv.CreateElement("pic:cNvPicPr")

	fill := p.CreateElement("pic:blipFill")
	blip := fill.CreateElement("a:blip")
	blip.CreateAttr("r:embed", pic.RelID)
	fill.CreateElement("a:stretch").CreateElement("a:fillRect")

	sp := p.CreateElement("pic:spPr")
	xfrm := sp.CreateElement("a:xfrm")
	off := xfrm.CreateElement("a:off")
	off.CreateAttr("x", "0")
	off.CreateAttr("y", "0")
	ext := xfrm.CreateElement("a:ext")
	ext.CreateAttr("cx", cx)
	ext.CreateAttr("cy", cy)
	geom := sp.CreateElement("a:prstGeom")
	geom.CreateAttr("prst", "rect")
	geom.CreateElement("a:avLst")

	return run
}

func ensureNamespace(root *etree.Element, prefix, uri string) {
	for _, a := range root.Attr {
		if a.Space == "xmlns" && a.Key == prefix {
			return
		}
	}
	root.CreateAttr("xmlns:"+prefix, uri)
}
