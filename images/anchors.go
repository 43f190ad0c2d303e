package images

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/beevik/etree"

	"github.com/tsawler/tenderfill/docx"
	"github.com/tsawler/tenderfill/filter"
	"github.com/tsawler/tenderfill/render"
	"github.com/tsawler/tenderfill/replace"
	"github.com/tsawler/tenderfill/runmap"
)

// maxPhraseLen is the longest paragraph, in runes, read as a standalone
// placeholder phrase.
const maxPhraseLen = 40

var numbering = regexp.MustCompile(`^(?:第[一二三四五六七八九十\d]+[章节部分]|[（(]?[一二三四五六七八九十\d]+[）)、.．])`)

type markerHit struct {
	start, end int
	marker     string
	groups     []*Group
}

// markerTable returns every marker with the groups it stands for. Kind
// markers are accepted with ASCII or lenticular brackets; qualifications can
// be named by their caption in brackets.
func (in *Inserter) markerTable() map[string][]*Group {
	table := make(map[string][]*Group)
	wide := strings.NewReplacer("[", "【", "]", "】")
	for _, k := range in.cfg.Kinds {
		gs := in.resolve(k.Key)
		for _, m := range k.Markers {
			table[m] = gs
			table[wide.Replace(m)] = gs
		}
	}
	for _, g := range in.qualifications() {
		for _, m := range []string{"[" + g.Caption + "]", "【" + g.Caption + "】"} {
			if _, taken := table[m]; !taken {
				table[m] = []*Group{g}
			}
		}
	}
	return table
}

// markers replaces explicit markers in p by pictures, right to left.
func (in *Inserter) markers(p *docx.Paragraph) {
	text := p.Text()
	if !strings.ContainsAny(text, "[【") {
		return
	}
	var hits []markerHit
	for marker, gs := range in.markerTable() {
		for from := 0; ; {
			i := strings.Index(text[from:], marker)
			if i < 0 {
				break
			}
			start := utf8.RuneCountInString(text[:from+i])
			hits = append(hits, markerHit{
				start:  start,
				end:    start + utf8.RuneCountInString(marker),
				marker: marker,
				groups: gs,
			})
			from += i + len(marker)
		}
	}
	if len(hits) == 0 {
		return
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].start != hits[j].start {
			return hits[i].start > hits[j].start
		}
		return hits[i].end > hits[j].end
	})
	boundary := utf8.RuneCountInString(text) + 1
	for _, h := range hits {
		if h.end > boundary {
			continue // overlaps a marker already handled
		}
		boundary = h.start
		in.placeMarker(p, text, h)
	}
	if strings.TrimSpace(p.Text()) == "" {
		p.SetAlignment("center")
	}
}

func (in *Inserter) placeMarker(p *docx.Paragraph, text string, h markerHit) {
	batches := in.pending(h.groups)
	if empty(batches) {
		if !hasAssets(h.groups) {
			in.rc.Warn(render.Warning{
				Kind:      render.WarnMissingField,
				Key:       strings.Trim(h.marker, "[]【】"),
				Message:   "no image for marker",
				Paragraph: render.Excerpt(text),
			})
		}
		return
	}
	if res := replace.Apply(p, h.start, h.end, ""); !res.OK {
		in.rc.Warn(render.Warning{
			Kind:      render.WarnReplacerFailure,
			Message:   "marker not removed: " + res.Reason,
			Paragraph: render.Excerpt(text),
		})
		return
	}
	var els []*etree.Element
	for i, g := range h.groups {
		for _, r := range batches[i] {
			els = append(els, in.pictureRun(g, r))
		}
	}
	insertAt(p, h.start, els)
}

// standalone turns a placeholder phrase paragraph into a caption followed by
// the pictures it announces.
func (in *Inserter) standalone(p *docx.Paragraph) {
	text := strings.TrimSpace(p.Text())
	if text == "" || utf8.RuneCountInString(text) > maxPhraseLen {
		return
	}
	caption, groups := in.phrase(text)
	if len(groups) == 0 {
		return
	}
	batches := in.pending(groups)
	if empty(batches) {
		if !hasAssets(groups) {
			in.rc.Warn(render.Warning{
				Kind:      render.WarnMissingField,
				Key:       groups[0].Key,
				Message:   "no image for placeholder paragraph",
				Paragraph: render.Excerpt(text),
			})
		}
		return
	}
	full := utf8.RuneCountInString(p.Text())
	if res := replace.Apply(p, 0, full, caption); !res.OK {
		in.rc.Warn(render.Warning{
			Kind:      render.WarnReplacerFailure,
			Message:   "placeholder paragraph not rewritten: " + res.Reason,
			Paragraph: render.Excerpt(text),
		})
		return
	}
	p.SetAlignment("center")

	last := p
	for i, g := range groups {
		if len(batches[i]) == 0 {
			continue
		}
		if len(groups) > 1 {
			last = captionAfter(last, g.Caption)
		}
		for _, r := range batches[i] {
			last = in.pictureAfter(last, g, r)
		}
	}
}

// phrase recognises a placeholder phrase: an optional prefix such as 此处插入,
// an image keyword, and optional suffixes such as 附件 or 复印件. At least one
// prefix or suffix must be present.
func (in *Inserter) phrase(text string) (string, []*Group) {
	core := strings.TrimRight(compact(text), "：:")
	stripped := false
	for _, pre := range longestFirst(in.cfg.PlaceholderPrefixes) {
		if pre != "" && core != pre && strings.HasPrefix(core, pre) {
			core = strings.TrimPrefix(core, pre)
			stripped = true
			break
		}
	}
	for changed := true; changed; {
		changed = false
		for _, suf := range longestFirst(in.cfg.PlaceholderSuffixes) {
			if suf != "" && core != suf && strings.HasSuffix(core, suf) {
				core = strings.TrimSuffix(core, suf)
				stripped, changed = true, true
				break
			}
		}
	}
	if !stripped {
		return "", nil
	}
	core = strings.Trim(core, "：:（）()")

	for _, k := range in.cfg.Kinds {
		if core == k.Caption || contains(k.Keywords, core) {
			return k.Caption, in.resolve(k.Key)
		}
	}
	for _, g := range in.qualifications() {
		if core == compact(g.Caption) {
			return g.Caption, []*Group{g}
		}
	}
	return "", nil
}

// section appends the required groups still unplaced after a section
// heading.
func (in *Inserter) section(p *docx.Paragraph) {
	heading := numbering.ReplaceAllString(strings.TrimRight(compact(p.Text()), "：:"), "")
	if heading == "" || !contains(in.cfg.SectionHeadings, heading) {
		return
	}
	groups := in.required()
	batches := in.pending(groups)
	last := p
	for i, g := range groups {
		if len(batches[i]) == 0 {
			continue
		}
		last = captionAfter(last, g.Caption)
		for _, r := range batches[i] {
			last = in.pictureAfter(last, g, r)
		}
	}
}

// appendix adds the required groups still unplaced at the end of part under
// a generated title, with numbered captions.
func (in *Inserter) appendix(part *docx.Part) {
	groups := in.required()
	batches := in.pending(groups)
	if empty(batches) {
		return
	}
	last := part.AppendParagraph()
	last.SetAlignment("center")
	last.AppendRun(in.cfg.AppendixTitle)
	n := 0
	for i, g := range groups {
		if len(batches[i]) == 0 {
			continue
		}
		n++
		last = captionAfter(last, fmt.Sprintf(in.cfg.CaptionFormat, n, g.Caption))
		for _, r := range batches[i] {
			last = in.pictureAfter(last, g, r)
		}
	}
}

// stampSeals places the first profile seal after every seal suffix outside
// procurer context. A suffix already followed by a picture is left alone.
func (in *Inserter) stampSeals(paras []*docx.Paragraph) error {
	if in.cat == nil || in.prof == nil || len(in.prof.Seals) == 0 {
		return nil
	}
	seal := Asset{Key: "seal", Path: in.prof.Seals[0], MaxWidthIn: in.cfg.SealWidthIn}
	g := &Group{Key: "seal", Caption: "公章"}
	f := filter.New(in.rc.Config)

	for _, p := range paras {
		if err := in.rc.Check(); err != nil {
			return err
		}
		text := p.Text()
		anchors := in.cat.Anchors(text)
		for i := len(anchors) - 1; i >= 0; i-- {
			a := anchors[i]
			if tok := f.ProcurerContext(text, a.Start); tok != "" {
				in.rc.Logger.Debug("seal anchor skipped", "token", tok, "paragraph", render.Excerpt(text))
				continue
			}
			if followedByPicture(p, a.End) {
				continue
			}
			e := in.prepare(seal)
			if e == nil {
				return nil
			}
			insertAt(p, a.End, []*etree.Element{in.pictureRun(g, ready{asset: seal, emb: e})})
		}
	}
	return nil
}

// followedByPicture reports whether the run after rune position pos, past
// any empty runs, is a picture.
func followedByPicture(p *docx.Paragraph, pos int) bool {
	m := runmap.Build(p)
	owner := m.Owner(pos - 1)
	if owner < 0 {
		return false
	}
	if _, end := m.Span(owner); end != pos {
		return false
	}
	for _, r := range m.Runs()[owner+1:] {
		if r.HasDrawing() {
			return true
		}
		if r.Text() != "" {
			return false
		}
	}
	return false
}

// insertAt places els at rune position pos of p, splitting the run that
// holds pos when it falls inside one.
func insertAt(p *docx.Paragraph, pos int, els []*etree.Element) {
	m := runmap.Build(p)
	if m.Len() == 0 {
		for _, el := range els {
			p.AppendElement(el)
		}
		return
	}
	if pos >= m.Len() {
		last := m.Run(m.Owner(m.Len() - 1))
		for i := len(els) - 1; i >= 0; i-- {
			p.InsertAfterRun(last, els[i])
		}
		return
	}
	i := m.Owner(pos)
	start, _ := m.Span(i)
	r := m.Run(i)
	if off := pos - start; off > 0 {
		r = r.Split(off)
	}
	for _, el := range els {
		p.InsertBeforeRun(r, el)
	}
}

func (in *Inserter) pictureAfter(last *docx.Paragraph, g *Group, r ready) *docx.Paragraph {
	np := last.InsertParagraphAfter()
	np.SetAlignment("center")
	np.AppendElement(in.pictureRun(g, r))
	return np
}

func captionAfter(last *docx.Paragraph, caption string) *docx.Paragraph {
	np := last.InsertParagraphAfter()
	np.SetAlignment("center")
	np.AppendRun(caption)
	return np
}

func empty(batches [][]ready) bool {
	for _, b := range batches {
		if len(b) > 0 {
			return false
		}
	}
	return true
}

func compact(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func longestFirst(list []string) []string {
	out := append([]string(nil), list...)
	sort.SliceStable(out, func(i, j int) bool {
		return utf8.RuneCountInString(out[i]) > utf8.RuneCountInString(out[j])
	})
	return out
}
