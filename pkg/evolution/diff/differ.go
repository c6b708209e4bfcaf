package diff

import (
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/Mindburn-Labs/eventgate/pkg/canonicalize"
	"github.com/Mindburn-Labs/eventgate/pkg/schema"
)

// Compare returns the ordered changes between the stored and the proposed schema.
// A nil old document means the event type is being created: nothing is compared.
func Compare(old, proposed *schema.Document) []Change {
	if old == nil || proposed == nil {
		return nil
	}
	return Values(old.Root(), proposed.Root())
}

// Values compares two decoded schema values rooted at "#".
//
// Keywords present on either side are visited in alphabetical order and nested
// sub-schemas depth first, so identical inputs always produce the same sequence.
func Values(old, proposed any) []Change {
	w := &walker{}
	w.schema(Root, old, proposed)
	return w.changes
}

// Keywords that carry no validation meaning and are never compared.
var ignoredKeywords = map[string]bool{
	"$schema":  true,
	"$comment": true,
	"default":  true,
	"examples": true,
}

// Keywords that annotate a schema without constraining payloads.
var annotationKeywords = map[string]bool{
	"$id":         true,
	"id":          true,
	"title":       true,
	"description": true,
}

var compositionKeywords = []string{"allOf", "anyOf", "oneOf"}

type walker struct {
	changes []Change
}

// slot is a keyword value together with its presence.
type slot struct {
	v  any
	ok bool
}

func (w *walker) add(kind Kind, p Path) {
	w.changes = append(w.changes, Change{Kind: kind, Path: p.String()})
}

// changed records kind when the keyword appeared, disappeared or changed value.
func (w *walker) changed(kind Kind, p Path, a, b slot) {
	if a.ok != b.ok || !canonicalize.Equal(a.v, b.v) {
		w.add(kind, p)
	}
}

func (w *walker) schema(p Path, a, b any) {
	ao, aok := a.(map[string]any)
	bo, bok := b.(map[string]any)
	if !aok || !bok || unrelated(ao, bo) {
		if !canonicalize.Equal(a, b) {
			w.add(SubSchemaChanged, p)
		}
		return
	}

	composed := false
	for _, kw := range unionKeys(ao, bo) {
		av, inA := ao[kw]
		bv, inB := bo[kw]
		if slices.Contains(compositionKeywords, kw) {
			if !composed {
				composed = true
				w.composition(p, ao, bo)
			}
			continue
		}
		w.keyword(p, kw, slot{av, inA}, slot{bv, inB})
	}
}

func (w *walker) keyword(p Path, kw string, a, b slot) {
	if ignoredKeywords[kw] || strings.HasPrefix(kw, "x-") {
		return
	}
	cp := p.Child(kw)
	switch kw {
	case "$id", "id":
		w.changed(IDChanged, cp, a, b)
	case "$ref":
		w.changed(SubSchemaChanged, cp, a, b)
	case "additionalItems":
		w.changed(AdditionalItemsChanged, cp, openByDefault(a), openByDefault(b))
	case "additionalProperties":
		w.changed(AdditionalPropertiesChanged, cp, openByDefault(a), openByDefault(b))
	case "definitions":
		w.definitions(cp, a, b)
	case "dependencies":
		w.dependencies(cp, a, b)
	case "description":
		w.changed(DescriptionChanged, cp, a, b)
	case "enum":
		w.enum(cp, a, b)
	case "items":
		w.items(cp, a, b)
	case "not":
		w.not(cp, a, b)
	case "properties":
		w.properties(cp, a, b)
	case "required":
		if !sameSet(a, b) {
			w.add(RequiredArrayChanged, cp)
		}
	case "title":
		w.changed(TitleChanged, cp, a, b)
	case "type":
		if !sameSet(typeSlot(a), typeSlot(b)) {
			w.add(TypeChanged, cp)
		}
	default:
		// maximum, minLength, pattern, format, patternProperties, uniqueItems, ...
		w.changed(AttributeValueChanged, cp, a, b)
	}
}

// composition compares allOf/anyOf/oneOf as one step: switching keyword or member count
// is a single change, otherwise members are compared pairwise.
func (w *walker) composition(p Path, ao, bo map[string]any) {
	used := func(o map[string]any) []string {
		var kws []string
		for _, kw := range compositionKeywords {
			if _, ok := o[kw]; ok {
				kws = append(kws, kw)
			}
		}
		return kws
	}

	ua, ub := used(ao), used(bo)
	if !slices.Equal(ua, ub) {
		w.add(CompositionMethodChanged, p)
		return
	}

	for _, kw := range ua {
		cp := p.Child(kw)
		am, aok := ao[kw].([]any)
		bm, bok := bo[kw].([]any)
		if !aok || !bok {
			if !canonicalize.Equal(ao[kw], bo[kw]) {
				w.add(SubSchemaChanged, cp)
			}
			continue
		}
		if len(am) != len(bm) {
			w.add(CompositionMethodChanged, cp)
			continue
		}
		for i := range am {
			w.schema(cp.Child(strconv.Itoa(i)), am[i], bm[i])
		}
	}
}

func (w *walker) properties(p Path, a, b slot) {
	am, bm, ok := objects(a, b)
	if !ok {
		w.changed(SubSchemaChanged, p, a, b)
		return
	}
	for _, name := range unionKeys(am, bm) {
		av, inA := am[name]
		bv, inB := bm[name]
		cp := p.Child(name)
		switch {
		case inA && !inB:
			w.add(PropertyRemoved, cp)
		case !inA && inB:
			w.add(PropertiesAdded, cp)
		default:
			w.schema(cp, av, bv)
		}
	}
}

// definitions are only reachable through $ref, so adding one changes nothing by itself.
func (w *walker) definitions(p Path, a, b slot) {
	am, bm, ok := objects(a, b)
	if !ok {
		w.changed(SubSchemaChanged, p, a, b)
		return
	}
	for _, name := range unionKeys(am, bm) {
		av, inA := am[name]
		bv, inB := bm[name]
		switch {
		case inA && !inB:
			w.add(SchemaRemoved, p.Child(name))
		case inA && inB:
			w.schema(p.Child(name), av, bv)
		}
	}
}

// dependencies distinguish the property-array form from the schema form.
func (w *walker) dependencies(p Path, a, b slot) {
	am, bm, ok := objects(a, b)
	if !ok {
		w.changed(DependencySchemaChanged, p, a, b)
		return
	}
	for _, name := range unionKeys(am, bm) {
		av, inA := am[name]
		bv, inB := bm[name]
		_, aArray := av.([]any)
		_, bArray := bv.([]any)
		cp := p.Child(name)
		switch {
		case inA && !inB:
			if aArray {
				w.add(DependencyArrayChanged, cp)
			} else {
				w.add(DependencySchemaRemoved, cp)
			}
		case !inA && inB:
			if bArray {
				w.add(DependencyArrayChanged, cp)
			} else {
				w.add(DependencySchemaChanged, cp)
			}
		case aArray && bArray:
			if !sameSet(slot{av, true}, slot{bv, true}) {
				w.add(DependencyArrayChanged, cp)
			}
		case aArray != bArray:
			w.add(DependencySchemaChanged, cp)
		default:
			if !canonicalize.Equal(av, bv) {
				w.add(DependencySchemaChanged, cp)
			}
		}
	}
}

func (w *walker) enum(p Path, a, b slot) {
	if a.ok != b.ok || !sameSet(a, b) {
		w.add(EnumArrayChanged, p)
	}
}

// items is either one schema for every element or a tuple of positional schemas.
func (w *walker) items(p Path, a, b slot) {
	at, aTuple := a.v.([]any)
	bt, bTuple := b.v.([]any)

	switch {
	case a.ok && !b.ok:
		if aTuple {
			w.add(NumberOfItemsChanged, p)
		} else {
			w.add(SchemaRemoved, p)
		}
	case !a.ok && b.ok:
		if bTuple {
			w.add(NumberOfItemsChanged, p)
		} else {
			w.add(SubSchemaChanged, p)
		}
	case aTuple && bTuple:
		if len(at) != len(bt) {
			w.add(NumberOfItemsChanged, p)
			return
		}
		for i := range at {
			w.schema(p.Child(strconv.Itoa(i)), at[i], bt[i])
		}
	case aTuple != bTuple:
		w.add(NumberOfItemsChanged, p)
	default:
		w.schema(p, a.v, b.v)
	}
}

func (w *walker) not(p Path, a, b slot) {
	switch {
	case a.ok && !b.ok:
		w.add(SchemaRemoved, p)
	case !a.ok && b.ok:
		w.add(SubSchemaChanged, p)
	default:
		w.schema(p, a.v, b.v)
	}
}

// unrelated reports whether both schemas constrain payloads but share no validation keyword,
// in which case comparing them keyword by keyword would only produce noise.
func unrelated(a, b map[string]any) bool {
	va, vb := validationKeywords(a), validationKeywords(b)
	if len(va) == 0 || len(vb) == 0 {
		return false
	}
	for kw := range va {
		if vb[kw] {
			return false
		}
	}
	return true
}

func validationKeywords(o map[string]any) map[string]bool {
	kws := make(map[string]bool, len(o))
	for kw := range o {
		if ignoredKeywords[kw] || annotationKeywords[kw] || strings.HasPrefix(kw, "x-") {
			continue
		}
		// allOf/anyOf/oneOf are one family; switching between them is a composition change.
		if slices.Contains(compositionKeywords, kw) {
			kw = "allOf"
		}
		kws[kw] = true
	}
	return kws
}

func unionKeys(a, b map[string]any) []string {
	keys := make([]string, 0, len(a)+len(b))
	for k := range a {
		keys = append(keys, k)
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// objects returns both values as objects, treating an absent keyword as empty.
func objects(a, b slot) (map[string]any, map[string]any, bool) {
	am, aok := asObject(a)
	bm, bok := asObject(b)
	return am, bm, aok && bok
}

func asObject(s slot) (map[string]any, bool) {
	if !s.ok {
		return map[string]any{}, true
	}
	o, ok := s.v.(map[string]any)
	return o, ok
}

// openByDefault treats an absent keyword and the empty schema as the explicit true they mean.
func openByDefault(s slot) slot {
	if o, ok := s.v.(map[string]any); !s.ok || (ok && len(o) == 0) {
		return slot{true, true}
	}
	return s
}

// typeSlot normalizes "type": "string" to ["string"].
func typeSlot(s slot) slot {
	if str, ok := s.v.(string); ok {
		return slot{[]any{str}, true}
	}
	return s
}

// sameSet compares two array keywords ignoring order and duplicates.
// Absent means empty; non-array values fall back to structural equality.
func sameSet(a, b slot) bool {
	sa, aok := set(a)
	sb, bok := set(b)
	if !aok || !bok {
		return a.ok == b.ok && canonicalize.Equal(a.v, b.v)
	}
	if len(sa) != len(sb) {
		return false
	}
	for k := range sa {
		if !sb[k] {
			return false
		}
	}
	return true
}

func set(s slot) (map[string]bool, bool) {
	if !s.ok {
		return map[string]bool{}, true
	}
	arr, ok := s.v.([]any)
	if !ok {
		return nil, false
	}
	out := make(map[string]bool, len(arr))
	for _, el := range arr {
		out[canonicalize.Key(el)] = true
	}
	return out, true
}
