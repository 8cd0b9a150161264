package snapshot

import (
	"testing"

	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/ava12/packrat"
	"github.com/ava12/packrat/grammar"
	. "github.com/ava12/packrat/internal/test"
	"github.com/ava12/packrat/internal/wire"
)

func identity(values []any) any {
	return values
}

func always(pushed, popped []any) bool {
	return true
}

func closeRule(t *testing.T, r *grammar.Rule) *grammar.Grammar {
	t.Helper()
	b := grammar.NewBuilder()
	g, e := b.Close(b.Rule(r))
	ExpectNoError(t, e)
	return g
}

func fullGrammar(t *testing.T) *grammar.Grammar {
	t.Helper()
	b := grammar.NewBuilder()
	list := b.Reserve()
	unused := b.Reserve()
	ExpectNoError(t, b.Define(unused, grammar.Token("unused")))

	join := grammar.Fn("join", identity)
	item := grammar.Or(
		grammar.Regex(`^\w+$`),
		grammar.Ref(list),
		grammar.Atom(grammar.Fn("atom", func() {})),
	)
	ExpectNoError(t, b.Define(list, grammar.SeqObject(
		grammar.Key("open", grammar.PushCapture(grammar.Token("("))),
		grammar.Key("items", grammar.Repeat(grammar.Seq(grammar.Not(grammar.Token(")")), item), 0, 5).ReshapeEach(join)),
		grammar.Optional(grammar.Any(2)),
		grammar.PopCapture(grammar.Fn("pop", always), grammar.Token(")")),
		grammar.SkipOptional(grammar.Eof()),
	).Reshape(join)))

	g, e := b.Close(list)
	ExpectNoError(t, e)
	return g
}

func TestRoundTrip(t *testing.T) {
	s, e := Create(fullGrammar(t))
	ExpectNoError(t, e)

	blob, e := Encode(s)
	ExpectNoError(t, e)
	decoded, e := Decode(blob, s.Strings)
	ExpectNoError(t, e)
	Assert(t, s.Equal(decoded), "decoded snapshot differs")
	ExpectEqual(t, s, decoded, cmpopts.EquateEmpty())

	again, e := Encode(decoded)
	ExpectNoError(t, e)
	ExpectEqual(t, blob, again)
}

func TestTables(t *testing.T) {
	g := fullGrammar(t)
	s, e := Create(g)
	ExpectNoError(t, e)

	for _, text := range s.Strings {
		Assert(t, text != "unused", "unreachable rule is stored")
	}
	ExpectEqual(t, []string{"atom", "join", "pop"}, nativeNames(s))

	ExpectEqual(t, grammar.SeqObjectRule, s.Kinds[s.Entry])
	ExpectInt(t, 1, len(s.Refs))
	ExpectInt(t, s.Entry, s.Refs[0])
	_, has := s.Reshape[s.Entry]
	Assert(t, has, "entry reshape is lost")

	items := s.Children(s.Entry)
	ExpectInt(t, 5, len(items))
	ExpectEqual(t, []grammar.Flags{grammar.PushItem, 0, grammar.OptionalItem, grammar.PopItem, grammar.OptionalItem | grammar.SkipItem}, s.Flags[s.Entry])
	ExpectEqual(t, "open", s.Strings[s.Keys[s.Entry][0]-1])
	ExpectEqual(t, "items", s.Strings[s.Keys[s.Entry][1]-1])
	ExpectEqual(t, []int{0, 0, 0, 3, 0}, s.PopFns[s.Entry])

	repeat := items[1]
	ExpectEqual(t, grammar.RepeatRule, s.Kinds[repeat])
	min, max := s.Range(repeat)
	ExpectInt(t, 0, min)
	ExpectInt(t, 5, max)
	ExpectInt(t, 1, s.ReshapeEach[repeat])

	ExpectEqual(t, grammar.AnyRule, s.Kinds[items[2]])
	ExpectInt(t, 2, s.Values[items[2]])
}

func nativeNames(s *Snapshot) []string {
	result := make([]string, len(s.Natives))
	for i := range s.Natives {
		result[i] = s.NativeName(i)
	}
	return result
}

func TestDeduplication(t *testing.T) {
	s, e := Create(closeRule(t, grammar.Or(grammar.Token("a"), grammar.Token("a"), grammar.Seq(grammar.Token("a")))))
	ExpectNoError(t, e)
	ExpectInt(t, 3, s.Len())
	children := s.Children(s.Entry)
	ExpectInt(t, children[0], children[1])
	ExpectEqual(t, []string{"a"}, s.Strings)

	join := grammar.Fn("join", identity)
	s, e = Create(closeRule(t, grammar.Seq(grammar.Token("a").Reshape(join), grammar.Token("a"), grammar.Optional(grammar.Token("a")))))
	ExpectNoError(t, e)
	children = s.Children(s.Entry)
	Assert(t, children[0] != children[1], "rules with different reshape are merged")
	ExpectInt(t, children[1], children[2])

	s, e = Create(closeRule(t, grammar.Or(grammar.Repeat(grammar.Token("a"), 1), grammar.Repeat(grammar.Token("a")), grammar.Repeat(grammar.Token("a"), 1))))
	ExpectNoError(t, e)
	children = s.Children(s.Entry)
	Assert(t, children[0] != children[1], "repetitions with different ranges are merged")
	ExpectInt(t, children[0], children[2])
	_, has := s.Ranges[children[1]]
	Assert(t, !has, "default range is stored")

	s, e = Create(closeRule(t, grammar.Or(
		grammar.SeqObject(grammar.Key("a", grammar.Token("x"))),
		grammar.SeqObject(grammar.Key("b", grammar.Token("x"))),
		grammar.Seq(grammar.Key("a", grammar.Token("x"))),
	)))
	ExpectNoError(t, e)
	children = s.Children(s.Entry)
	ExpectInt(t, 3, len(children))
	Assert(t, children[0] != children[1] && children[0] != children[2], "rules with different keys or kinds are merged")
}

func TestCreateErrors(t *testing.T) {
	_, e := Create(closeRule(t, grammar.Token("a").Reshape(grammar.Fn("", identity))))
	ExpectErrorCode(t, UnnamedNativeError, e)
}

func TestLogger(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	_, e := Create(fullGrammar(t), WithLogger(logger))
	ExpectNoError(t, e)

	entry := hook.LastEntry()
	Assert(t, entry != nil, "expecting log entry")
	ExpectString(t, "grammar flattened", entry.Message)
	_, has := entry.Data["rules"]
	Assert(t, has, "expecting rules field")
}

func TestStats(t *testing.T) {
	s, e := Create(closeRule(t, grammar.Seq(grammar.Token("a"), grammar.Token("b"), grammar.Eof())))
	ExpectNoError(t, e)
	st := s.Stats()
	ExpectInt(t, 4, st.Rules)
	ExpectInt(t, 1, st.Lists)
	ExpectInt(t, 2, st.Strings)
	ExpectEqual(t, map[string]int{"token": 2, "eof": 1, "seq": 1}, st.Kinds)
	ExpectString(t, "rules: 4, lists: 1, refs: 0, strings: 2, natives: 0 (eof: 1, seq: 1, token: 2)", st.String())
}

func encodeRoot(t *testing.T, s *Snapshot, patch func(root []any)) []byte {
	t.Helper()
	blob, e := Encode(s)
	ExpectNoError(t, e)
	v, e := wire.Unmarshal(blob)
	ExpectNoError(t, e)
	root := v.([]any)
	patch(root)
	blob, e = wire.Marshal(root)
	ExpectNoError(t, e)
	return blob
}

func encode(t *testing.T, s *Snapshot) []byte {
	t.Helper()
	blob, e := Encode(s)
	ExpectNoError(t, e)
	return blob
}

func TestDecodeErrors(t *testing.T) {
	s, e := Create(fullGrammar(t))
	ExpectNoError(t, e)
	good, e := Encode(s)
	ExpectNoError(t, e)
	selfCall := encode(t, &Snapshot{
		Kinds:  []grammar.Kind{grammar.SeqRule, grammar.RefRule},
		Values: []int{0, 0},
		Refs:   []int{0},
		Lists:  [][]int{{1}},
	})
	selfRef := encode(t, &Snapshot{
		Kinds:  []grammar.Kind{grammar.RefRule},
		Values: []int{0},
		Refs:   []int{0},
	})

	samples := []struct {
		name    string
		blob    []byte
		strings []string
		code    int
	}{
		{"empty", nil, s.Strings, MalformedError},
		{"truncated", good[:len(good)-1], s.Strings, MalformedError},
		{"not array", []byte{0x04}, s.Strings, MalformedError},
		{"natives type", encodeRoot(t, s, func(root []any) { root[itemCount-1] = uint64(1) }), s.Strings, MalformedError},
		{"version", encodeRoot(t, s, func(root []any) { root[versionItem] = uint64(Version + 1) }), s.Strings, VersionError},
		{"entry", encodeRoot(t, s, func(root []any) { root[entryItem] = uint64(s.Len()) }), s.Strings, IndexError},
		{"kind", encodeRoot(t, s, func(root []any) {
			kinds := append([]byte{}, root[kindsItem].([]byte)...)
			kinds[0] = byte(grammar.KindCount)
			root[kindsItem] = kinds
		}), s.Strings, KindError},
		{"missing strings", good, s.Strings[:1], IndexError},
		{"list item", encodeRoot(t, s, func(root []any) {
			root[listsItem] = append(root[listsItem].([]any), []any{uint64(s.Len())})
		}), s.Strings, IndexError},
		{"unsorted pairs", encodeRoot(t, s, func(root []any) {
			root[reshapeItem] = []any{[]any{uint64(1), uint64(0)}, []any{uint64(0), uint64(0)}}
		}), s.Strings, MalformedError},
		{"misplaced range", encodeRoot(t, s, func(root []any) {
			root[rangesItem] = []any{[]any{uint64(s.Entry), []any{uint64(0), uint64(0)}}}
		}), s.Strings, MetadataError},
		{"flags count", encodeRoot(t, s, func(root []any) {
			root[flagsItem] = []any{[]any{uint64(s.Entry), []any{uint64(0)}}}
		}), s.Strings, MetadataError},
		{"predicate without flag", encodeRoot(t, s, func(root []any) {
			root[flagsItem] = []any{}
		}), s.Strings, MetadataError},
		{"left recursion", selfCall, nil, MalformedError},
		{"ref cycle", selfRef, nil, MalformedError},
	}

	for _, sample := range samples {
		t.Run(sample.name, func(t *testing.T) {
			_, e := Decode(sample.blob, sample.strings)
			ExpectErrorCode(t, sample.code, e)
		})
	}
}

func TestValidate(t *testing.T) {
	guarded := &Snapshot{
		Kinds:   []grammar.Kind{grammar.SeqRule, grammar.TokenRule, grammar.RefRule},
		Values:  []int{0, 0, 0},
		Refs:    []int{0},
		Lists:   [][]int{{1, 2}},
		Strings: []string{"a"},
	}
	ExpectNoError(t, guarded.Validate())

	optional := &Snapshot{
		Kinds:   guarded.Kinds,
		Values:  guarded.Values,
		Refs:    guarded.Refs,
		Lists:   guarded.Lists,
		Flags:   map[int][]grammar.Flags{0: {grammar.OptionalItem, 0}},
		Strings: guarded.Strings,
	}
	e := optional.Validate()
	ExpectErrorCode(t, MalformedError, e)
	ExpectInt(t, 0, e.(*packrat.Error).Rule)

	repeat := &Snapshot{
		Kinds:  []grammar.Kind{grammar.RepeatRule, grammar.RefRule},
		Values: []int{0, 0},
		Refs:   []int{0},
		Lists:  [][]int{{1}},
		Ranges: map[int][2]int{0: {1, 0}},
	}
	ExpectErrorCode(t, MalformedError, repeat.Validate())

	negative := &Snapshot{Kinds: []grammar.Kind{grammar.AnyRule}, Values: []int{-1}}
	ExpectErrorCode(t, MetadataError, negative.Validate())
}

func TestEqual(t *testing.T) {
	first, e := Create(closeRule(t, grammar.Seq(grammar.Token("a"), grammar.Regex("b"))))
	ExpectNoError(t, e)
	second, e := Create(closeRule(t, grammar.Seq(grammar.Token("a"), grammar.Regex("b"))))
	ExpectNoError(t, e)
	third, e := Create(closeRule(t, grammar.Seq(grammar.Token("a"), grammar.Token("b"))))
	ExpectNoError(t, e)

	Assert(t, first.Equal(second), "expecting equal snapshots")
	Assert(t, !first.Equal(third), "expecting different snapshots")
}
