package parser

import (
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/ava12/packrat/grammar"
	. "github.com/ava12/packrat/internal/test"
)

func tokens(src string) []string {
	return strings.Fields(src)
}

func compile(t *testing.T, b *grammar.Builder, entry int, opts ...Option) *Program {
	t.Helper()
	g, e := b.Close(entry)
	ExpectNoError(t, e)
	p, e := Compile(g, opts...)
	ExpectNoError(t, e)
	return p
}

func compileRule(t *testing.T, r *grammar.Rule, opts ...Option) *Program {
	t.Helper()
	b := grammar.NewBuilder()
	return compile(t, b, b.Rule(r), opts...)
}

func parse(t *testing.T, p *Program, src string) (Result, *Context) {
	t.Helper()
	c := p.NewContext(tokens(src))
	r, e := c.Parse(0)
	ExpectNoError(t, e)
	return r, c
}

func expectFailure(t *testing.T, r Result, kind FailKind, index int) *Failure {
	t.Helper()
	Assert(t, !r.OK(), "expecting %s, got success with %d tokens", kind, r.Len)
	ExpectEqual(t, kind, r.Fail.Kind)
	ExpectInt(t, index, r.Fail.Index)
	return r.Fail
}

type parseSample struct {
	src    string
	ok     bool
	length int
	values []any
}

func testParseSamples(t *testing.T, p *Program, samples []parseSample) {
	t.Helper()
	for i, s := range samples {
		r, c := parse(t, p, s.src)
		if r.OK() != s.ok {
			t.Errorf("sample #%d %q: expecting success %v, got %v", i, s.src, s.ok, r.OK())
			continue
		}
		if !s.ok {
			continue
		}

		if r.Len != s.length {
			t.Errorf("sample #%d %q: expecting %d tokens, got %d", i, s.src, s.length, r.Len)
		}
		if s.values != nil {
			ExpectEqual(t, s.values, c.Resolve(r.Values))
		}
	}
}

func constant(v any) *grammar.Native {
	return grammar.Fn("const:"+strconv.Quote(v.(string)), func([]any) any { return v })
}

func sameText(pushed, popped []any) bool {
	return len(pushed) == 1 && len(popped) == 1 && pushed[0] == popped[0]
}

func TestConcreteScenario(t *testing.T) {
	p := compileRule(t, grammar.Seq(grammar.Token("a"), grammar.Repeat(grammar.Token("b")), grammar.Eof()))

	r, c := parse(t, p, "a b b")
	Assert(t, r.OK(), "unexpected failure: %v", r.Fail)
	ExpectInt(t, 0, r.Pos)
	ExpectInt(t, 3, r.Len)
	ExpectEqual(t, []any{TokenRef(0), TokenRef(1), TokenRef(2)}, r.Values)
	ExpectEqual(t, []any{"a", "b", "b"}, c.Resolve(r.Values))

	r, _ = parse(t, p, "a c")
	f := expectFailure(t, r, SeqStop, 2)
	ExpectEqual(t, EofUnmatch, f.Child.Kind)
	ExpectInt(t, 1, f.Child.Pos)
}

func TestOrderedChoice(t *testing.T) {
	p := compileRule(t, grammar.Or(
		grammar.Token("a").Reshape(constant("first")),
		grammar.Seq(grammar.Token("a")).Reshape(constant("second")),
		grammar.Seq(grammar.Token("a"), grammar.Token("a")).Reshape(constant("longer")),
	))

	testParseSamples(t, p, []parseSample{
		{"a", true, 1, []any{"first"}},
		{"a a", true, 1, []any{"first"}},
		{"b", false, 0, nil},
	})

	r, _ := parse(t, p, "b")
	f := expectFailure(t, r, OrUnmatchAll, -1)
	ExpectInt(t, 3, len(f.Children))
	ExpectEqual(t, TokenUnmatch, f.Children[0].Kind)
	ExpectEqual(t, SeqStop, f.Children[1].Kind)
}

func TestSeqShortCircuit(t *testing.T) {
	p := compileRule(t, grammar.Seq(grammar.Token("a"), grammar.Token("b"), grammar.Token("c")))

	r, _ := parse(t, p, "a x c")
	f := expectFailure(t, r, SeqStop, 1)
	Assert(t, r.Values == nil, "expecting no values, got %v", r.Values)
	ExpectEqual(t, TokenUnmatch, f.Child.Kind)
	ExpectString(t, "b", f.Child.Detail)
	ExpectInt(t, 1, f.Child.Pos)
	ExpectInt(t, 0, f.Pos)
}

func TestSeqItems(t *testing.T) {
	p := compileRule(t, grammar.Seq(
		grammar.Optional(grammar.Token("-")),
		grammar.Regex(`^\d+$`),
		grammar.Skip(grammar.Token(";")),
		grammar.SkipOptional(grammar.Token(";")),
	))

	testParseSamples(t, p, []parseSample{
		{"- 1 ;", true, 3, []any{"-", "1"}},
		{"2 ; ;", true, 3, []any{"2"}},
		{"3 ; x", true, 2, []any{"3"}},
		{"- ;", false, 0, nil},
		{"4", false, 0, nil},
	})
}

func TestSeqObject(t *testing.T) {
	p := compileRule(t, grammar.SeqObject(
		grammar.Key("name", grammar.Regex(`^\w+$`)),
		grammar.Skip(grammar.Token("=")),
		grammar.Optional(grammar.Key("value", grammar.Regex(`^\d+$`))),
		grammar.Key("rest", grammar.Repeat(grammar.Regex(`^\d+$`), 0, 2)),
		grammar.Token(";"),
	))

	testParseSamples(t, p, []parseSample{
		{"x = 1 2 3 ;", true, 6, []any{Object{"name": "x", "value": "1", "rest": []any{"2", "3"}}}},
		{"y = 4 ;", true, 4, []any{Object{"name": "y", "value": "4", "rest": []any(nil)}}},
		{"z = ;", true, 3, []any{Object{"name": "z", "rest": []any(nil)}}},
		{"z = 1 2 3 4 ;", false, 0, nil},
	})

	r, _ := parse(t, p, "x = 1 2 3 ;")
	o := r.Values[0].(Object)
	ExpectEqual(t, TokenRef(0), o["name"])
}

func TestRepeatBounds(t *testing.T) {
	p := compileRule(t, grammar.Repeat(grammar.Token("x"), 1, 3))

	r, _ := parse(t, p, "")
	f := expectFailure(t, r, RepeatRangeError, -1)
	ExpectInt(t, 0, f.Count)
	ExpectString(t, "1 to 3", f.Detail)

	r, c := parse(t, p, "x x y")
	Assert(t, r.OK(), "unexpected failure: %v", r.Fail)
	ExpectInt(t, 2, r.Len)
	ExpectEqual(t, []any{"x", "x"}, c.Resolve(r.Values))

	r, _ = parse(t, p, "x x x")
	ExpectBool(t, true, r.OK())
	ExpectInt(t, 3, r.Len)

	// greedy loop does not stop at max
	r, _ = parse(t, p, "x x x x")
	f = expectFailure(t, r, RepeatRangeError, -1)
	ExpectInt(t, 4, f.Count)
}

func TestRepeatLimits(t *testing.T) {
	x := grammar.Token("x")
	samples := []struct {
		name   string
		rule   *grammar.Rule
		src    string
		ok     bool
		length int
	}{
		{"star empty", grammar.Repeat(x), "", true, 0},
		{"star many", grammar.Repeat(x), "x x x x x", true, 5},
		{"plus empty", grammar.Repeat1(x), "y", false, 0},
		{"plus one", grammar.Repeat1(x), "x y", true, 1},
		{"at least 2", grammar.Repeat(x, 2), "x", false, 0},
		{"at least 2 ok", grammar.Repeat(x, 2), "x x x", true, 3},
		{"optional", grammar.Repeat(x, 0, 1), "x", true, 1},
		{"optional too many", grammar.Repeat(x, 0, 1), "x x", false, 0},
		{"exact", grammar.Repeat(x, 2, 2), "x x", true, 2},
	}

	for _, s := range samples {
		t.Run(s.name, func(t *testing.T) {
			p := compileRule(t, s.rule)
			r, _ := parse(t, p, s.src)
			ExpectBool(t, s.ok, r.OK())
			if s.ok {
				ExpectInt(t, s.length, r.Len)
			} else {
				ExpectEqual(t, RepeatRangeError, r.Fail.Kind)
			}
		})
	}
}

func TestReshape(t *testing.T) {
	toInt := grammar.Fn("int", func(values []any) any {
		n, _ := strconv.Atoi(values[0].(string))
		return n
	})
	sum := grammar.Fn("sum", func(values []any) any {
		total := 0
		for _, v := range values {
			total += v.(int)
		}
		return total
	})
	p := compileRule(t, grammar.Repeat(grammar.Regex(`^\d+$`)).ReshapeEach(toInt).Reshape(sum))

	testParseSamples(t, p, []parseSample{
		{"1 2 3", true, 3, []any{6}},
		{"", true, 0, []any{0}},
		{"10 x", true, 1, []any{10}},
	})
}

func TestCaptures(t *testing.T) {
	same := grammar.Fn("same", sameText)
	name := grammar.Regex(`^\w+$`)
	pair := grammar.Seq(grammar.PushCapture(name), grammar.Token("="), grammar.PopCapture(same, name))
	p := compileRule(t, pair)

	testParseSamples(t, p, []parseSample{
		{"a = a", true, 3, []any{"a", "=", "a"}},
		{"a = b", false, 0, nil},
	})

	r, _ := parse(t, p, "a = b")
	expectFailure(t, r, SeqUnmatchStack, 2)

	p = compileRule(t, grammar.Seq(grammar.Token("a"), grammar.PopCapture(same, grammar.Token("b"))))
	r, _ = parse(t, p, "a b")
	expectFailure(t, r, SeqNoStackOnPop, 1)
}

func TestNestedCaptures(t *testing.T) {
	same := grammar.Fn("same", func(pushed, popped []any, c *Context) bool {
		return pushed[0] == popped[0]
	})
	b := grammar.NewBuilder()
	element := b.Reserve()
	tag := grammar.Regex(`^[a-z]+$`)
	ExpectNoError(t, b.Define(element, grammar.Seq(
		grammar.Skip(grammar.Token("<")), grammar.PushCapture(tag), grammar.Skip(grammar.Token(">")),
		grammar.Repeat(grammar.Ref(element)),
		grammar.Skip(grammar.Token("</")), grammar.PopCapture(same, tag), grammar.Skip(grammar.Token(">")),
	)))
	p := compile(t, b, element)

	testParseSamples(t, p, []parseSample{
		{"< a > </ a >", true, 6, []any{"a", "a"}},
		{"< a > < b > </ b > < c > </ c > </ a >", true, 18, []any{"a", "b", "b", "c", "c", "a"}},
		{"< a > < b > </ a > </ b >", false, 0, nil},
	})
}

func TestNot(t *testing.T) {
	end := grammar.Token("end")
	p := compileRule(t, grammar.Seq(grammar.Repeat(grammar.Seq(grammar.Not(end), grammar.Any(1))), end))

	testParseSamples(t, p, []parseSample{
		{"a b end", true, 3, []any{"a", "b", "end"}},
		{"end", true, 1, []any{"end"}},
		{"a b", false, 0, nil},
	})

	p = compileRule(t, grammar.Seq(grammar.Not(grammar.Token("a"), grammar.Token("b")), grammar.Any(1)))
	r, _ := parse(t, p, "b")
	f := expectFailure(t, r, SeqStop, 0)
	ExpectEqual(t, NotIncorrectMatch, f.Child.Kind)
	Assert(t, f.Child.Match != nil && f.Child.Match.Len == 1, "expecting matched result, got %v", f.Child.Match)
}

func TestAny(t *testing.T) {
	p := compileRule(t, grammar.Any(2))
	testParseSamples(t, p, []parseSample{
		{"a b c", true, 2, []any{"a", "b"}},
		{"a", false, 0, nil},
	})

	r, _ := parse(t, p, "a")
	f := expectFailure(t, r, AnyUnmatch, -1)
	ExpectInt(t, 2, f.Count)

	p = compileRule(t, grammar.Seq(grammar.Any(0), grammar.Eof()))
	testParseSamples(t, p, []parseSample{{"", true, 0, nil}})

	p = compileRule(t, grammar.Any(math.MaxInt))
	r, e := p.ParseAt(tokens("a b"), 1)
	ExpectNoError(t, e)
	f = expectFailure(t, r, AnyUnmatch, -1)
	ExpectInt(t, math.MaxInt, f.Count)
}

func TestAtom(t *testing.T) {
	number := grammar.Fn("number", func(c *Context, pos int) Result {
		text, valid := c.Token(pos)
		n, e := strconv.Atoi(text)
		if !valid || e != nil {
			return Mismatch(pos, "number")
		}
		return Match(pos, 1, n)
	})
	p := compileRule(t, grammar.Seq(grammar.Atom(number), grammar.Token("!")))

	testParseSamples(t, p, []parseSample{
		{"12 !", true, 2, []any{12, "!"}},
		{"x !", false, 0, nil},
	})

	r, _ := parse(t, p, "x !")
	f := expectFailure(t, r, SeqStop, 0)
	ExpectEqual(t, AtomError, f.Child.Kind)
	ExpectEqual(t, TokenUnmatch, f.Child.Child.Kind)
	ExpectString(t, "number", f.Child.Child.Detail)
}

func TestAtomResultError(t *testing.T) {
	greedy := grammar.Fn("greedy", func(c *Context, pos int) Result {
		return Match(pos, 10)
	})
	p := compileRule(t, grammar.Atom(greedy))
	_, e := p.Parse(tokens("a b"))
	ExpectErrorCode(t, AtomResultError, e)
}

func TestZeroWidthRepeat(t *testing.T) {
	samples := []struct {
		name string
		rule *grammar.Rule
		src  string
	}{
		{"eof", grammar.Repeat(grammar.Eof()), ""},
		{"optional item", grammar.Repeat(grammar.Seq(grammar.Optional(grammar.Token("a")))), "a a b"},
		{"lookahead", grammar.Repeat1(grammar.Not(grammar.Token("a"))), "b"},
	}

	for _, s := range samples {
		t.Run(s.name, func(t *testing.T) {
			p := compileRule(t, s.rule)
			_, e := p.Parse(tokens(s.src))
			ExpectErrorCode(t, ZeroWidthRepeatError, e)
		})
	}
}

func TestFarthest(t *testing.T) {
	a, b := grammar.Token("a"), grammar.Token("b")
	p := compileRule(t, grammar.Or(
		grammar.Seq(a, b, grammar.Token("c")),
		grammar.Seq(a, b, grammar.Token("d")),
		a,
	))

	src := tokens("a b x")
	c := p.NewContext(src)
	r, e := c.Parse(0)
	ExpectNoError(t, e)
	Assert(t, r.OK(), "expecting success of last alternative")

	far := c.Farthest()
	ExpectEqual(t, TokenUnmatch, far.Kind)
	ExpectInt(t, 2, far.Pos)
	ExpectString(t, "c", far.Detail)

	p = compileRule(t, grammar.Seq(grammar.Or(
		grammar.Seq(a, b, grammar.Token("c")),
		grammar.Seq(a, b, grammar.Token("d")),
	), grammar.Eof()))
	r, e = p.Parse(src)
	ExpectNoError(t, e)
	Assert(t, !r.OK(), "expecting failure")

	path := r.Fail.Path()
	ExpectInt(t, 4, len(path))
	ExpectEqual(t, SeqStop, path[0].Kind)
	ExpectEqual(t, OrUnmatchAll, path[1].Kind)
	ExpectEqual(t, SeqStop, path[2].Kind)
	ExpectEqual(t, TokenUnmatch, path[3].Kind)
	Assert(t, r.Fail.Deepest() == path[3], "Deepest must end Path")
	ExpectEqual(t, []string{`"c"`, `"d"`}, r.Fail.Expected())

	pe := r.Fail.ToError(src)
	ExpectInt(t, int(TokenUnmatch), pe.Code)
	ExpectInt(t, 2, pe.Pos)
	Assert(t, strings.Contains(pe.Message, `expecting "c" or "d", got "x"`), "unexpected message %q", pe.Message)
	Assert(t, strings.Contains(r.Fail.Error(), "TokenUnmatch"), "unexpected message %q", r.Fail.Error())
}

func TestParseAt(t *testing.T) {
	p := compileRule(t, grammar.Seq(grammar.Token("b"), grammar.Eof()))
	r, e := p.ParseAt(tokens("a b"), 1)
	ExpectNoError(t, e)
	ExpectBool(t, true, r.OK())
	ExpectInt(t, 1, r.Pos)
	ExpectInt(t, 2, r.End())

	_, e = p.ParseAt(tokens("a b"), 3)
	ExpectErrorCode(t, InvalidPositionError, e)
	_, e = p.ParseAt(tokens("a b"), -1)
	ExpectErrorCode(t, InvalidPositionError, e)
	_, e = p.NewContext(nil).ParseFrom(p.Len(), 0)
	ExpectErrorCode(t, InvalidRuleIdError, e)
}

func TestCompileErrors(t *testing.T) {
	samples := []struct {
		name string
		rule *grammar.Rule
		code int
	}{
		{"bad pattern", grammar.Regex(`(`), RegexError},
		{"bad reshape", grammar.Token("a").Reshape(grammar.Fn("r", func() {})), NativeTypeError},
		{"bad each", grammar.Repeat(grammar.Token("a")).ReshapeEach(grammar.Fn("r", func(any) any { return nil })), NativeTypeError},
		{"bad atom", grammar.Atom(grammar.Fn("a", func(pos int) Result { return Result{} })), NativeTypeError},
		{"bad predicate", grammar.Seq(grammar.PushCapture(grammar.Token("a")), grammar.PopCapture(grammar.Fn("p", sameText), grammar.Token("a"))), 0},
		{"bad predicate type", grammar.Seq(grammar.PushCapture(grammar.Token("a")), grammar.PopCapture(grammar.Fn("p", strings.EqualFold), grammar.Token("a"))), NativeTypeError},
	}

	for _, s := range samples {
		t.Run(s.name, func(t *testing.T) {
			b := grammar.NewBuilder()
			g, e := b.Close(b.Rule(s.rule))
			ExpectNoError(t, e)
			_, e = Compile(g)
			if s.code == 0 {
				ExpectNoError(t, e)
			} else {
				ExpectErrorCode(t, s.code, e)
			}
		})
	}
}

func TestLogger(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	p := compileRule(t, grammar.Seq(grammar.Token("a"), grammar.Eof()), WithLogger(logger))
	_, e := p.Parse(tokens("a"))
	ExpectNoError(t, e)

	entries := hook.AllEntries()
	ExpectInt(t, 3, len(entries))
	last := entries[len(entries)-1]
	ExpectString(t, "rule evaluated", last.Message)
	ExpectEqual(t, "seq", last.Data["kind"])
	ExpectEqual(t, true, last.Data["ok"])
}
