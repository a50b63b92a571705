package evaluate

import (
	"context"
	"testing"

	"markad/internal/config"
	"markad/internal/detect"
	"markad/internal/logging"
	"markad/internal/marks"
)

const fps = 25

func sec(s float64) int { return int(s * fps) }

func logoMark(kind marks.Kind, pos int) *marks.Mark {
	return &marks.Mark{Type: marks.Type{Class: marks.ClassLogo, Kind: kind}, Position: pos}
}

// logoStore adds alternating logo marks, starting with a start.
func logoStore(t *testing.T, positions ...int) *marks.Store {
	t.Helper()
	store := marks.NewStore(logging.NewNop())
	kind := marks.Start
	for _, p := range positions {
		if store.Add(logoMark(kind, p)) == nil {
			t.Fatalf("mark at %d rejected", p)
		}
		kind = kind.Opposite()
	}
	return store
}

func testOptions() Options {
	cfg := config.Default()
	return OptionsFromConfig(cfg.Evaluation, cfg.Logo, fps)
}

type fakeAnalyzer struct {
	info   func(n int) FrameInfo
	corner detect.Corner
	calls  int
}

func (f *fakeAnalyzer) Frames(_ context.Context, from, to int) ([]FrameInfo, error) {
	f.calls++
	var out []FrameInfo
	for n := from; n <= to; n++ {
		fi := f.info(n)
		fi.Frame = n
		out = append(out, fi)
	}
	return out, nil
}

func (f *fakeAnalyzer) LogoCorner() (detect.Corner, bool) { return f.corner, true }

func TestPairClassification(t *testing.T) {
	adStop := sec(40)
	adStart := adStop + sec(305)
	shortStop := adStart + sec(300)
	shortStart := shortStop + sec(8)
	gapStop := shortStart + sec(250)
	gapStart := gapStop + sec(15)
	end := gapStart + sec(400)
	store := logoStore(t, 0, adStop, adStart, shortStop, shortStart, gapStop, gapStart, end)

	e := New(testOptions(), nil, logging.NewNop())
	pairs, err := e.Evaluate(context.Background(), store, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(pairs) != 3 {
		t.Fatalf("expected 3 pairs, got %d", len(pairs))
	}

	ad, short, gap := pairs[0], pairs[1], pairs[2]
	if ad.IsAdvertising != Yes || ad.IsLogoChange != No {
		t.Fatalf("305s pair: %s", ad)
	}
	if ad.IsStartInBroadcast != Yes {
		t.Fatalf("start after 305s pair not in broadcast: %s", ad)
	}
	if short.IsLogoChange != No || short.IsAdvertising != No {
		t.Fatalf("8s pair: %s", short)
	}
	if gap.IsAdvertising != No || gap.IsLogoChange != Unknown || gap.IsInfoLogo != Unknown {
		t.Fatalf("15s pair: %s", gap)
	}
	if !short.Protected {
		t.Fatal("pair between advertising and broadcast not protected")
	}
	if gap.Protected {
		t.Fatal("pair after the protected bridge marked protected")
	}
	if removed := e.Apply(store, pairs); removed != 0 {
		t.Fatalf("apply removed %d marks without verdicts", removed)
	}
	if store.Len() != 8 {
		t.Fatalf("store has %d marks", store.Len())
	}
}

func TestPairNextStopTooClose(t *testing.T) {
	store := logoStore(t, 0, sec(100), sec(115), sec(119), sec(400))
	pairs, err := New(testOptions(), nil, logging.NewNop()).Evaluate(context.Background(), store, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(pairs) != 2 || pairs[0].IsLogoChange != No {
		t.Fatalf("pair with next stop 4s later: %v", pairs)
	}
	if pairs[0].IsStartInBroadcast != Unknown {
		t.Fatalf("in broadcast = %s", pairs[0].IsStartInBroadcast)
	}
}

func TestPairLongBlackRejectsInfoLogo(t *testing.T) {
	stop, start := sec(100), sec(112)
	store := logoStore(t, 0, stop, start, sec(500))
	black := marks.NewSideList(logging.NewNop())
	black.Add(&marks.Mark{Type: marks.Type{Class: marks.ClassBlack, Kind: marks.Stop}, Position: stop - sec(2)})
	black.Add(&marks.Mark{Type: marks.Type{Class: marks.ClassBlack, Kind: marks.Start}, Position: stop + sec(1)})

	pairs, err := New(testOptions(), nil, logging.NewNop()).Evaluate(context.Background(), store, black)
	if err != nil {
		t.Fatal(err)
	}
	if pairs[0].IsInfoLogo != No {
		t.Fatalf("info logo = %s with long black screen", pairs[0].IsInfoLogo)
	}

	// A short black flash does not count.
	black.Clear()
	black.Add(&marks.Mark{Type: marks.Type{Class: marks.ClassBlack, Kind: marks.Stop}, Position: stop})
	black.Add(&marks.Mark{Type: marks.Type{Class: marks.ClassBlack, Kind: marks.Start}, Position: stop + 5})
	pairs, _ = New(testOptions(), nil, logging.NewNop()).Evaluate(context.Background(), store, black)
	if pairs[0].IsInfoLogo != Unknown {
		t.Fatalf("info logo = %s with black flash", pairs[0].IsInfoLogo)
	}
}

func TestFrameChecksDeleteLogoChange(t *testing.T) {
	stop, start := sec(200), sec(215)
	store := logoStore(t, 0, stop, start, sec(900))
	analyzer := &fakeAnalyzer{info: func(int) FrameInfo { return FrameInfo{LogoRatio: 0.3} }}

	e := New(testOptions(), analyzer, logging.NewNop())
	pairs, err := e.Evaluate(context.Background(), store, nil)
	if err != nil {
		t.Fatal(err)
	}
	if pairs[0].IsLogoChange != Yes {
		t.Fatalf("logo change = %s", pairs[0].IsLogoChange)
	}
	if removed := e.Apply(store, pairs); removed != 2 {
		t.Fatalf("removed %d marks", removed)
	}
	got := store.Marks()
	if len(got) != 2 || got[0].Position != 0 || got[1].Position != sec(900) {
		t.Fatalf("remaining marks %v", got)
	}
}

func TestFrameChecksInfoLogo(t *testing.T) {
	stop, start := sec(200), sec(210)
	store := logoStore(t, 0, stop, start, sec(900))
	analyzer := &fakeAnalyzer{
		corner: detect.TopRight,
		info: func(n int) FrameInfo {
			fi := FrameInfo{LogoRatio: 0}
			fi.Static[detect.TopRight] = true
			fi.Static[detect.BottomLeft] = n%3 == 0
			return fi
		},
	}
	e := New(testOptions(), analyzer, logging.NewNop())
	pairs, err := e.Evaluate(context.Background(), store, nil)
	if err != nil {
		t.Fatal(err)
	}
	p := pairs[0]
	if p.IsLogoChange != No {
		t.Fatalf("logo change = %s for absent logo", p.IsLogoChange)
	}
	if p.IsInfoLogo != Yes {
		t.Fatalf("info logo = %s", p.IsInfoLogo)
	}
	if removed := e.Apply(store, pairs); removed != 2 {
		t.Fatalf("removed %d", removed)
	}
}

func TestApplyKeepsProtectedPairs(t *testing.T) {
	store := logoStore(t, 0, sec(100), sec(500), sec(600), sec(615), sec(1000))
	analyzer := &fakeAnalyzer{info: func(int) FrameInfo { return FrameInfo{LogoRatio: 0.3} }}
	e := New(testOptions(), analyzer, logging.NewNop())
	pairs, err := e.Evaluate(context.Background(), store, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(pairs) != 2 || !pairs[1].Protected || pairs[1].IsLogoChange != Yes {
		t.Fatalf("pairs %v", pairs)
	}
	if removed := e.Apply(store, pairs); removed != 0 {
		t.Fatalf("protected pair removed (%d marks)", removed)
	}
}

func TestFrameChecksDisabled(t *testing.T) {
	opts := testOptions()
	opts.FrameChecks = false
	analyzer := &fakeAnalyzer{info: func(int) FrameInfo { return FrameInfo{LogoRatio: 0.3} }}
	store := logoStore(t, 0, sec(200), sec(215), sec(900))
	if _, err := New(opts, analyzer, logging.NewNop()).Evaluate(context.Background(), store, nil); err != nil {
		t.Fatal(err)
	}
	if analyzer.calls != 0 {
		t.Fatalf("analyzer called %d times", analyzer.calls)
	}
}

func TestPairsSkipsUnpairedStops(t *testing.T) {
	store := marks.NewStore(logging.NewNop())
	store.Add(logoMark(marks.Start, 0))
	store.Add(&marks.Mark{Type: marks.Type{Class: marks.ClassHBorder, Kind: marks.Stop}, Position: 100})
	store.Add(&marks.Mark{Type: marks.Type{Class: marks.ClassHBorder, Kind: marks.Start}, Position: 200})
	store.Add(logoMark(marks.Stop, 300))
	if got := Pairs(store, marks.ClassLogo); len(got) != 0 {
		t.Fatalf("logo pairs %v", got)
	}
	if got := Pairs(store, marks.ClassHBorder); len(got) != 1 || got[0].Frames() != 100 {
		t.Fatalf("border pairs %v", got)
	}
}
