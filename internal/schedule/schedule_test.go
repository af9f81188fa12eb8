package schedule

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"adscribe/internal/logging"
	"adscribe/internal/scene"
	"adscribe/internal/services"
	"adscribe/internal/silence"
)

func defaultOptions() Options {
	return Options{
		WordRate:          3.0,
		Limits:            Limits{CharsPerSecond: 15, MinReadingTime: 1.0, MaxWPM: 180},
		ValidationRetries: 3,
		Language:          "es",
		Style:             StyleNeutral,
	}
}

func noSleep() services.RetryPolicy {
	p := services.DefaultRetryPolicy()
	p.Sleep = func(context.Context, time.Duration) error { return nil }
	return p
}

func TestScheduleSecondSceneClaimsNearestWindow(t *testing.T) {
	scenes := []scene.Interval{{Start: 0, End: 5, Confidence: 1}, {Start: 5, End: 12, Confidence: 0.6}}
	windows := []silence.Interval{{Start: 5.5, End: 9.0}}

	var seen []SceneContext
	gen := GeneratorFunc(func(_ context.Context, sc SceneContext) (string, error) {
		seen = append(seen, sc)
		return "una mujer abre la puerta y entra en la sala con paso lento mientras llueve", nil
	})
	s := New(defaultOptions(), logging.NewNop(), WithRetryPolicy(noSleep()))
	cues, err := s.Schedule(context.Background(), scenes, windows, gen)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if len(cues) != 1 {
		t.Fatalf("expected one cue, got %+v", cues)
	}
	cue := cues[0]
	if cue.SceneIndex != 1 || cue.Window != windows[0] || cue.MaxWords != 10 {
		t.Fatalf("unexpected cue: %+v", cue)
	}
	if words := strings.Fields(cue.Text); len(words) > 10 || !strings.HasSuffix(cue.Text, ".") {
		t.Fatalf("text not truncated to budget: %q", cue.Text)
	}
	if cue.Text != "una mujer abre la puerta y entra en la sala." {
		t.Fatalf("unexpected truncation: %q", cue.Text)
	}
	if len(seen) != 1 || seen[0].MaxWords != 10 || seen[0].Language != "es" || seen[0].Index != 1 {
		t.Fatalf("unexpected generator context: %+v", seen)
	}
}

func TestMatchWindows(t *testing.T) {
	tests := []struct {
		name      string
		scenes    []scene.Interval
		windows   []silence.Interval
		tolerance float64
		want      []int // scene index per matched window, in window order
	}{
		{
			name:    "tie goes to earlier window",
			scenes:  []scene.Interval{{Start: 5, End: 10}},
			windows: []silence.Interval{{Start: 7, End: 9}, {Start: 3, End: 5}},
			want:    []int{0},
		},
		{
			name:    "each window used once",
			scenes:  []scene.Interval{{Start: 0, End: 4}, {Start: 4, End: 8}, {Start: 8, End: 12}},
			windows: []silence.Interval{{Start: 1, End: 3}, {Start: 9, End: 11}},
			want:    []int{0, 2},
		},
		{
			name:      "tolerance rejects distant windows",
			scenes:    []scene.Interval{{Start: 0, End: 4}},
			windows:   []silence.Interval{{Start: 5, End: 8}},
			tolerance: 1,
			want:      nil,
		},
		{
			name:    "no windows",
			scenes:  []scene.Interval{{Start: 0, End: 4}},
			windows: nil,
			want:    nil,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			matches := MatchWindows(tc.scenes, tc.windows, tc.tolerance)
			var got []int
			for i, m := range matches {
				got = append(got, m.SceneIndex)
				if i > 0 && matches[i-1].Window.Start > m.Window.Start {
					t.Fatalf("matches not sorted by window start: %+v", matches)
				}
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}

	tie := MatchWindows([]scene.Interval{{Start: 5, End: 10}}, []silence.Interval{{Start: 7, End: 9}, {Start: 3, End: 5}}, 0)
	if tie[0].Window.Start != 3 {
		t.Fatalf("expected earlier window on tie, got %+v", tie[0].Window)
	}
}

func TestMaxWordsAndTruncate(t *testing.T) {
	if got := MaxWords(3.5, 3.0); got != 10 {
		t.Fatalf("MaxWords(3.5, 3) = %d", got)
	}
	if got := MaxWords(2.9, 3.0); got != 8 {
		t.Fatalf("MaxWords(2.9, 3) = %d", got)
	}
	tests := []struct {
		text string
		n    int
		want string
	}{
		{"un perro corre", 5, "un perro corre"},
		{"un  perro\tcorre por el parque", 3, "un perro corre."},
		{"llega, mira, sale y cierra", 2, "llega, mira."},
		{"algo", 0, ""},
		{"dos palabras", 0, ""},
	}
	for _, tc := range tests {
		if got := Truncate(tc.text, tc.n); got != tc.want {
			t.Fatalf("Truncate(%q, %d) = %q want %q", tc.text, tc.n, got, tc.want)
		}
	}
}

func TestFitRetruncatesAndDrops(t *testing.T) {
	limits := Limits{CharsPerSecond: 15, MinReadingTime: 1, MaxWPM: 120}
	text, reason := Fit("uno dos tres cuatro cinco seis siete", 6, 2, limits, 3)
	if reason != "" || text != "uno dos tres cuatro." {
		t.Fatalf("expected re-truncation to four words, got %q (%s)", text, reason)
	}

	text, reason = Fit("uno dos tres cuatro cinco seis", 6, 2, limits, 1)
	if text != "" || !strings.Contains(reason, "words per minute") {
		t.Fatalf("expected drop after retries, got %q (%s)", text, reason)
	}

	text, reason = Fit("Sí.", 5, 3, limits, 3)
	if text != "" || !strings.Contains(reason, "reading time") {
		t.Fatalf("expected reading time drop, got %q (%s)", text, reason)
	}

	if _, reason := Fit("   ", 5, 3, limits, 3); reason != "empty description" {
		t.Fatalf("expected empty description, got %q", reason)
	}
}

func TestScheduleSkipsSceneWhenGeneratorFails(t *testing.T) {
	scenes := []scene.Interval{{Start: 0, End: 6}, {Start: 6, End: 14}}
	windows := []silence.Interval{{Start: 0.5, End: 4}, {Start: 7, End: 11}}

	calls := map[int]int{}
	gen := GeneratorFunc(func(_ context.Context, sc SceneContext) (string, error) {
		calls[sc.Index]++
		if sc.Index == 0 {
			return "", services.New(services.KindAIService, "describe", "", "upstream 503")
		}
		return "un coche se aleja por la carretera", nil
	})
	var progress []int
	s := New(defaultOptions(), logging.NewNop(),
		WithRetryPolicy(noSleep()),
		WithRateLimiter(services.NewRateLimiter(6000)),
		WithProgress(func(done, _ int) { progress = append(progress, done) }),
	)
	cues, err := s.Schedule(context.Background(), scenes, windows, gen)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if len(cues) != 1 || cues[0].SceneIndex != 1 {
		t.Fatalf("expected only the second scene, got %+v", cues)
	}
	if calls[0] != 3 || calls[1] != 1 {
		t.Fatalf("unexpected generator calls: %v", calls)
	}
	if !reflect.DeepEqual(progress, []int{1, 2}) {
		t.Fatalf("unexpected progress: %v", progress)
	}
}

func TestScheduleDoesNotRetryValidationErrors(t *testing.T) {
	calls := 0
	gen := GeneratorFunc(func(context.Context, SceneContext) (string, error) {
		calls++
		return "", services.New(services.KindValidation, "describe", services.CodeMissingCredentials, "no api key")
	})
	s := New(defaultOptions(), logging.NewNop(), WithRetryPolicy(noSleep()))
	cues, err := s.Schedule(context.Background(), []scene.Interval{{Start: 0, End: 5}}, []silence.Interval{{Start: 0, End: 3}}, gen)
	if err != nil || len(cues) != 0 || calls != 1 {
		t.Fatalf("cues=%v err=%v calls=%d", cues, err, calls)
	}
}

func TestScheduleReturnsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := GeneratorFunc(func(context.Context, SceneContext) (string, error) {
		cancel()
		return "", context.Canceled
	})
	s := New(defaultOptions(), logging.NewNop(), WithRetryPolicy(noSleep()))
	_, err := s.Schedule(ctx, []scene.Interval{{Start: 0, End: 5}}, []silence.Interval{{Start: 0, End: 3}}, gen)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestScheduleSendsKeyframeAtSceneMidpoint(t *testing.T) {
	var at float64
	keyframes := func(_ context.Context, seconds float64) ([]byte, error) {
		at = seconds
		return []byte{0xff, 0xd8}, nil
	}
	var got []byte
	gen := GeneratorFunc(func(_ context.Context, sc SceneContext) (string, error) {
		got = sc.Keyframe
		return "una calle vacía al amanecer", nil
	})
	s := New(defaultOptions(), logging.NewNop(), WithKeyframes(keyframes))
	if _, err := s.Schedule(context.Background(), []scene.Interval{{Start: 2, End: 8}}, []silence.Interval{{Start: 2, End: 5}}, gen); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if at != 5 || !bytes.Equal(got, []byte{0xff, 0xd8}) {
		t.Fatalf("keyframe at %v, bytes %v", at, got)
	}
}

func TestExportScriptAndSRT(t *testing.T) {
	cues := []Cue{
		{Window: silence.Interval{Start: 1, End: 4}, Text: "Amanece.", SynthesizedDuration: 1.5},
		{Window: silence.Interval{Start: 10, End: 13}, Text: "Un tren llega."},
	}
	var buf bytes.Buffer
	if err := WriteScript(&buf, cues); err != nil {
		t.Fatalf("WriteScript: %v", err)
	}
	var entries []ScriptEntry
	if err := json.Unmarshal(buf.Bytes(), &entries); err != nil {
		t.Fatalf("decode script: %v", err)
	}
	want := []ScriptEntry{{Start: 1, End: 2.5, Text: "Amanece."}, {Start: 10, End: 13, Text: "Un tren llega."}}
	if !reflect.DeepEqual(entries, want) {
		t.Fatalf("got %+v want %+v", entries, want)
	}

	path := filepath.Join(t.TempDir(), "descriptions.srt")
	if err := WriteSRTFile(path, cues); err != nil {
		t.Fatalf("WriteSRTFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "00:00:01,000 --> 00:00:02,500\nAmanece.") {
		t.Fatalf("unexpected srt: %q", data)
	}
}

func TestScheduleWithoutWindowsYieldsNoCues(t *testing.T) {
	scenes := []scene.Interval{{Start: 0, End: 5, Confidence: 1}, {Start: 5, End: 12, Confidence: 0.8}}
	gen := GeneratorFunc(func(context.Context, SceneContext) (string, error) {
		t.Fatal("generator called without any silence window")
		return "", nil
	})
	cues, err := New(defaultOptions(), logging.NewNop()).Schedule(context.Background(), scenes, nil, gen)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if len(cues) != 0 {
		t.Fatalf("expected no cues, got %+v", cues)
	}
}

func TestCueListJSONRoundTrip(t *testing.T) {
	cues := []Cue{
		{
			SceneIndex: 0,
			Scene:      scene.Interval{Start: 0, End: 5, Confidence: 1},
			Window:     silence.Interval{Start: 1.5, End: 4.25},
			Text:       "una mujer abre la puerta.",
			MaxWords:   8,
		},
		{
			SceneIndex:          3,
			Scene:               scene.Interval{Start: 12, End: 20, Confidence: 0.4},
			Window:              silence.Interval{Start: 13, End: 15.5},
			Text:                "llueve sobre la ciudad.",
			MaxWords:            7,
			SynthesizedDuration: 2.75,
			ComplianceWarning:   "clip 2.75s exceeds window 2.50s after 3 shortening attempts",
		},
	}
	data, err := json.Marshal(cues)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded []Cue
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(decoded, cues) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", decoded, cues)
	}
}

func TestScheduleConsultsGateBeforeEachScene(t *testing.T) {
	scenes := []scene.Interval{{Start: 0, End: 5, Confidence: 1}, {Start: 5, End: 12, Confidence: 0.6}}
	windows := []silence.Interval{{Start: 1, End: 4}, {Start: 6, End: 10}}

	var order []string
	gen := GeneratorFunc(func(_ context.Context, sc SceneContext) (string, error) {
		order = append(order, "generate")
		return "una puerta se abre.", nil
	})
	gate := func(context.Context) error {
		order = append(order, "gate")
		return nil
	}
	cues, err := New(defaultOptions(), logging.NewNop(), WithGate(gate)).Schedule(context.Background(), scenes, windows, gen)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if len(cues) != 2 {
		t.Fatalf("expected two cues, got %+v", cues)
	}
	want := []string{"gate", "generate", "gate", "generate"}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("got call order %v want %v", order, want)
	}

	held := errors.New("held")
	_, err = New(defaultOptions(), logging.NewNop(), WithGate(func(context.Context) error { return held })).
		Schedule(context.Background(), scenes, windows, gen)
	if !errors.Is(err, held) {
		t.Fatalf("expected gate error, got %v", err)
	}
}
