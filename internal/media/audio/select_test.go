package audio

import (
	"testing"

	"adscribe/internal/media/ffprobe"
)

func TestSelectPrefersRequestedLanguage(t *testing.T) {
	streams := []ffprobe.Stream{
		{Index: 0, CodecType: "video"},
		{Index: 1, CodecType: "audio", Channels: 6, Tags: map[string]string{"language": "eng"}, Disposition: map[string]int{"default": 1}},
		{Index: 2, CodecType: "audio", Channels: 2, Tags: map[string]string{"language": "spa"}},
	}
	sel := Select(streams, "es")
	if sel.PrimaryIndex != 2 || sel.Ordinal != 1 || sel.MapSpec() != "0:a:1" {
		t.Fatalf("expected spanish track, got %+v", sel)
	}
	if len(sel.Alternatives) != 1 || sel.Alternatives[0] != 1 {
		t.Fatalf("unexpected alternatives: %v", sel.Alternatives)
	}
}

func TestSelectSkipsCommentary(t *testing.T) {
	streams := []ffprobe.Stream{
		{Index: 1, CodecType: "audio", Channels: 2, Tags: map[string]string{"language": "en", "title": "Director Commentary"}},
		{Index: 2, CodecType: "audio", ChannelLayout: "5.1(side)", Tags: map[string]string{"language": "en"}},
	}
	sel := Select(streams, "en-US")
	if sel.PrimaryIndex != 2 {
		t.Fatalf("commentary must not be primary, got %+v", sel)
	}
	if sel.PrimaryLabel() == "" {
		t.Fatal("expected label")
	}
}

func TestSelectFallsBackToDefault(t *testing.T) {
	streams := []ffprobe.Stream{
		{Index: 1, CodecType: "audio", Channels: 2},
		{Index: 2, CodecType: "audio", Channels: 2, Disposition: map[string]int{"default": 1}},
	}
	if sel := Select(streams, "fr"); sel.PrimaryIndex != 2 {
		t.Fatalf("expected default-flagged track, got %+v", sel)
	}
}

func TestSelectWithoutAudio(t *testing.T) {
	sel := Select([]ffprobe.Stream{{Index: 0, CodecType: "video"}}, "es")
	if sel.Found() || sel.MapSpec() != "0:a:0" {
		t.Fatalf("unexpected selection: %+v", sel)
	}
}

func TestChannelCountFromLayout(t *testing.T) {
	cases := map[string]int{"stereo": 2, "mono": 1, "5.1(side)": 6, "7.1": 8, "": 0}
	for layout, want := range cases {
		if got := channelCount(ffprobe.Stream{ChannelLayout: layout}); got != want {
			t.Errorf("channelCount(%q) = %d, want %d", layout, got, want)
		}
	}
}
