package quality

import "testing"

func TestAcceptRejectsShortText(t *testing.T) {
	for _, text := range []string{"", "a", "hi", "  x  "} {
		if Accept(text) {
			t.Errorf("Accept(%q) = true, want false", text)
		}
	}
}

func TestAcceptRejectsHallucinations(t *testing.T) {
	cases := []string{
		"Thanks for watching!",
		"please subscribe to my channel",
		"시청해 주셔서 감사합니다",
		"[Music]",
	}
	for _, text := range cases {
		if Accept(text) {
			t.Errorf("Accept(%q) = true, want false", text)
		}
	}
}

func TestAcceptRejectsNoise(t *testing.T) {
	cases := []string{
		"!!!???...",          // punctuation only
		"1234567",            // digits only
		"aaaaaa",             // repeated rune
		"......hello......",  // low meaningful ratio
		"cat",                // single short word
	}
	for _, text := range cases {
		if Accept(text) {
			t.Errorf("Accept(%q) = true, want false", text)
		}
	}
}

func TestAcceptRejectsFillerHeavyText(t *testing.T) {
	for _, text := range []string{"uh um ah", "um yes uh uh", "어 음 그"} {
		if Accept(text) {
			t.Errorf("Accept(%q) = true, want false", text)
		}
	}
}

func TestAcceptRejectsProfanity(t *testing.T) {
	for _, text := range []string{"what the FUCK is this", "그 사람 진짜 병신 같아"} {
		if Accept(text) {
			t.Errorf("Accept(%q) = true, want false", text)
		}
	}
}

func TestAcceptPassesNormalSpeech(t *testing.T) {
	cases := []string{
		"Hello, how are you today?",
		"The quarterly numbers look better than expected.",
		"안녕하세요, 오늘 회의를 시작하겠습니다.",
		"Let's move on to the next agenda item.",
	}
	for _, text := range cases {
		if !Accept(text) {
			t.Errorf("Accept(%q) = false, want true", text)
		}
	}
}

func TestAcceptIsDeterministic(t *testing.T) {
	inputs := []string{"Hello there, everyone.", "uh um ah", "aaaa", "good morning team"}
	for _, text := range inputs {
		first := Accept(text)
		for i := 0; i < 10; i++ {
			if Accept(text) != first {
				t.Fatalf("Accept(%q) changed verdict between calls", text)
			}
		}
	}
}
