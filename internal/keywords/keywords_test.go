package keywords

import (
	"reflect"
	"testing"
)

func TestBuildPhrases_RanksByFrequency(t *testing.T) {
	got := BuildPhrases("환불 문의 환불 문의 배송 문의", 10)
	if len(got) == 0 {
		t.Fatal("expected phrases")
	}
	if got[0] != (PhraseCount{Phrase: "환불 문의", Freq: 2}) {
		t.Errorf("expected top phrase 환불 문의 x2, got %+v", got[0])
	}

	freq := make(map[string]int)
	for _, p := range got {
		freq[p.Phrase] = p.Freq
	}
	for _, phrase := range []string{"문의 환불", "문의 배송"} {
		if freq[phrase] != 1 {
			t.Errorf("expected %q once, got %d", phrase, freq[phrase])
		}
	}
	// ties keep first-seen order
	if got[1].Phrase != "환불 문의 환불" || got[2].Phrase != "문의 환불" {
		t.Errorf("unexpected tie order: %+v", got[1:3])
	}
}

func TestBuildPhrases_Deterministic(t *testing.T) {
	text := "쿠폰 적용이 안돼요\n쿠폰 적용이 안돼요\n예약 변경 문의드립니다 https://example.com/a"
	a := BuildPhrases(text, 20)
	b := BuildPhrases(text, 20)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("rankings differ:\n%v\n%v", a, b)
	}
}

func TestBuildPhrases_Filters(t *testing.T) {
	tests := map[string]string{
		"all stopwords": "그리고 에서",
		"numeric line":  "12345678",
		"short tokens":  "가 나다라",
	}
	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			if got := BuildPhrases(text, 10); len(got) != 0 {
				t.Errorf("expected no phrases, got %+v", got)
			}
		})
	}
}

func TestBuildPhrases_StripsURLs(t *testing.T) {
	for _, p := range BuildPhrases("링크 https://x.io/path 확인 부탁", 50) {
		if p.Phrase == "링크 https" || p.Phrase == "https x" {
			t.Errorf("url fragment in n-gram: %q", p.Phrase)
		}
	}
}

func TestBuildPhrases_FullLines(t *testing.T) {
	text := "결제가 계속 실패해요!\n결제가 계속 실패해요"
	got := BuildPhrases(text, 50)
	found := false
	for _, p := range got {
		if p.Phrase == "결제가 계속 실패해요" {
			found = true
			// counted once per trigram and once per line
			if p.Freq != 4 {
				t.Errorf("expected freq 4, got %d", p.Freq)
			}
		}
	}
	if !found {
		t.Error("expected repeated full line as a phrase")
	}
}

func TestBuildPhrases_Limit(t *testing.T) {
	text := ""
	for i := 0; i < 80; i++ {
		text += "토큰" + string(rune('가'+i)) + " "
	}
	if got := BuildPhrases(text, 1000); len(got) != MaxPhrases {
		t.Errorf("expected cap of %d, got %d", MaxPhrases, len(got))
	}
	if got := BuildPhrases(text, 3); len(got) != 3 {
		t.Errorf("expected 3, got %d", len(got))
	}
	if got := BuildPhrases("   ", 3); len(got) != 0 {
		t.Errorf("expected no phrases for blank input, got %v", got)
	}
}

func TestBuilder_ExtraStopwords(t *testing.T) {
	b := NewBuilder("환불")
	for _, k := range b.RankTokenFrequency("환불 환불 쿠폰", 10) {
		if k.Keyword == "환불" {
			t.Error("custom stopword should be skipped")
		}
	}
}

func TestRankTokenFrequency(t *testing.T) {
	text := "<p>쿠폰 적용 오류</p> 쿠폰 COUPON coupon 2024 에서 a"
	got := RankTokenFrequency(text, 10)
	if len(got) < 2 {
		t.Fatalf("expected keywords, got %v", got)
	}
	if got[0].Keyword != "쿠폰" || got[0].Freq != 2 {
		t.Errorf("expected 쿠폰 x2 first, got %+v", got[0])
	}
	for _, k := range got {
		switch k.Keyword {
		case "2024", "에서", "a", "p":
			t.Errorf("unexpected keyword %q", k.Keyword)
		case "coupon":
			if k.Freq != 2 {
				t.Errorf("expected lower-cased coupon twice, got %d", k.Freq)
			}
		}
	}
}

func TestTokenize_NFKC(t *testing.T) {
	// full-width latin folds to ascii
	got := Tokenize("ＡＢＣ 테스트")
	want := []string{"abc", "테스트"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize() = %v, want %v", got, want)
	}
}

func TestTokenize_KeepsAbbreviationsWhole(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"a.b.c 3.14 U.S.A. 환불문의", []string{"abc", "314", "usa", "환불문의"}},
		{"환불 되나요?", []string{"환불", "되나요"}},
	}
	for _, tt := range tests {
		if got := Tokenize(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Tokenize(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
