package llm

import (
	"context"
	"testing"
)

func TestParseNewsVerdict(t *testing.T) {
	response := `{"sentiment":"BULLISH","impact":"HIGH","confidence":82,"target_gain_percent":5,"suggested_action":"BUY","reasoning":"major exchange listing"}`

	v, err := ParseNewsVerdict(response)
	if err != nil {
		t.Fatalf("ParseNewsVerdict: %v", err)
	}
	if v.Sentiment != SentimentBullish || v.Impact != ImpactHigh {
		t.Errorf("got %s/%s, want BULLISH/HIGH", v.Sentiment, v.Impact)
	}
	if v.Confidence != 82 || v.TargetGainPercent != 5 {
		t.Errorf("got confidence %v target %v", v.Confidence, v.TargetGainPercent)
	}
	if v.SuggestedAction != ActionBuy {
		t.Errorf("action = %s, want BUY", v.SuggestedAction)
	}
}

func TestParseNewsVerdictStripsCodeBlock(t *testing.T) {
	response := "```json\n{\"sentiment\":\"NEUTRAL\",\"impact\":\"LOW\",\"confidence\":20,\"target_gain_percent\":0,\"suggested_action\":\"FOLD\",\"reasoning\":\"recycled story\"}\n```"

	v, err := ParseNewsVerdict(response)
	if err != nil {
		t.Fatalf("ParseNewsVerdict: %v", err)
	}
	if v.SuggestedAction != ActionFold {
		t.Errorf("action = %s, want FOLD", v.SuggestedAction)
	}
}

func TestParseNewsVerdictNormalizesCase(t *testing.T) {
	response := `{"sentiment":"bullish","impact":"medium","confidence":70,"target_gain_percent":3,"suggested_action":"buy","reasoning":"x"}`

	v, err := ParseNewsVerdict(response)
	if err != nil {
		t.Fatalf("ParseNewsVerdict: %v", err)
	}
	if v.Sentiment != SentimentBullish || v.SuggestedAction != ActionBuy {
		t.Errorf("case not normalized: %s/%s", v.Sentiment, v.SuggestedAction)
	}
}

func TestParseNewsVerdictRejectsBadInput(t *testing.T) {
	cases := []struct {
		name     string
		response string
	}{
		{"not json", "the market looks bullish to me"},
		{"bad sentiment", `{"sentiment":"MOON","impact":"HIGH","confidence":80,"suggested_action":"BUY"}`},
		{"bad impact", `{"sentiment":"BULLISH","impact":"EXTREME","confidence":80,"suggested_action":"BUY"}`},
		{"bad action", `{"sentiment":"BULLISH","impact":"HIGH","confidence":80,"suggested_action":"HODL"}`},
		{"confidence out of range", `{"sentiment":"BULLISH","impact":"HIGH","confidence":150,"suggested_action":"BUY"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseNewsVerdict(tc.response); err == nil {
				t.Error("expected parse rejection")
			}
		})
	}
}

func TestStripMarkdownCodeBlock(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{`{"a":1}`, `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tc := range cases {
		if got := stripMarkdownCodeBlock(tc.in); got != tc.want {
			t.Errorf("stripMarkdownCodeBlock(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestAnalyzeNewsUnconfiguredReturnsNil(t *testing.T) {
	a := NewNewsAnalyzer(NewClient(&ClientConfig{Provider: ProviderClaude}), nil)
	if v := a.AnalyzeNews(context.Background(), "SOLUSDT", "headline", 100, 50); v != nil {
		t.Error("expected nil verdict without API key")
	}
}
