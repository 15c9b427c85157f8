package llm

import "testing"

func TestStripThinkingTags(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"plain answer", "plain answer"},
		{"<think>hmm</think>answer", "answer"},
		{"a<think>x</think>b<think>y</think>c", "abc"},
		{"<think>never closed", ""},
		{"before <think>gone", "before"},
	}
	for _, tc := range cases {
		if got := StripThinkingTags(tc.in); got != tc.want {
			t.Errorf("StripThinkingTags(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
