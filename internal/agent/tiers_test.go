package agent

import "testing"

func TestAnswerFromChunk(t *testing.T) {
	cases := []struct {
		chunk string
		want  string
		ok    bool
	}{
		{"P: what are your hours?\nR: 8am-8pm", "8am-8pm", true},
		{"P: do you deliver?\nR:  yes, within 5km  ", "yes, within 5km", true},
		{"Product: Croissant\nPrice: 1200", "", false},
		{"P: odd chunk\nR:", "", false},
	}
	for _, tc := range cases {
		got, ok := answerFromChunk(tc.chunk)
		if got != tc.want || ok != tc.ok {
			t.Errorf("answerFromChunk(%q) = %q, %v; want %q, %v", tc.chunk, got, ok, tc.want, tc.ok)
		}
	}
}
