package publisher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubjectToken(t *testing.T) {
	cases := map[string]string{
		"Bus":          "bus",
		"Kia":          "kia",
		" Coaster ":    "coaster",
		"mini bus":     "mini_bus",
		"a.b>c*d/e":    "a_b_c_d_e",
		"":             "_",
		"\tMicro Bus ": "micro_bus",
	}
	for in, want := range cases {
		assert.Equal(t, want, subjectToken(in), "input %q", in)
	}
}
