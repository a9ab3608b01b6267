package query

import "testing"

func TestParseParam(t *testing.T) {
	cases := []struct {
		in  string
		out any
	}{
		{"30", int64(30)},
		{"010", int64(10)},
		{"-2.5", -2.5},
		{"TRUE", true},
		{"false", false},
		{"null", nil},
		{"a%", "a%"},
	}
	for _, c := range cases {
		if got := ParseParam(c.in); got != c.out {
			t.Errorf("ParseParam(%q) = %#v, expected %#v", c.in, got, c.out)
		}
	}
}
