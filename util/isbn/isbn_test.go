package isbn

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"978-0-13-468599-1", "9780134685991"},
		{"978 0 13 468599 1", "9780134685991"},
		{"0-8044-2957-x", "080442957X"},
		{"9780134685991", "9780134685991"},
		{"  978-0-13  ", "978013"},
		{"", ""},
		{"---", ""},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Errorf("Normalize(%q) = %q; want %q", c.in, got, c.want)
		}
	}
}
