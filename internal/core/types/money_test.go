package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundMoney_HalfUp(t *testing.T) {
	cases := map[string]string{
		"1.005":  "1.01",
		"1.004":  "1",
		"2.675":  "2.68",
		"90":     "90",
		"33.335": "33.34",
	}
	for in, want := range cases {
		got := RoundMoney(MustMoney(in))
		assert.True(t, got.Equal(MustMoney(want)), "round %s: got %s want %s", in, got, want)
	}
}
