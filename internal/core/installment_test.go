package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseInstallment(t *testing.T) {
	tests := []struct {
		label string
		want  Installment
	}{
		{"parcela 3/12", Installment{3, 12}},
		{"3/12", Installment{3, 12}},
		{"3 12", Installment{3, 12}},
		{"", Installment{0, 0}},
		{"abc/def", Installment{0, 0}},
		{"5/", Installment{5, 0}},
		{"  PARCELA  07 / 10 ", Installment{7, 10}},
		{"Parcela02/06", Installment{2, 6}},
		{"3x/12y", Installment{3, 12}},
		{"/12", Installment{0, 12}},
		{"parcela", Installment{0, 0}},
		{"   ", Installment{0, 0}},
		{"-1/3", Installment{-1, 3}},
		{"1//3", Installment{1, 3}},
		{"1 / 3", Installment{1, 3}},
		{"99999999999999999999999/2", Installment{0, 2}},
		{"parcela única", Installment{0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseInstallment(tt.label))
		})
	}
}

func TestInstallmentIsOpen(t *testing.T) {
	assert.False(t, Installment{0, 0}.IsOpen())
	assert.False(t, Installment{5, 0}.IsOpen())
	assert.False(t, Installment{13, 12}.IsOpen())
	assert.False(t, Installment{-1, 3}.IsOpen())
	assert.True(t, Installment{3, 12}.IsOpen())
	assert.True(t, Installment{12, 12}.IsOpen())
	assert.True(t, Installment{1, 1}.IsOpen())
}

func TestInstallmentTier(t *testing.T) {
	tests := []struct {
		in        Installment
		tier      Tier
		remaining int
	}{
		{Installment{12, 12}, TierFinal, 0},
		{Installment{11, 12}, TierPenultimate, 1},
		{Installment{3, 12}, TierOther, 9},
		{Installment{1, 1}, TierFinal, 0},
		{Installment{1, 2}, TierPenultimate, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.tier, tt.in.Tier(), "%+v", tt.in)
		assert.Equal(t, tt.remaining, tt.in.Remaining(), "%+v", tt.in)
	}
	assert.Equal(t, "final", TierFinal.String())
	assert.Equal(t, "unknown", Tier(0).String())
}
