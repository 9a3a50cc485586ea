package prediction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGrade(t *testing.T) {
	tests := []struct {
		name    string
		dir     Direction
		current float64
		want    Status
	}{
		{"buy up", DirectionBuy, 101, StatusCorrect},
		{"buy down", DirectionBuy, 99, StatusWrong},
		{"buy flat", DirectionBuy, 100, StatusWrong},
		{"sell down", DirectionSell, 99, StatusCorrect},
		{"sell up", DirectionSell, 101, StatusWrong},
		{"sell flat", DirectionSell, 100, StatusWrong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Prediction{Direction: tt.dir, EntryPrice: 100}
			assert.Equal(t, tt.want, p.Grade(tt.current))
		})
	}
}
