package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageRequest_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   PageRequest
		want PageRequest
	}{
		{"vacía", PageRequest{}, PageRequest{Limit: 20}},
		{"negativos", PageRequest{Limit: -5, Offset: -1}, PageRequest{Limit: 20}},
		{"sobre el máximo", PageRequest{Limit: 500, Offset: 40}, PageRequest{Limit: 100, Offset: 40}},
		{"dentro del rango", PageRequest{Limit: 7, Offset: 3}, PageRequest{Limit: 7, Offset: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize())
		})
	}
}
