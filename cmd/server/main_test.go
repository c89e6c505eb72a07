package main

import (
	"reflect"
	"testing"
)

func TestParseCampuses(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []int
	}{
		{"default pair", "15,55", []int{15, 55}},
		{"single campus", "55", []int{55}},
		{"spaces tolerated", " 15 , 55 ", []int{15, 55}},
		{"trailing comma tolerated", "15,55,", []int{15, 55}},
		{"empty falls back", "", []int{15, 55}},
		{"garbage falls back", "fifteen,55", []int{15, 55}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseCampuses(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseCampuses(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}
