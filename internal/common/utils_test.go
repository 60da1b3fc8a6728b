package common

import (
	"reflect"
	"testing"

	"github.com/dtnitsch/mr-wordcount/pkg/mapreduce"
)

func TestParseReducerList(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []int
		wantErr bool
	}{
		{name: "single", input: "1", want: []int{1}},
		{name: "list with spaces", input: "1, 2 ,4", want: []int{1, 2, 4}},
		{name: "duplicates dropped", input: "2,1,2", want: []int{2, 1}},
		{name: "trailing comma", input: "1,2,", want: []int{1, 2}},
		{name: "zero", input: "0,1", wantErr: true},
		{name: "not a number", input: "two", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReducerList(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseReducerList(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseReducerList(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestResultFingerprint(t *testing.T) {
	one := [][]mapreduce.ResultPair{{
		{Key: "big", Count: 1}, {Key: "data", Count: 1}, {Key: "hello", Count: 2},
	}}
	two := [][]mapreduce.ResultPair{
		{{Key: "hello", Count: 2}},
		{{Key: "big", Count: 1}, {Key: "data", Count: 1}},
	}
	if ResultFingerprint(one) != ResultFingerprint(two) {
		t.Error("same counts in different partitions produced different fingerprints")
	}

	changed := [][]mapreduce.ResultPair{{
		{Key: "big", Count: 1}, {Key: "data", Count: 2}, {Key: "hello", Count: 2},
	}}
	if ResultFingerprint(one) == ResultFingerprint(changed) {
		t.Error("different counts produced the same fingerprint")
	}
}

func TestFilterResultFields(t *testing.T) {
	type row struct {
		JobID    string `json:"job_id"`
		Reducers int    `json:"reducers"`
		State    string `json:"state"`
	}
	r := row{JobID: "abc", Reducers: 2, State: "COMPLETED"}

	got := FilterResultFields(r, "job_id, reducers")
	want := map[string]interface{}{"job_id": "abc", "reducers": float64(2)}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FilterResultFields() = %v, want %v", got, want)
	}

	if all := FilterResultFields(r, ""); len(all) != 3 {
		t.Errorf("FilterResultFields() without fields = %v, want all 3", all)
	}
}
