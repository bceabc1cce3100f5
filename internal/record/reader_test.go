package record

import (
	"errors"
	"strings"
	"testing"
)

const sampleCSV = `timestamp,cid,cname,ocm_state,ocm_inflight_states,found_verifier_s3_logs,found_all_tests_passed,found_egress_failures,log_download_url
2023-06-01T00:00:00Z,c1,one,ready,"[""passed""]",true,true,false,https://logs.example.com/c1
2023-06-01T06:00:00Z,c1,one,ready,"[""passed""]",true,false,true,https://logs.example.com/c1b
2023-06-02T00:00:00Z,c2,,installing,,,,,
`

func TestReader_ReadAll(t *testing.T) {
	r, err := NewReader(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	obs, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(obs) != 3 {
		t.Fatalf("got %d observations, want 3", len(obs))
	}
	if obs[1].FoundEgressFail != True || obs[1].LogURL != "https://logs.example.com/c1b" {
		t.Errorf("unexpected second row: %+v", obs[1])
	}
	if obs[2].State != StateInstalling || obs[2].FoundAllPassed != Unknown {
		t.Errorf("unexpected third row: %+v", obs[2])
	}
}

func TestReader_ParseErrorCarriesLine(t *testing.T) {
	in := "timestamp,cid,found_all_tests_passed\n" +
		"2023-06-01T00:00:00Z,c1,true\n" +
		"2023-06-01T00:00:00Z,,true\n"
	r, err := NewReader(strings.NewReader(in))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	_, err = r.ReadAll()
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if pe.Line != 3 {
		t.Errorf("Line = %d, want 3", pe.Line)
	}
	if !strings.Contains(err.Error(), "line 3") {
		t.Errorf("error message should mention line: %v", err)
	}
}

func TestReader_MissingRequiredColumn(t *testing.T) {
	if _, err := NewReader(strings.NewReader("timestamp,cname\n")); err == nil {
		t.Fatal("expected error for missing cid column")
	}
	if _, err := NewReader(strings.NewReader("")); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestReader_OptionalColumnsAbsent(t *testing.T) {
	r, err := NewReader(strings.NewReader("\ufefftimestamp,cid\n2023-06-01T00:00:00Z,c9\n"))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	o, err := r.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if o.ClusterID != "c9" || o.FoundEgressFail.Known() {
		t.Errorf("unexpected observation: %+v", o)
	}
}
