package queue

import (
	"reflect"
	"testing"
	"time"
)

func TestMessageWireFormat(t *testing.T) {
	msg := NewMessage("analysis-123", "", time.Date(2026, 1, 30, 23, 0, 0, 0, time.FixedZone("CET", 3600)))

	payload, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode message: %v", err)
	}
	want := `{"analysisId":"analysis-123","enqueuedAt":"2026-01-30T22:00:00Z","version":1}`
	if string(payload) != want {
		t.Fatalf("payload = %s, want %s", payload, want)
	}
}

func TestDecodeMessage(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    Message
		wantErr bool
	}{
		{"current", `{"analysisId":"a1","requestId":"r1","enqueuedAt":"2026-01-30T22:00:00Z","version":1}`, Message{AnalysisID: "a1", RequestID: "r1", EnqueuedAt: "2026-01-30T22:00:00Z", Version: 1}, false},
		{"unknown fields ignored", `{"analysisId":"a2","priority":"high"}`, Message{AnalysisID: "a2"}, false},
		{"not json", `analysis a3`, Message{}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeMessage([]byte(tc.in))
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %+v want %+v", got, tc.want)
			}
		})
	}
}
