package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nicetoya86/ticket/internal/ingestion"
	"github.com/nicetoya86/ticket/internal/keywords"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

const sampleChat = `고객: 환불 문의 드립니다
고객: 결제 취소가 안돼요
상담사: 확인해보겠습니다
고객: 환불 문의 드립니다`

func TestCustomerCommand(t *testing.T) {
	out, err := execute(t, sampleChat, "customer")
	if err != nil {
		t.Fatalf("customer: %v", err)
	}
	if strings.Contains(out, "확인해보겠습니다") {
		t.Errorf("agent line leaked into output: %q", out)
	}
	if !strings.Contains(out, "결제 취소가 안돼요") {
		t.Errorf("customer line missing: %q", out)
	}
}

func TestCustomerCommandReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.txt")
	if err := os.WriteFile(path, []byte(sampleChat), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "", "customer", "--file", path)
	if err != nil {
		t.Fatalf("customer --file: %v", err)
	}
	if !strings.Contains(out, "환불 문의 드립니다") {
		t.Errorf("output = %q", out)
	}
}

func TestPhrasesCommand(t *testing.T) {
	out, err := execute(t, sampleChat, "phrases", "--limit", "5")
	if err != nil {
		t.Fatalf("phrases: %v", err)
	}
	var got []keywords.PhraseCount
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(got) == 0 || len(got) > 5 {
		t.Fatalf("got %d phrases, want 1..5", len(got))
	}
}

func TestTagCommand(t *testing.T) {
	out, err := execute(t, "", "tag", `["환불", "결제"]`)
	if err != nil {
		t.Fatalf("tag: %v", err)
	}
	var got tagResult
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if got.Normalized != "환불" {
		t.Errorf("normalized = %q, want 환불", got.Normalized)
	}
	if len(got.Parts) != 2 {
		t.Errorf("parts = %v, want 2 entries", got.Parts)
	}
}

func TestParseDay(t *testing.T) {
	start, err := parseDay("2024-03-01", false)
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2024, 2, 29, 15, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Errorf("start = %v, want %v", start.UTC(), want)
	}
	end, err := parseDay("2024-03-01", true)
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2024, 3, 1, 14, 59, 59, 0, time.UTC); !end.Equal(want) {
		t.Errorf("end = %v, want %v", end.UTC(), want)
	}
	if _, err := parseDay("03/01/2024", false); err == nil {
		t.Error("expected error for malformed date")
	}
	if zero, _ := parseDay("", true); !zero.IsZero() {
		t.Errorf("empty day = %v, want zero", zero)
	}
}

type fakeIngester struct {
	zendeskErr error
	channelErr error
	calls      []string
}

func (f *fakeIngester) IngestZendesk(ctx context.Context) (*ingestion.Report, error) {
	f.calls = append(f.calls, "zendesk")
	if f.zendeskErr != nil {
		return nil, f.zendeskErr
	}
	return &ingestion.Report{Source: "zendesk", Tickets: 3}, nil
}

func (f *fakeIngester) IngestChannel(ctx context.Context, from, to time.Time) (*ingestion.Report, error) {
	f.calls = append(f.calls, "channel")
	if f.channelErr != nil {
		return nil, f.channelErr
	}
	return &ingestion.Report{Source: "channel", Conversations: 2}, nil
}

func TestRunIngest(t *testing.T) {
	notConfigured := fmt.Errorf("zendesk: %w", ingestion.ErrNotConfigured)

	tests := []struct {
		name      string
		source    string
		zendesk   error
		wantCalls int
		wantErr   bool
		reports   int
	}{
		{name: "both", source: "", wantCalls: 2, reports: 2},
		{name: "skip unconfigured", source: "", zendesk: notConfigured, wantCalls: 2, reports: 1},
		{name: "named unconfigured fails", source: "zendesk", zendesk: notConfigured, wantCalls: 1, wantErr: true},
		{name: "channel only", source: "channel", wantCalls: 1, reports: 1},
		{name: "unknown source", source: "slack", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeIngester{zendeskErr: tt.zendesk}
			cmd := newRootCmd()
			var out bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetErr(&bytes.Buffer{})

			err := runIngest(context.Background(), cmd, f, tt.source, time.Time{}, time.Time{})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if len(f.calls) != tt.wantCalls {
				t.Errorf("calls = %v, want %d", f.calls, tt.wantCalls)
			}
			if tt.wantErr {
				return
			}
			var reports []ingestion.Report
			if err := json.Unmarshal(out.Bytes(), &reports); err != nil {
				t.Fatalf("decode %q: %v", out.String(), err)
			}
			if len(reports) != tt.reports {
				t.Errorf("reports = %d, want %d", len(reports), tt.reports)
			}
		})
	}
}
