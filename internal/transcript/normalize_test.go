package transcript

import (
	"reflect"
	"testing"
	"time"

	"github.com/nicetoya86/ticket/internal/storage/models"
)

func TestDedupeLines(t *testing.T) {
	got := DedupeLines([]string{"a  b", "c", "a b", " c "})
	want := []string{"a  b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DedupeLines() = %q, want %q", got, want)
	}
}

func TestDedupeRecords(t *testing.T) {
	records := []models.InquiryRecord{
		{TicketID: "1", TextValue: ""},
		{TicketID: "1", TextValue: ""},
		{TicketID: "1", TextValue: "같은 문의"},
		{TicketID: "1", TextValue: "같은  문의"},
		{TicketID: "2", TextValue: "같은 문의"},
		{TicketID: "3", TicketName: "병원A", TextValue: "예약"},
		{TicketID: "4", TicketName: "병원A", TextValue: "예약"},
	}

	out := DedupeRecords(records)
	if len(out) != 5 {
		t.Fatalf("expected 5 records, got %d: %+v", len(out), out)
	}
	if out[0].TextValue != "" || out[1].TextValue != "" {
		t.Error("empty records must be kept")
	}
	if out[3].TicketID != "2" || out[4].TicketID != "3" {
		t.Errorf("unexpected order: %+v", out)
	}
}

func TestMaskPII(t *testing.T) {
	in := "연락처 010-1234-5678 계좌 1234567890123 메일 a.b@test.com 링크 https://x.y/z"
	want := "연락처 **** 계좌 **** 메일 ***@*** 링크 [link]"
	if got := MaskPII(in); got != want {
		t.Errorf("MaskPII() = %q, want %q", got, want)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("가나다라", 2); got != "가나" {
		t.Errorf("Truncate() = %q", got)
	}
	if got := Truncate("abc", 0); got != "abc" {
		t.Errorf("Truncate() with no limit = %q", got)
	}
}

func TestRenderMessages(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 5, 0, time.UTC)
	msgs := []Message{
		{SenderRole: "user", Text: "환불해주세요", CreatedAt: base},
		{SenderRole: "manager", Text: "확인할게요", CreatedAt: base.Add(5 * time.Second)},
		{SenderRole: "bot", Text: "안내"},
		{SenderRole: "user", Text: "   "},
	}

	got := RenderMessages(msgs)
	want := "(09:00:05) 고객: 환불해주세요\n(09:00:10) 매니저: 확인할게요\n여신BOT: 안내"
	if got != want {
		t.Fatalf("RenderMessages() = %q, want %q", got, want)
	}
	if customer := ExtractCustomerText(got); customer != "환불해주세요" {
		t.Errorf("rendered chat customer text = %q", customer)
	}
}
