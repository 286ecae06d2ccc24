package transcript

import (
	"testing"

	"github.com/nicetoya86/ticket/internal/storage/models"
)

func TestExtractCorpus_PhoneCallExcludesWholeTicket(t *testing.T) {
	records := []models.InquiryRecord{
		{TicketID: "1", TextType: models.TextTypeBody, TextValue: "고객: 환불 문의드려요\n수신전화 01012345678"},
		{TicketID: "1", TextType: models.TextTypeComment, TextValue: "고객: 다른 내용도 있어요"},
		{TicketID: "2", TextType: models.TextTypeCommentsBlock, TextValue: "고객: 쿠폰 문의\n매니저: 확인해볼게요"},
	}

	out, stats := Default.ExtractCorpus(records)
	if len(out) != 1 {
		t.Fatalf("expected 1 record, got %d: %+v", len(out), out)
	}
	if out[0].TicketID != "2" || out[0].TextValue != "쿠폰 문의" {
		t.Errorf("unexpected record: %+v", out[0])
	}
	if stats.PhoneCall != 2 {
		t.Errorf("expected 2 phone call exclusions, got %d", stats.PhoneCall)
	}
	if !stats.SpeakerAware {
		t.Error("expected speaker-aware mode")
	}
}

func TestExtractCorpus_PassThroughWithoutLabels(t *testing.T) {
	records := []models.InquiryRecord{
		{TicketID: "1", TextValue: "환불이 안돼요  \n✅ 버튼을 눌러주세요"},
		{TicketID: "2", TextValue: "앱이 자꾸 꺼져요"},
	}

	out, stats := Default.ExtractCorpus(records)
	if stats.SpeakerAware {
		t.Fatal("expected pass-through mode")
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 records, got %d", len(out))
	}
	if out[0].TextValue != "환불이 안돼요" {
		t.Errorf("unexpected cleaned text %q", out[0].TextValue)
	}
}

func TestExtractCorpus_DropsEmptyAndDuplicates(t *testing.T) {
	records := []models.InquiryRecord{
		{TicketID: "1", TextValue: "여신BOT: 안녕하세요\n매니저: 안내드립니다"},
		{TicketID: "2", TextValue: "고객: 예약 변경 가능한가요"},
		{TicketID: "2", TextValue: "고객:   예약 변경   가능한가요"},
	}

	out, stats := Default.ExtractCorpus(records)
	if len(out) != 1 {
		t.Fatalf("expected 1 record, got %d: %+v", len(out), out)
	}
	if stats.Empty != 1 || stats.Duplicate != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestExtractCorpus_ScrubsTicketName(t *testing.T) {
	records := []models.InquiryRecord{
		{TicketID: "9", TicketName: "강남병원", TextValue: "고객: 강남병원 예약 취소하고 싶어요"},
	}
	out := ExtractCustomerCorpus(records)
	if len(out) != 1 {
		t.Fatalf("expected 1 record, got %d", len(out))
	}
	if out[0].TextValue != "예약 취소하고 싶어요" {
		t.Errorf("ticket name leaked: %q", out[0].TextValue)
	}
}

func TestCleanRecords_KeepsAgentDialogue(t *testing.T) {
	records := []models.InquiryRecord{
		{TicketID: "1", TextValue: "여신BOT: 안녕하세요\n고객: 문의\n매니저: 답변"},
		{TicketID: "2", TextValue: "전화구분: 수신전화"},
		{TicketID: "3", TextValue: "처음으로"},
	}
	out := CleanRecords(records)
	if len(out) != 1 {
		t.Fatalf("expected 1 record, got %d", len(out))
	}
	if out[0].TextValue != "고객: 문의\n매니저: 답변" {
		t.Errorf("unexpected text %q", out[0].TextValue)
	}
}

func TestCorpusText(t *testing.T) {
	records := []models.InquiryRecord{
		{TextValue: " a "},
		{TextValue: ""},
		{TextValue: "b"},
	}
	if got := CorpusText(records); got != "a\nb" {
		t.Errorf("CorpusText() = %q", got)
	}
}
