package transcript

import (
	"reflect"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		prior Role
		want  Role
	}{
		{"bot with timestamp", "(10:00:00) 여신BOT: 안내드립니다", RoleUnknown, RoleBot},
		{"bot token", "BOT: 메뉴를 선택해주세요", RoleCustomer, RoleBot},
		{"platform user", "Android User: 쿠폰이 안보여요", RoleUnknown, RoleCustomer},
		{"korean customer marker", "고객: 환불 문의", RoleAgent, RoleCustomer},
		{"visitor", "Visitor: hello", RoleUnknown, RoleCustomer},
		{"role term", "상담사: 확인해드릴게요", RoleCustomer, RoleAgent},
		{"manager english", "Support Manager: checking", RoleUnknown, RoleAgent},
		{"short local name", "김철수: 안내드리겠습니다", RoleCustomer, RoleAgent},
		{"unknown label defaults to agent", "Someone Unknown: reply", RoleCustomer, RoleAgent},
		{"labeled boilerplate", "운영시간: 10:00 ~ 19:00", RoleCustomer, RoleBot},
		{"continuation keeps prior", "두번째 줄입니다", RoleCustomer, RoleCustomer},
		{"continuation of agent", "추가 안내", RoleAgent, RoleAgent},
		{"unattributed leading line", "인사말 없이 시작", RoleUnknown, RoleUnknown},
		{"unattributed boilerplate", "✅ 쿠폰 사용 방법", RoleUnknown, RoleBot},
		{"staff label with customer word", "고객센터 매니저: 확인해드릴게요", RoleUnknown, RoleAgent},
		{"support agent korean", "고객지원 상담사: 처리했습니다", RoleCustomer, RoleAgent},
		{"customer success manager", "Customer Success Manager: done", RoleCustomer, RoleAgent},
		{"timestamped continuation", "(09:01:02) 네 알겠습니다", RoleCustomer, RoleCustomer},
		{"timestamped unattributed line", "(09:01:02) 네 알겠습니다", RoleUnknown, RoleUnknown},
		{"timestamped customer label", "(09:01:02) 고객: 환불해주세요", RoleAgent, RoleCustomer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.line, tt.prior); got != tt.want {
				t.Errorf("Classify(%q, %v) = %v, want %v", tt.line, tt.prior, got, tt.want)
			}
		})
	}
}

func TestHasSpeakerLabels(t *testing.T) {
	if !HasSpeakerLabels("첫 줄\n고객: 문의") {
		t.Error("expected labeled text to be detected")
	}
	if HasSpeakerLabels("환불이 안돼요\n빨리 처리해주세요") {
		t.Error("expected unlabeled text not to be detected")
	}
	if HasSpeakerLabels("(09:01:02) 환불이 안돼요\n(09:02:10) 빨리 처리해주세요") {
		t.Error("timestamps alone must not count as speaker labels")
	}
	if !HasSpeakerLabels("(09:01:02) 고객: 환불이 안돼요") {
		t.Error("expected timestamped label to be detected")
	}
}

func TestExtractCustomerText(t *testing.T) {
	tests := []struct {
		name  string
		block string
		want  string
	}{
		{
			name:  "staff label containing customer word stays out",
			block: "iOS User: 환불 언제 되나요\n고객센터 매니저: 내부 메모 환불 승인 처리 완료",
			want:  "환불 언제 되나요",
		},
		{
			name:  "timestamped continuation kept with customer",
			block: "(09:01:00) 고객: 환불 언제 되나요\n(09:01:02) 네 알겠습니다\n(09:02:00) 매니저: 확인해드릴게요",
			want:  "환불 언제 되나요\n네 알겠습니다",
		},
		{
			name:  "bot greeting and agent reply removed",
			block: "(09:01:02) 여신BOT: 안녕하세요\n고객: 환불 언제 되나요\n매니저: 확인해드릴게요",
			want:  "환불 언제 되나요",
		},
		{
			name:  "platform user kept, short name dropped",
			block: "iOS User: 쿠폰이 적용이 안돼요\n조수민: 확인 후 안내드리겠습니다",
			want:  "쿠폰이 적용이 안돼요",
		},
		{
			name:  "continuation lines follow the customer",
			block: "고객: 첫 줄\n둘째 줄\n매니저: 답변\n답변 계속",
			want:  "첫 줄\n둘째 줄",
		},
		{
			name:  "every line from the bot",
			block: "여신BOT: 안녕하세요\n여신BOT: 운영시간 안내\n추가 안내 문구",
			want:  "",
		},
		{
			name:  "leading unattributed lines dropped",
			block: "알 수 없는 시작\n고객: 문의합니다",
			want:  "문의합니다",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractCustomerText(tt.block); got != tt.want {
				t.Errorf("ExtractCustomerText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSegment_PartitionsLines(t *testing.T) {
	block := "시작 문구\n고객: a\nb\n매니저: c\n조수민: d"
	turns := Segment(block)

	want := []SpeakerTurn{
		{Role: RoleUnknown, Lines: []string{"시작 문구"}},
		{Role: RoleCustomer, Lines: []string{"a", "b"}},
		{Role: RoleAgent, Lines: []string{"c"}},
		{Role: RoleAgent, Lines: []string{"d"}},
	}
	if !reflect.DeepEqual(turns, want) {
		t.Fatalf("Segment() = %+v, want %+v", turns, want)
	}

	total := 0
	for _, turn := range turns {
		total += len(turn.Lines)
	}
	if total != 5 {
		t.Errorf("expected turns to cover 5 lines, got %d", total)
	}
}

func TestRoleString(t *testing.T) {
	if RoleCustomer.String() != "customer" || RoleUnknown.String() != "unknown" {
		t.Errorf("unexpected role names: %s %s", RoleCustomer, RoleUnknown)
	}
}
