package transcript

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

type Action int

const (
	// ActionBotSpeaker marks a line written by the automated assistant. Both
	// CleanText and CleanBodyOnly drop it.
	ActionBotSpeaker Action = iota
	// ActionDropLine marks boilerplate that only CleanText drops.
	ActionDropLine
	// ActionExcludeRecord marks text that disqualifies the whole ticket.
	ActionExcludeRecord
)

func (a Action) String() string {
	switch a {
	case ActionBotSpeaker:
		return "bot_speaker"
	case ActionDropLine:
		return "drop_line"
	case ActionExcludeRecord:
		return "exclude_record"
	default:
		return "unknown"
	}
}

func ParseAction(s string) (Action, error) {
	switch s {
	case "bot_speaker":
		return ActionBotSpeaker, nil
	case "drop_line", "":
		return ActionDropLine, nil
	case "exclude_record":
		return ActionExcludeRecord, nil
	default:
		return 0, fmt.Errorf("unknown rule action %q", s)
	}
}

type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Action  Action
}

func rule(name string, action Action, pattern string) Rule {
	return Rule{Name: name, Pattern: regexp.MustCompile(pattern), Action: action}
}

// RuleSet is an ordered rule table. Match evaluates rules in order and stops
// at the first hit.
type RuleSet struct {
	rules []Rule
}

func NewRuleSet(rules ...Rule) *RuleSet {
	return &RuleSet{rules: append([]Rule(nil), rules...)}
}

func (rs *RuleSet) Rules() []Rule {
	return append([]Rule(nil), rs.rules...)
}

func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

// With returns a copy of the set with extra rules appended after the
// existing ones.
func (rs *RuleSet) With(extra ...Rule) *RuleSet {
	out := make([]Rule, 0, len(rs.rules)+len(extra))
	out = append(out, rs.rules...)
	out = append(out, extra...)
	return &RuleSet{rules: out}
}

func (rs *RuleSet) Match(line string, actions ...Action) (Rule, bool) {
	for _, r := range rs.rules {
		if len(actions) > 0 && !hasAction(actions, r.Action) {
			continue
		}
		if r.Pattern.MatchString(line) {
			return r, true
		}
	}
	return Rule{}, false
}

func hasAction(actions []Action, a Action) bool {
	for _, x := range actions {
		if x == a {
			return true
		}
	}
	return false
}

var defaultRules = []Rule{
	// speaker markers of the automated assistant
	rule("bot_name_prefix", ActionBotSpeaker, `(?i)^(?:\(\d{1,2}:\d{2}:\d{2}\)\s*)?여신BOT\b`),
	rule("bot_token", ActionBotSpeaker, `(?i)\bBOT\b`),
	rule("bot_upload", ActionBotSpeaker, `(?i)여신BOT님이\s*업로드함`),

	// greetings and intake prompts
	rule("greeting_thanks", ActionDropLine, `(?i)여신티켓에\s*관심을\s*가지고\s*이용해\s*주셔서\s*감사드립니다`),
	rule("greeting_hello", ActionDropLine, `(?i)안녕하세요,?\s*여신티켓입니다\.?`),
	rule("intake_leave_question", ActionDropLine, `(?i)궁금하신\s*내용(?:을|을요)?\s*남겨주시면\s*꼼꼼하게\s*확인\s*후\s*안내해\s*드리겠습니다`),
	rule("intake_form", ActionDropLine, `(?i)정확한\s*안내를\s*위해\s*아래\s*정보를\s*입력해\s*주세요`),
	rule("image_zoom_hint", ActionDropLine, `(?i)\(사진을\s*누르면\s*확대해서?\s*보실\s*수\s*있어요!?\)`),
	rule("intake_thanks", ActionDropLine, `정보\s*입력\s*감사합니다`),
	rule("handoff_manager", ActionDropLine, `담당\s*매니저를\s*연결해\s*드릴게요`),
	rule("queue_notice", ActionDropLine, `(?i)순차적으로\s*안내를?\s*드리고\s*있어(?:\s*다소)?\s*시간이\s*소요될\s*수\s*있는\s*점\s*양해\s*부탁드립니다`),
	rule("bare_thanks", ActionDropLine, `(?i)^감사합니다\s*:?\s*\)?$`),

	// operating hours
	rule("hours_open", ActionDropLine, `운영시간\s*:`),
	rule("hours_lunch", ActionDropLine, `점심시간\s*:`),
	rule("hours_holiday", ActionDropLine, `주말\s*및\s*공휴일\s*휴무`),

	// buttons and menus
	rule("two_ways", ActionDropLine, `아래\s*2가지\s*방법`),
	rule("button_check", ActionDropLine, `(?i)아래\s*버튼(?:을)?\s*눌러\s*내용\s*확인하기`),
	rule("keyword_prompt", ActionDropLine, `키워드를\s*입력`),
	rule("to_start", ActionDropLine, `처음으로`),
	rule("retype_question", ActionDropLine, `(?i)문의할\s*내용을\s*다시\s*입력하기`),
	rule("resolved_question", ActionDropLine, `(?i)궁금하신\s*점이\s*해결되셨나요\??`),
	rule("resolved_yes", ActionDropLine, `(?i)해결되었어요\.?`),
	rule("resolved_no", ActionDropLine, `(?i)해결되지\s*않았어요\.?`),
	rule("button_label", ActionDropLine, `(?i)^[\p{L}\d\s/]{1,20}\s(?:방법|가능|취소|method|available|cancel)$`),
	rule("emoji_guidance", ActionDropLine, `^(?:✅|✔|➡|🔍|🔎|🔊|❗|👇)`),

	// notices and announcements
	rule("notice_tag", ActionDropLine, `(?i)^\s*\[?\s*공지\s*\]?`),
	rule("notice_board", ActionDropLine, `(?i)공지사항`),
	rule("event_winner_announce", ActionDropLine, `(?i)초대왕\s*발표`),
	rule("event_bonus_points", ActionDropLine, `(?i)보너스\s*포인트`),
	rule("event_winners", ActionDropLine, `(?i)당첨자(?:분들)?`),
	rule("event_sms", ActionDropLine, `(?i)SMS를?\s*전달\s*드릴\s*예정입니다?`),
	rule("caution", ActionDropLine, `(?i)유의\s*사항`),
	rule("image_detail_hint", ActionDropLine, `(?i)자세한\s*화면은\s*아래\s*이미지를\s*눌러주세요`),

	// FAQ and help documents
	rule("faq_intro", ActionDropLine, `(?i)문의하신\s*내용에\s*도움이\s*될만한\s*답을\s*찾아드릴게요`),
	rule("faq_doc_link", ActionDropLine, `문서\s*보기\s*:`),
	rule("faq_header", ActionDropLine, `(?i)자주\s*묻는\s*질문`),
	rule("faq_numbered_q", ActionDropLine, `(?i)^\d+\.\s*Q[.\s]`),
	rule("faq_numbered_a", ActionDropLine, `(?i)^\d+\.\s*A[.\s]`),
	rule("faq_refund_when", ActionDropLine, `(?i)구매\s*취소\s*시\s*환불은\s*언제\s*되나요\?`),
	rule("faq_refund_year", ActionDropLine, `(?i)구매\s*후\s*1년\s*(?:이내|경과)\s*취소건`),
	rule("faq_business_days", ActionDropLine, `(?i)영업일\s*기준\s*최대\s*7일`),
	rule("faq_coupon_refund", ActionDropLine, `(?i)쿠폰/?포인트.*환급되나요\?`),
	rule("faq_cancel_path", ActionDropLine, `(?i)마이\s*>\s*구매\s*목록\s*>\s*구매\s*취소하기`),

	// purchase and extension guidance
	rule("purchase_id_path", ActionDropLine, `(?i)구매\s*ID는\s*아래\s*경로에서\s*확인이\s*가능해요`),
	rule("purchase_list_path", ActionDropLine, `(?i)마이\s*>\s*구매\s*목록`),
	rule("extend_in_app", ActionDropLine, `(?i)티켓\s*구매\s*후\s*미사용\s*티켓은\s*앱을\s*통해\s*직접\s*연장`),
	rule("extend_pick_date", ActionDropLine, `(?i)구매\s*일자\s*확인\s*후\s*해당하는\s*구매\s*시점을\s*선택`),
	rule("extend_cutoff", ActionDropLine, `(?i)\[?2023년\s*7월\s*12일\]?\s*(?:이전|이후)\s*구매\s*티켓\s*연장`),
	rule("extend_policy", ActionDropLine, `(?i)미사용\s*티켓은\s*유효기간\s*만료\s*30일\s*전부터\s*6개월\s*단위로\s*최대\s*2번\s*기간\s*연장`),
	rule("extend_path", ActionDropLine, `(?i)기간\s*연장은\s*\[?티켓/예약\s*>\s*티켓\s*탭\s*>\s*티켓\s*선택\s*>\s*연장하기\]?`),

	// help-center tables and attachment metadata
	rule("help_category", ActionDropLine, `^(?:회원가입/계정|티켓\s*사용/예약|시술\s*후기|쿠폰/포인트|구매/환불|앱\s*이용)`),
	rule("help_review", ActionDropLine, `^(?:텍스트/포토\s*후기|영수증\s*후기|후기\s*검토\s*기준|후기\s*소명\s*접수)`),
	rule("review_pending", ActionDropLine, `^검토중$`),
	rule("attachment_meta", ActionDropLine, `^(?:URL|유형|크기)\s*:`),

	// phone-call placeholders disqualify the whole ticket
	rule("call_outgoing_ko", ActionExcludeRecord, `(?i)발신전화\s+to\s+\d+`),
	rule("call_incoming_ko", ActionExcludeRecord, `(?i)수신전화\s+\d+`),
	rule("call_kind_ko", ActionExcludeRecord, `(?i)전화구분\s*:\s*(?:수신전화|발신전화)`),
	rule("call_direction_en", ActionExcludeRecord, `(?i)(?:incoming|outgoing)\s+call\s+(?:to|from)\s+\+?\d+`),
}

// DefaultRules is the built-in boilerplate table.
var DefaultRules = NewRuleSet(defaultRules...)

type ruleFile struct {
	Rules []struct {
		Name    string `yaml:"name"`
		Pattern string `yaml:"pattern"`
		Action  string `yaml:"action"`
	} `yaml:"rules"`
}

// LoadRules parses a YAML rule file:
//
//	rules:
//	  - name: promo_banner
//	    pattern: '이벤트\s*안내'
//	    action: drop_line
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return ParseRules(data)
}

func ParseRules(data []byte) ([]Rule, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}

	rules := make([]Rule, 0, len(f.Rules))
	for i, r := range f.Rules {
		if r.Pattern == "" {
			return nil, fmt.Errorf("rule %d (%s): empty pattern", i, r.Name)
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, r.Name, err)
		}
		action, err := ParseAction(r.Action)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, r.Name, err)
		}
		name := r.Name
		if name == "" {
			name = fmt.Sprintf("custom_%d", i)
		}
		rules = append(rules, Rule{Name: name, Pattern: re, Action: action})
	}
	return rules, nil
}
