// Package export writes inquiry records and their summary as an Excel
// workbook.
package export

import (
	"fmt"
	"io"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/nicetoya86/ticket/internal/llm"
	"github.com/nicetoya86/ticket/internal/storage/models"
	"github.com/nicetoya86/ticket/internal/tags"
)

const (
	RecordsSheet = "문의내용"
	SummarySheet = "GPT 요약"

	maxLabelRunes = 80
)

var (
	kst         = time.FixedZone("KST", 9*60*60)
	unsafeChars = regexp.MustCompile(`[\\/:*?"<>|]`)
)

// Summary is the analysis shown on the second sheet.
type Summary struct {
	Summary string
	Themes  []llm.Theme
	Actions []string
}

// WriteInquiriesXLSX writes one row per record to the records sheet and,
// when summary is non-nil, the summary, themes with evidence and actions to
// a second sheet.
func WriteInquiriesXLSX(w io.Writer, records []models.InquiryRecord, summary *Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", RecordsSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	rows := [][]any{{"문의 일시", "태그", "병원명", "내용"}}
	for _, r := range records {
		name := r.TicketName
		if name == "" {
			name = r.TicketID
		}
		rows = append(rows, []any{formatDate(r.CreatedAt), tags.Normalize(r.InquiryType), name, r.TextValue})
	}
	if err := writeRows(f, RecordsSheet, rows); err != nil {
		return err
	}
	if err := setWidths(f, RecordsSheet, 12, 40, 36, 120); err != nil {
		return err
	}

	if summary != nil {
		if _, err := f.NewSheet(SummarySheet); err != nil {
			return fmt.Errorf("failed to add summary sheet: %w", err)
		}
		if err := writeRows(f, SummarySheet, summaryRows(summary)); err != nil {
			return err
		}
		if err := setWidths(f, SummarySheet, 20, 20, 80); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func summaryRows(s *Summary) [][]any {
	rows := [][]any{{SummarySheet}, {"요약", s.Summary}}
	if len(s.Themes) > 0 {
		rows = append(rows, nil, []any{"주요 테마"})
		for i, t := range s.Themes {
			rows = append(rows, []any{fmt.Sprintf("%d. %s", i+1, t.Title)})
			for j, ev := range t.Evidence {
				label := ""
				if j == 0 {
					label = "근거"
				}
				rows = append(rows, []any{"", label, "'" + ev + "'"})
			}
		}
	}
	if len(s.Actions) > 0 {
		rows = append(rows, nil, []any{"권장 액션"})
		for i, a := range s.Actions {
			rows = append(rows, []any{fmt.Sprintf("%d. %s", i+1, a)})
		}
	}
	return rows
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", i+1, sheet, err)
		}
	}
	return nil
}

func setWidths(f *excelize.File, sheet string, widths ...float64) error {
	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}
	return nil
}

// formatDate renders an RFC 3339 timestamp as its KST calendar day. Other
// values are returned unchanged.
func formatDate(s string) string {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return t.In(kst).Format("2006-01-02")
}

// FileName builds the download name of an export. Characters that are not
// allowed in file names become underscores and the tag label is cut to 80
// characters.
func FileName(from, to, tag string) string {
	if from == "" {
		from = "시작일"
	}
	if to == "" {
		to = "종료일"
	}
	label := unsafeChars.ReplaceAllString(tags.Normalize(tag), "_")
	if utf8.RuneCountInString(label) > maxLabelRunes {
		label = string([]rune(label)[:maxLabelRunes])
	}
	if label == "" {
		label = "전체"
	}
	return fmt.Sprintf("문의내용_%s_%s_%s.xlsx", from, to, label)
}
