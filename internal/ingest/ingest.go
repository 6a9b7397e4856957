// Package ingest parses uploaded exam tables and normalizes the records.
//
// The exam office exports either semicolon/comma CSV or XLSX; the column
// set is fixed to the exam domain but header spelling varies, so headers
// are resolved case-insensitively against a small alias table.
package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/fairyhunter13/ai-exam-grader/internal/domain"
	"github.com/fairyhunter13/ai-exam-grader/pkg/textx"
)

// Column aliases, matched case-insensitively.
var (
	examIDAliases        = []string{"Id экзамена", "ID экзамена"}
	questionIDAliases    = []string{"Id вопроса", "ID вопроса"}
	questionNumAliases   = []string{"№ вопроса", "Номер вопроса"}
	questionTextAliases  = []string{"Текст вопроса"}
	transcriptionAliases = []string{"Транскрибация ответа"}
	imageRefAliases      = []string{"Картинка из вопроса"}
)

// DetectDelimiter picks the CSV field delimiter from a header sample:
// semicolon when the first line contains one, comma otherwise.
func DetectDelimiter(sample string) rune {
	line, _, _ := strings.Cut(sample, "\n")
	if strings.Contains(line, ";") {
		return ';'
	}
	return ','
}

type columns struct {
	examID        int
	questionID    int
	questionNum   int
	questionText  int
	transcription int
	imageRef      int
}

func findColumn(header []string, aliases []string) int {
	for i, h := range header {
		h = strings.TrimSpace(h)
		for _, a := range aliases {
			if strings.EqualFold(h, a) {
				return i
			}
		}
	}
	return -1
}

func resolveColumns(header []string) (columns, error) {
	c := columns{
		examID:        findColumn(header, examIDAliases),
		questionID:    findColumn(header, questionIDAliases),
		questionNum:   findColumn(header, questionNumAliases),
		questionText:  findColumn(header, questionTextAliases),
		transcription: findColumn(header, transcriptionAliases),
		imageRef:      findColumn(header, imageRefAliases),
	}
	var missing []string
	if c.examID < 0 {
		missing = append(missing, examIDAliases[0])
	}
	if c.questionID < 0 {
		missing = append(missing, questionIDAliases[0])
	}
	if c.transcription < 0 {
		missing = append(missing, transcriptionAliases[0])
	}
	if len(missing) > 0 {
		return columns{}, fmt.Errorf("%w: required columns not found: %s", domain.ErrSchemaInvalid, strings.Join(missing, ", "))
	}
	return c, nil
}

// ParseCSV reads raw CSV bytes into normalized exam records. The
// delimiter is auto-detected from the first 2KiB of the header.
func ParseCSV(raw []byte) ([]domain.ExamRecord, error) {
	sample := raw
	if len(sample) > 2048 {
		sample = sample[:2048]
	}
	sep := DetectDelimiter(string(sample))

	r := csv.NewReader(bytes.NewReader(raw))
	r.Comma = sep
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: empty or unreadable table: %v", domain.ErrSchemaInvalid, err)
	}
	cols, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}

	var records []domain.ExamRecord
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", domain.ErrSchemaInvalid, len(records)+2, err)
		}
		records = append(records, recordFromRow(row, cols))
	}
	Normalize(records)
	return records, nil
}

// ParseXLSX reads the first sheet of an XLSX workbook into normalized
// exam records.
func ParseXLSX(raw []byte) ([]domain.ExamRecord, error) {
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: not a readable workbook: %v", domain.ErrSchemaInvalid, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", domain.ErrSchemaInvalid)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %v", domain.ErrSchemaInvalid, sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty sheet %q", domain.ErrSchemaInvalid, sheets[0])
	}
	cols, err := resolveColumns(rows[0])
	if err != nil {
		return nil, err
	}
	records := make([]domain.ExamRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		records = append(records, recordFromRow(row, cols))
	}
	Normalize(records)
	return records, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func recordFromRow(row []string, c columns) domain.ExamRecord {
	num, _ := strconv.Atoi(cell(row, c.questionNum))
	tr := textx.SanitizeText(cell(row, c.transcription))
	return domain.ExamRecord{
		ExamID:           cell(row, c.examID),
		QuestionID:       cell(row, c.questionID),
		QuestionNumber:   num,
		QuestionText:     cell(row, c.questionText),
		Transcription:    tr,
		RawTranscription: tr,
		ImageRef:         cell(row, c.imageRef),
	}
}

// Normalize fills missing image references with the sentinel, derives the
// test type and filters the question text. It is idempotent: running it
// over already-normalized records changes nothing.
func Normalize(records []domain.ExamRecord) {
	for i := range records {
		r := &records[i]
		if strings.TrimSpace(r.ImageRef) == "" {
			r.ImageRef = domain.NoImageSentinel
		}
		if r.HasImage() {
			r.TestType = domain.TestTypeImage
		} else {
			r.TestType = domain.TestTypeDialog
		}
		r.QuestionText = textx.FilterQuestionText(r.QuestionText)
	}
}
