package ingest_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/fairyhunter13/ai-exam-grader/internal/domain"
	"github.com/fairyhunter13/ai-exam-grader/internal/ingest"
)

const header = "ID экзамена;ID вопроса;№ вопроса;Текст вопроса;Транскрибация ответа;Картинка из вопроса"

func TestDetectDelimiter(t *testing.T) {
	t.Parallel()
	assert.Equal(t, ';', int32(ingest.DetectDelimiter("a;b;c\n1;2;3")))
	assert.Equal(t, ',', int32(ingest.DetectDelimiter("a,b,c\n1,2,3")))
	// Only the header line is considered.
	assert.Equal(t, ',', int32(ingest.DetectDelimiter("a,b,c\n1;2;3")))
}

func TestParseCSV_Semicolon(t *testing.T) {
	t.Parallel()
	raw := header + "\n" +
		"e1;q1;1;Расскажите о себе;мой ответ;\n" +
		"e1;q2;2;Опишите картинку;вижу дом;https://img.example/1.jpg\n"
	records, err := ingest.ParseCSV([]byte(raw))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "e1", records[0].ExamID)
	assert.Equal(t, "q1", records[0].QuestionID)
	assert.Equal(t, 1, records[0].QuestionNumber)
	assert.Equal(t, domain.NoImageSentinel, records[0].ImageRef)
	assert.Equal(t, domain.TestTypeDialog, records[0].TestType)

	assert.Equal(t, "https://img.example/1.jpg", records[1].ImageRef)
	assert.Equal(t, domain.TestTypeImage, records[1].TestType)
	assert.Equal(t, "вижу дом", records[1].Transcription)
	assert.Equal(t, "вижу дом", records[1].RawTranscription)
}

func TestParseCSV_CommaAndAliases(t *testing.T) {
	t.Parallel()
	raw := "Id экзамена,Id вопроса,№ вопроса,Текст вопроса,Транскрибация ответа\n" +
		"e9,q9,3,Вопрос,ответ\n"
	records, err := ingest.ParseCSV([]byte(raw))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "e9", records[0].ExamID)
	// Missing image column falls back to the sentinel.
	assert.Equal(t, domain.NoImageSentinel, records[0].ImageRef)
}

func TestParseCSV_SchemaError(t *testing.T) {
	t.Parallel()
	raw := "ID экзамена;№ вопроса;Текст вопроса\ne1;1;x\n"
	_, err := ingest.ParseCSV([]byte(raw))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSchemaInvalid)
	assert.Contains(t, err.Error(), "Id вопроса")
	assert.Contains(t, err.Error(), "Транскрибация ответа")
}

func TestParseCSV_QuestionTextFiltered(t *testing.T) {
	t.Parallel()
	raw := header + "\n" +
		"e1;q1;1;<p>Вопрос question</p>;ответ;\n"
	records, err := ingest.ParseCSV([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "Вопрос ", records[0].QuestionText)
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()
	records := []domain.ExamRecord{
		{QuestionText: "<b>Текст test</b>", ImageRef: ""},
		{QuestionText: "Чистый", ImageRef: "https://img.example/2.png"},
	}
	ingest.Normalize(records)
	first := make([]domain.ExamRecord, len(records))
	copy(first, records)
	ingest.Normalize(records)
	assert.Equal(t, first, records)
	assert.Equal(t, domain.NoImageSentinel, records[0].ImageRef)
	assert.Equal(t, domain.TestTypeDialog, records[0].TestType)
	assert.Equal(t, domain.TestTypeImage, records[1].TestType)
}

func TestParseXLSX(t *testing.T) {
	t.Parallel()
	f := excelize.NewFile()
	rows := [][]string{
		{"ID экзамена", "ID вопроса", "№ вопроса", "Текст вопроса", "Транскрибация ответа", "Картинка из вопроса"},
		{"e1", "q1", "2", "Опишите картинку", "на фото дерево", "https://img.example/t.jpg"},
	}
	for i, row := range rows {
		for j, v := range row {
			cellName, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue("Sheet1", cellName, v))
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	records, err := ingest.ParseXLSX(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "e1", records[0].ExamID)
	assert.Equal(t, 2, records[0].QuestionNumber)
	assert.Equal(t, domain.TestTypeImage, records[0].TestType)
}

func TestParseXLSX_Garbage(t *testing.T) {
	t.Parallel()
	_, err := ingest.ParseXLSX([]byte("not a workbook"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSchemaInvalid)
}
