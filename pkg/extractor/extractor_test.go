package extractor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeOutput(t *testing.T) {
	report := `{
		"questions": {
			"1": {"code": "int main() { return 0; }", "confidence": 0.95},
			"3": {"code": "void f() {}", "confidence": 0.42}
		},
		"unmatched_content": "stray text between answers"
	}`

	output, err := DecodeOutput([]byte(report))
	require.NoError(t, err)
	require.Len(t, output.Questions, 2)
	require.Equal(t, "int main() { return 0; }", output.Questions[1].Code)
	require.InDelta(t, 0.42, output.Questions[3].Confidence, 1e-9)
	require.Equal(t, "stray text between answers", output.Unmatched)

	_, hasSecond := output.Questions[2]
	require.False(t, hasSecond)
}

func TestDecodeOutputRejectsZeroBasedQuestions(t *testing.T) {
	report := `{"questions": {"0": {"code": "x", "confidence": 1}}}`
	_, err := DecodeOutput([]byte(report))
	require.Error(t, err)
}

func TestDecodeOutputMalformed(t *testing.T) {
	_, err := DecodeOutput([]byte("not json"))
	require.Error(t, err)
}

func TestSanitizeFilename(t *testing.T) {
	require.Equal(t, "exam.docx", sanitizeFilename("../../exam.docx"))
	require.Equal(t, "document", sanitizeFilename(""))
}
