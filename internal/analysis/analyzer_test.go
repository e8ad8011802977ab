package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	response string
	err      error
	calls    int
	prompt   string
}

func (f *fakeClient) GenerateJSON(_ context.Context, prompt string) (string, error) {
	f.calls++
	f.prompt = prompt
	return f.response, f.err
}

func (f *fakeClient) Model() string { return "fake-model" }
func (f *fakeClient) Close() error  { return nil }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func scorecardResponse(overall int, pointScore func(i int) int) string {
	points := map[string]any{}
	for i := 1; i <= 12; i++ {
		points[fmt.Sprint(i)] = map[string]any{"score": pointScore(i), "notes": fmt.Sprintf("note %d", i)}
	}
	data, _ := json.Marshal(map[string]any{
		"overallScore": overall,
		"category":     "warm",
		"points":       points,
		"summary":      "Client is interested, follow up next week.",
	})
	return string(data)
}

func TestAnalyze_Success(t *testing.T) {
	client := &fakeClient{response: "```json\n" + scorecardResponse(72, func(i int) int { return i % 11 }) + "\n```"}
	analyzer := New(client, quietLogger())

	sc, err := analyzer.Analyze(context.Background(), strings.Repeat("Hello, this is a sales call. ", 20))
	require.NoError(t, err)

	assert.Equal(t, 1, client.calls)
	assert.Equal(t, 72, sc.OverallScore)
	assert.Equal(t, "warm", sc.Category)
	require.Len(t, sc.Points, 12)
	for i, p := range sc.Points {
		assert.GreaterOrEqual(t, p.Score, 0)
		assert.LessOrEqual(t, p.Score, 10)
		assert.Equal(t, Title(i), p.Title, "missing titles are filled from the rubric")
	}

	assert.Contains(t, client.prompt, "Business discovery")
	assert.Contains(t, client.prompt, "Rapport and communication")
	assert.Contains(t, client.prompt, "Hello, this is a sales call.")
}

func TestAnalyze_EmptyTranscript(t *testing.T) {
	client := &fakeClient{}
	analyzer := New(client, quietLogger())

	_, err := analyzer.Analyze(context.Background(), "  \n\t ")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInput))
	assert.Equal(t, 0, client.calls, "backend must not be called for empty input")
}

func TestAnalyze_BackendError(t *testing.T) {
	cause := errors.New("quota exceeded")
	analyzer := New(&fakeClient{err: cause}, quietLogger())

	_, err := analyzer.Analyze(context.Background(), "some transcript")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindBackend))
	assert.ErrorIs(t, err, cause)
}

func TestAnalyze_OutOfBounds(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"overall 150", scorecardResponse(150, func(int) int { return 5 })},
		{"criterion 11", scorecardResponse(60, func(i int) int {
			if i == 4 {
				return 11
			}
			return 5
		})},
		{"negative criterion", scorecardResponse(60, func(i int) int {
			if i == 12 {
				return -1
			}
			return 5
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analyzer := New(&fakeClient{response: tt.response}, quietLogger())

			sc, err := analyzer.Analyze(context.Background(), "transcript")
			require.Error(t, err)
			assert.Nil(t, sc)

			var ae *AnalysisError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, KindValidation, ae.Kind)
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"not json", "I think the call went well"},
		{"missing points", `{"overallScore": 50, "category": "cold", "summary": "x"}`},
		{"eleven points", func() string {
			var m map[string]any
			_ = json.Unmarshal([]byte(scorecardResponse(50, func(int) int { return 1 })), &m)
			delete(m["points"].(map[string]any), "7")
			b, _ := json.Marshal(m)
			return string(b)
		}()},
		{"fractional score", strings.Replace(scorecardResponse(50, func(int) int { return 1 }), `"overallScore":50`, `"overallScore":50.5`, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.raw)
			require.Error(t, err)
			assert.True(t, IsKind(err, KindMalformed), "got %v", err)
		})
	}
}

func TestDecode_NormalizesCategory(t *testing.T) {
	raw := strings.Replace(scorecardResponse(90, func(int) int { return 9 }), `"warm"`, `" HOT "`, 1)

	sc, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "hot", sc.Category)
}

func TestDecode_UnknownCategory(t *testing.T) {
	raw := strings.Replace(scorecardResponse(90, func(int) int { return 9 }), `"warm"`, `"lukewarm"`, 1)

	_, err := Decode(raw)
	assert.True(t, IsKind(err, KindValidation))
}

func TestRubric(t *testing.T) {
	assert.Len(t, Rubric, 12)
	for i, c := range Rubric {
		assert.Equal(t, i+1, c.Index)
		assert.NotEmpty(t, c.Title)
	}
	assert.Equal(t, "", Title(0))
	assert.Equal(t, "", Title(13))

	text := RubricText()
	assert.True(t, strings.HasPrefix(text, "1. Business discovery"))
	assert.True(t, strings.HasSuffix(text, "12. Rapport and communication"))
}

func TestIsKind_NonAnalysisError(t *testing.T) {
	assert.False(t, IsKind(errors.New("plain"), KindBackend))
	assert.False(t, IsKind(nil, KindBackend))
}

func TestLLMConfig(t *testing.T) {
	cfg, err := LLMConfig("gemini-test")
	require.NoError(t, err)
	assert.Equal(t, "gemini-test", cfg.Model)
	assert.NotEmpty(t, cfg.SystemInstruction)
	assert.NoError(t, cfg.Validate())
}
