package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppiankov/medscribe/internal/errors"
	"github.com/ppiankov/medscribe/internal/llm"
	"github.com/ppiankov/medscribe/internal/schema"
	"github.com/ppiankov/medscribe/internal/store"
	"github.com/ppiankov/medscribe/internal/validate"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)

type fakeExtractor struct {
	text  string
	err   error
	calls int
	last  llm.ExtractRequest
}

func (f *fakeExtractor) Name() string                         { return "fake" }
func (f *fakeExtractor) IsAvailable(ctx context.Context) bool { return true }
func (f *fakeExtractor) Extract(ctx context.Context, req llm.ExtractRequest) (*llm.ExtractResponse, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ExtractResponse{Text: f.text, Model: "fake-1"}, nil
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Name() string { return "fake" }
func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	return f.text, f.err
}

type countingLimiter struct {
	keys []string
	err  error
}

func (l *countingLimiter) Wait(ctx context.Context, key string) error {
	l.keys = append(l.keys, key)
	return l.err
}

func newTestPipeline(t *testing.T, ex llm.Extractor, opts ...Option) (*Pipeline, *store.Manager) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := schema.Default()
	st := store.NewManager(t.TempDir(), registry,
		store.WithClock(func() time.Time { return fixedNow }),
		store.WithLogger(logger),
	)
	base := []Option{
		WithLogger(logger),
		WithValidator(validate.NewValidator(registry, validate.WithClock(func() time.Time { return fixedNow }))),
	}
	return New(registry, ex, st, append(base, opts...)...), st
}

func auditFiles(t *testing.T, st *store.Manager) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(st.DataDir(), "_audit"))
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

const reviewResponse = `{"diagnosis": "Hypertension", "biometrics": {"height": 170, "weight": 70}, "lifestyle": {"smokingStatus": "former"}}`

func TestProcess_CommitsAndProjects(t *testing.T) {
	ex := &fakeExtractor{text: reviewResponse}
	p, st := newTestPipeline(t, ex)

	res, err := p.Process(context.Background(), schema.TypeMedicalReview, "Patient reports high blood pressure.")
	require.NoError(t, err)
	require.True(t, res.OK())
	require.Equal(t, 1, ex.calls)
	require.Contains(t, ex.last.User, "Patient reports high blood pressure.")

	require.Equal(t, "REV_20240115093000", res.Envelope.RecordID)
	require.FileExists(t, res.Envelope.Path)
	require.Equal(t, st.DataDir(), filepath.Dir(filepath.Dir(res.Envelope.Path)))

	diag, ok := res.Fields.Get("diagnosis")
	require.True(t, ok)
	require.Equal(t, "Hypertension", diag.Value)

	bmi, _ := res.Fields.Get("bmi")
	require.Equal(t, 24.22, bmi.Value)

	smoking, _ := res.Fields.Get("smoking_status")
	require.Equal(t, "Former", smoking.Value)

	transcript, _ := res.Fields.Get("transcript")
	require.Equal(t, "Patient reports high blood pressure.", transcript.Value)

	js, _ := res.Fields.Get("json")
	require.Contains(t, js.Value, `"recordId": "REV_20240115093000"`)

	require.Empty(t, auditFiles(t, st))
}

func TestProcess_EmptyTranscriptSkipsExtraction(t *testing.T) {
	ex := &fakeExtractor{text: reviewResponse}
	p, st := newTestPipeline(t, ex)

	res, err := p.Process(context.Background(), schema.TypeMedicalReview, "  \n\t ")
	require.True(t, errors.Is(err, errors.ErrEmptyTranscript))
	require.Equal(t, 0, ex.calls)
	require.False(t, res.OK())
	require.Len(t, res.Fields, 17)

	diag, _ := res.Fields.Get("diagnosis")
	require.Equal(t, "", diag.Value)
	require.Empty(t, auditFiles(t, st))
}

func TestProcess_UnknownRecordType(t *testing.T) {
	ex := &fakeExtractor{text: reviewResponse}
	p, _ := newTestPipeline(t, ex)

	res, err := p.Process(context.Background(), "discharge_summary", "text")
	require.True(t, errors.Is(err, errors.ErrUnknownRecordType))
	require.Equal(t, 0, ex.calls)
	require.Empty(t, res.Fields)
}

func TestProcess_FailuresAreAudited(t *testing.T) {
	tests := []struct {
		name string
		ex   *fakeExtractor
		code errors.ErrorCode
		path string
	}{
		{"service error", &fakeExtractor{err: fmt.Errorf("connection refused")}, errors.ErrExtractionFailed, ""},
		{"not json", &fakeExtractor{text: "I could not find a diagnosis."}, errors.ErrMalformedResponse, ""},
		{"missing required", &fakeExtractor{text: `{"biometrics": {"height": 170}}`}, errors.ErrSchemaViolation, "diagnosis"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, st := newTestPipeline(t, tt.ex)

			res, err := p.Process(context.Background(), schema.TypeMedicalReview, "The patient has asthma.")
			require.True(t, errors.Is(err, tt.code), "got %v", err)
			require.Equal(t, err, res.Err)
			require.Nil(t, res.Envelope)
			require.Len(t, res.Fields, 17)

			transcript, _ := res.Fields.Get("transcript")
			require.Equal(t, "The patient has asthma.", transcript.Value)

			files := auditFiles(t, st)
			require.Len(t, files, 1)
			data, err := os.ReadFile(filepath.Join(st.DataDir(), "_audit", files[0]))
			require.NoError(t, err)
			require.Contains(t, string(data), "The patient has asthma.")
			require.Contains(t, string(data), string(tt.code))
			if tt.path != "" {
				require.Contains(t, string(data), tt.path)
			}

			records, err := st.Scan(schema.TypeMedicalReview)
			require.NoError(t, err)
			require.Empty(t, records)
		})
	}
}

func TestProcess_PersistenceFailureKeepsRecord(t *testing.T) {
	ex := &fakeExtractor{text: reviewResponse}
	p, st := newTestPipeline(t, ex)

	// A regular file where the record type directory belongs blocks the write
	blocker := filepath.Join(st.DataDir(), schema.TypeMedicalReview)
	require.NoError(t, os.MkdirAll(st.DataDir(), 0755))
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	res, err := p.Process(context.Background(), schema.TypeMedicalReview, "Patient reports high blood pressure.")
	require.True(t, errors.Is(err, errors.ErrPersistence), "got %v", err)
	require.False(t, res.OK())
	require.Nil(t, res.Envelope)

	require.NotNil(t, res.Record)
	require.False(t, res.Record.IsCommitted())
	diag, _ := res.Record.String("diagnosis")
	require.Equal(t, "Hypertension", diag)

	field, _ := res.Fields.Get("diagnosis")
	require.Equal(t, "Hypertension", field.Value)
	bmi, _ := res.Fields.Get("bmi")
	require.Equal(t, 24.22, bmi.Value)
	require.Len(t, auditFiles(t, st), 1)

	// The caller retries the write once the store is usable again
	require.NoError(t, os.Remove(blocker))
	env, err := st.Commit(context.Background(), res.Record, schema.TypeMedicalReview)
	require.NoError(t, err)
	require.Equal(t, "REV_20240115093000", env.RecordID)
	require.FileExists(t, env.Path)
}

func TestProcess_UsesLimiter(t *testing.T) {
	ex := &fakeExtractor{text: reviewResponse}
	lim := &countingLimiter{}
	p, _ := newTestPipeline(t, ex, WithLimiter(lim))

	_, err := p.Process(context.Background(), schema.TypeMedicalReview, "note")
	require.NoError(t, err)
	require.Equal(t, []string{"fake"}, lim.keys)

	lim.err = context.Canceled
	_, err = p.Process(context.Background(), schema.TypeMedicalReview, "note")
	require.True(t, errors.Is(err, errors.ErrExtractionFailed))
	require.Equal(t, 1, ex.calls)
}

func TestProcess_SameSecondCommitsGetDistinctIDs(t *testing.T) {
	ex := &fakeExtractor{text: reviewResponse}
	p, _ := newTestPipeline(t, ex)

	first, err := p.Process(context.Background(), schema.TypeMedicalReview, "one")
	require.NoError(t, err)
	second, err := p.Process(context.Background(), schema.TypeMedicalReview, "two")
	require.NoError(t, err)
	require.NotEqual(t, first.Envelope.RecordID, second.Envelope.RecordID)
	require.NotEqual(t, first.Envelope.Path, second.Envelope.Path)
}

func TestProcessAudio(t *testing.T) {
	ex := &fakeExtractor{text: `{"patientId": "4411", "screeningType": "Diabetes"}`}
	p, _ := newTestPipeline(t, ex, WithTranscriber(&fakeTranscriber{text: "Screening for diabetes, patient 4411."}))

	res, err := p.ProcessAudio(context.Background(), schema.TypeScreening, []byte("RIFF"), "visit.wav")
	require.NoError(t, err)
	require.Equal(t, "Screening for diabetes, patient 4411.", res.Transcript)

	id, _ := res.Fields.Get("patient_id")
	require.Equal(t, "PT-4411", id.Value)
	require.Contains(t, res.Envelope.RecordID, "SCR_")
}

func TestProcessAudio_TranscriptionFailureIsEmptyTranscript(t *testing.T) {
	ex := &fakeExtractor{text: reviewResponse}

	p, _ := newTestPipeline(t, ex, WithTranscriber(&fakeTranscriber{err: fmt.Errorf("unsupported format")}))
	_, err := p.ProcessAudio(context.Background(), schema.TypeMedicalReview, []byte("x"), "a.xyz")
	require.True(t, errors.Is(err, errors.ErrEmptyTranscript))

	p, _ = newTestPipeline(t, ex)
	_, err = p.ProcessAudio(context.Background(), schema.TypeMedicalReview, []byte("x"), "a.wav")
	require.True(t, errors.Is(err, errors.ErrEmptyTranscript))
	require.Equal(t, 0, ex.calls)
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "abc", truncate("abc", 5))
	require.Equal(t, "ab…", truncate("abc", 2))
	require.Equal(t, "°C…", truncate("°C°C", 2))
}
