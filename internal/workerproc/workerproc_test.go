package workerproc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/analysis"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/chats"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/queue"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/shared/storage/object/local"
)

var (
	testStart = time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	testEnd   = time.Date(2026, 2, 6, 23, 59, 59, 999_000_000, time.UTC)
)

type stubAnalyzer struct {
	mu    sync.Mutex
	calls []string
	fail  func(chatID string) error
}

func (s *stubAnalyzer) AnalyzeFull(ctx context.Context, chat *chats.Chat) (*analysis.Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, chat.ID)
	s.mu.Unlock()

	if s.fail != nil {
		if err := s.fail(chat.ID); err != nil {
			return nil, err
		}
	}

	res := &analysis.Result{
		ChatID:       chat.ID,
		ModelVersion: "test-model",
		ProcessingMS: 5,
		AnalyzedAt:   testStart,
	}
	res.CX = analysis.CXAnalysis{
		Sentiment:           "positivo",
		HumanizationScore:   4,
		NPSPrediction:       8,
		ResolutionStatus:    "resolvido",
		SatisfactionComment: "ok",
	}
	res.Product = analysis.ProductAnalysis{Category: "estetica", InterestLevel: "alto"}
	res.Sales = analysis.SalesAnalysis{
		FunnelStage: "negociacao",
		Outcome:     "em_andamento",
		LeadType:    "clinica",
		NextStep:    "follow-up",
		Urgency:     "media",
	}
	res.QA = analysis.QAAnalysis{ResponseTimeQuality: "adequado", OverallScore: 4}
	return res, nil
}

func (s *stubAnalyzer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func testChats(n int) []*chats.Chat {
	list := make([]*chats.Chat, 0, n)
	base := time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("chat-%03d", i+1)
		list = append(list, &chats.Chat{
			ID:      id,
			Channel: "whatsapp",
			Contact: chats.Contact{ID: "c-" + id, Name: "Cliente"},
			Agent:   &chats.Agent{ID: "a-1", Name: "Ana"},
			Messages: []chats.Message{
				{ID: id + "-m1", Body: "olá, preciso de orçamento", At: base, SentBy: &chats.Sender{Type: "contact"}, ChatID: id},
				{ID: id + "-m2", Body: "claro, segue a tabela", At: base.Add(2 * time.Minute), SentBy: &chats.Sender{Type: "agent"}, ChatID: id},
			},
			Status: "closed",
		})
	}
	return list
}

func sliceFactory(list []*chats.Chat) SourceFactory {
	return func(ctx context.Context, job queue.BatchJob) (chats.Source, error) {
		return chats.NewSliceSource(list), nil
	}
}

func newTestProcessor(t *testing.T, list []*chats.Chat) (*Processor, *analysis.MemoryRepo, *stubAnalyzer) {
	t.Helper()
	repo := analysis.NewMemoryRepo()
	stub := &stubAnalyzer{}
	pipeline := analysis.NewPipeline(stub, repo, "empresa.com.br")
	proc := NewProcessor(pipeline, repo, sliceFactory(list))
	return proc, repo, stub
}

func encodedJob(t *testing.T, job queue.BatchJob) []byte {
	t.Helper()
	body, err := queue.EncodeJob(job)
	if err != nil {
		t.Fatalf("encode job: %v", err)
	}
	return body
}

func TestParseJob(t *testing.T) {
	valid := queue.NewBatchJob(testStart, testEnd, 0)
	validBody, err := queue.EncodeJob(valid)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	t.Run("valid", func(t *testing.T) {
		job, meta, err := ParseJob(validBody)
		if err != nil {
			t.Fatalf("ParseJob: %v", err)
		}
		if job.JobID != valid.JobID {
			t.Fatalf("job id = %q, want %q", job.JobID, valid.JobID)
		}
		if meta.BodyLen != len(validBody) || meta.BodySHA == "" {
			t.Fatalf("meta = %+v", meta)
		}
	})

	t.Run("empty body", func(t *testing.T) {
		_, _, err := ParseJob([]byte("   "))
		var emptyErr ErrEmptyBody
		if !errors.As(err, &emptyErr) {
			t.Fatalf("err = %v, want ErrEmptyBody", err)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		_, _, err := ParseJob([]byte("{not json"))
		var decodeErr ErrDecode
		if !errors.As(err, &decodeErr) {
			t.Fatalf("err = %v, want ErrDecode", err)
		}
	})

	t.Run("fails validation", func(t *testing.T) {
		_, _, err := ParseJob([]byte(`{"jobId":"","version":1}`))
		var invalidErr ErrInvalidJob
		if !errors.As(err, &invalidErr) {
			t.Fatalf("err = %v, want ErrInvalidJob", err)
		}
	})
}

func TestHandleMessageRunsBatch(t *testing.T) {
	proc, repo, stub := newTestProcessor(t, testChats(3))
	archive := local.New(t.TempDir())
	proc.Archive = archive

	job := queue.NewBatchJob(testStart, testEnd, 0)
	if err := proc.HandleMessage(context.Background(), encodedJob(t, job)); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	if stub.callCount() != 3 {
		t.Fatalf("analyzer calls = %d, want 3", stub.callCount())
	}
	stored, err := repo.LoadResults(context.Background(), testStart)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(stored) != 3 {
		t.Fatalf("stored = %d, want 3", len(stored))
	}

	rc, err := archive.Get(context.Background(), ArchiveKey(testStart))
	if err != nil {
		t.Fatalf("archive get: %v", err)
	}
	defer rc.Close()
	blob, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("archive read: %v", err)
	}
	var report analysis.BatchReport
	if err := json.Unmarshal(blob, &report); err != nil {
		t.Fatalf("archive decode: %v", err)
	}
	if report.Processed != 3 || len(report.Results) != 3 {
		t.Fatalf("archived report = %+v", report)
	}
}

func TestHandleMessageSkipsAlreadyAnalyzed(t *testing.T) {
	list := testChats(3)
	proc, repo, stub := newTestProcessor(t, list)

	job := queue.NewBatchJob(testStart, testEnd, 0)
	if err := proc.HandleMessage(context.Background(), encodedJob(t, job)); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := proc.HandleMessage(context.Background(), encodedJob(t, job)); err != nil {
		t.Fatalf("second run: %v", err)
	}

	// The checkpoint skips every chat on the second pass.
	if stub.callCount() != 3 {
		t.Fatalf("analyzer calls = %d, want 3", stub.callCount())
	}
	stored, err := repo.LoadResults(context.Background(), testStart)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(stored) != 3 {
		t.Fatalf("stored = %d, want 3", len(stored))
	}
}

func TestRunSurfacesSaveFailure(t *testing.T) {
	proc, repo, _ := newTestProcessor(t, testChats(2))
	repo.FailSaveAfter = 1

	err := proc.Run(context.Background(), queue.NewBatchJob(testStart, testEnd, 0))
	if err == nil {
		t.Fatal("expected save failure")
	}
	if !errors.Is(err, analysis.ErrStorageWrite) {
		t.Fatalf("err = %v, want ErrStorageWrite", err)
	}
}

func TestHandleMessageWrapsRunFailure(t *testing.T) {
	proc, repo, _ := newTestProcessor(t, testChats(2))
	repo.FailSaveAfter = 1

	job := queue.NewBatchJob(testStart, testEnd, 0)
	err := proc.HandleMessage(context.Background(), encodedJob(t, job))
	var procErr ErrProcess
	if !errors.As(err, &procErr) {
		t.Fatalf("err = %v, want ErrProcess", err)
	}
	if procErr.JobID != job.JobID {
		t.Fatalf("job id = %q, want %q", procErr.JobID, job.JobID)
	}
}

type failingStore struct{}

func (failingStore) Put(ctx context.Context, key, contentType string, r io.Reader) (int64, error) {
	return 0, errors.New("bucket offline")
}

func (failingStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return nil, errors.New("bucket offline")
}

func (failingStore) Delete(ctx context.Context, key string) error {
	return errors.New("bucket offline")
}

func TestArchiveFailureDoesNotFailRun(t *testing.T) {
	proc, repo, _ := newTestProcessor(t, testChats(2))
	proc.Archive = failingStore{}

	if err := proc.Run(context.Background(), queue.NewBatchJob(testStart, testEnd, 0)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	stored, err := repo.LoadResults(context.Background(), testStart)
	if err != nil || len(stored) != 2 {
		t.Fatalf("stored = %d (%v), want 2", len(stored), err)
	}
}

func TestSourceFactoryFailure(t *testing.T) {
	repo := analysis.NewMemoryRepo()
	pipeline := analysis.NewPipeline(&stubAnalyzer{}, repo, "empresa.com.br")
	proc := NewProcessor(pipeline, repo, func(ctx context.Context, job queue.BatchJob) (chats.Source, error) {
		return nil, errors.New("export file missing")
	})

	err := proc.Run(context.Background(), queue.NewBatchJob(testStart, testEnd, 0))
	if err == nil || !strings.Contains(err.Error(), "build source") {
		t.Fatalf("err = %v, want build source failure", err)
	}
}

func TestArchiveKey(t *testing.T) {
	key := ArchiveKey(time.Date(2026, 2, 2, 3, 0, 0, 0, time.FixedZone("BRT", -3*3600)))
	if key != "archives/analysis_2026-02-02.json" {
		t.Fatalf("key = %q", key)
	}
}
