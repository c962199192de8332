package report

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/deixis/ohosbuild/internal/runner"
	"github.com/google/uuid"
)

func newRun(kind Kind, steps ...Step) *RunResult {
	return &RunResult{ID: uuid.New().String(), Kind: kind, Started: time.Now(), Steps: steps}
}

func TestStepFromResult_Pass(t *testing.T) {
	res := &runner.Result{Command: "git apply x.patch", Dir: "src/skia", Code: 0, Stdout: "ok\n"}
	s := StepFromResult("0001", "patch", res)
	if s.Status != StatusPass {
		t.Errorf("Status = %q, want pass", s.Status)
	}
	if s.Outcome != "success" {
		t.Errorf("Outcome = %q, want success", s.Outcome)
	}
	if s.Error != "" {
		t.Errorf("Error = %q, want empty", s.Error)
	}
}

func TestStepFromResult_Timeout(t *testing.T) {
	res := &runner.Result{
		Command: "sleep 10",
		Code:    runner.CodeTimeout,
		Err:     &runner.TimeoutError{Command: "sleep 10", Timeout: time.Second},
	}
	s := StepFromResult("", "exec", res)
	if s.Status != StatusFail {
		t.Errorf("Status = %q, want fail", s.Status)
	}
	if s.Outcome != "timeout" {
		t.Errorf("Outcome = %q, want timeout", s.Outcome)
	}
	if !strings.Contains(s.Error, "sleep 10") {
		t.Errorf("Error = %q, want to mention the command", s.Error)
	}
}

func TestByTaskAndFailed(t *testing.T) {
	rr := newRun(Setup,
		Step{Task: "a", Status: StatusPass},
		Step{Task: "b", Status: StatusFail},
		Step{Task: "a", Status: StatusFail},
		Step{Task: "c", Status: StatusSkipped},
	)
	if got := ByTask(rr, "a"); len(got) != 2 {
		t.Errorf("ByTask(a) = %d steps, want 2", len(got))
	}
	if got := Failed(rr); len(got) != 2 || got[0].Task != "b" {
		t.Errorf("Failed = %+v, want b then a", got)
	}
	if rr.Passed() {
		t.Error("Passed() = true, want false")
	}
	counts := rr.Counts()
	if counts[StatusPass] != 1 || counts[StatusFail] != 2 || counts[StatusSkipped] != 1 {
		t.Errorf("Counts = %v", counts)
	}
}

func TestExpect(t *testing.T) {
	rr := newRun(Stash)
	if err := rr.Expect(Stash); err != nil {
		t.Errorf("Expect(stash): %v", err)
	}
	if err := rr.Expect(Sync); err == nil {
		t.Error("Expect(sync) on a stash run: want error")
	}
}

func TestDiskStore_RoundTrip(t *testing.T) {
	s := NewDiskStore(t.TempDir())
	rr := newRun(Exec, Step{Command: "echo hi", Status: StatusPass, Stdout: "hi\n", Duration: 5 * time.Millisecond})
	if err := s.Save(rr); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(rr.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Kind != Exec || len(got.Steps) != 1 || got.Steps[0].Stdout != "hi\n" {
		t.Errorf("Load = %+v", got)
	}
}

func TestDiskStore_RejectsNonUUID(t *testing.T) {
	s := NewDiskStore(t.TempDir())
	if _, err := s.Load("../../etc/passwd"); err == nil {
		t.Fatal("expected error for path-like run id")
	}
}

func TestDiskStore_List(t *testing.T) {
	s := NewDiskStore(t.TempDir())
	first := newRun(Setup)
	second := newRun(Reverse)
	if err := s.Save(first); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	if err := s.Save(second); err != nil {
		t.Fatal(err)
	}

	ids, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 2 || ids[0] != second.ID || ids[1] != first.ID {
		t.Errorf("List = %v, want [%s %s]", ids, second.ID, first.ID)
	}
}

func TestDiskStore_LazyTempDir(t *testing.T) {
	s := NewDiskStore("")
	rr := newRun(Exec)
	if err := s.Save(rr); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := s.Load(rr.ID); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

// countingStore records backing-store traffic.
type countingStore struct {
	runs  map[string]*RunResult
	loads int
}

func (c *countingStore) Save(r *RunResult) error {
	if c.runs == nil {
		c.runs = make(map[string]*RunResult)
	}
	c.runs[r.ID] = r
	return nil
}

func (c *countingStore) Load(id string) (*RunResult, error) {
	c.loads++
	r, ok := c.runs[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return r, nil
}

func TestLRUStore_HitAndEvict(t *testing.T) {
	back := &countingStore{}
	s := NewLRUStore(2, back)

	a, b, c := newRun(Exec), newRun(Exec), newRun(Exec)
	for _, r := range []*RunResult{a, b, c} {
		if err := s.Save(r); err != nil {
			t.Fatal(err)
		}
	}
	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2", s.Len())
	}

	if _, err := s.Load(c.ID); err != nil {
		t.Fatal(err)
	}
	if back.loads != 0 {
		t.Errorf("backing loads = %d after cache hit, want 0", back.loads)
	}

	// a was evicted and must come from the backing store.
	got, err := s.Load(a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got != a || back.loads != 1 {
		t.Errorf("Load(a) = %p with %d backing loads, want %p with 1", got, back.loads, a)
	}

	// Promoted on miss.
	if _, err := s.Load(a.ID); err != nil {
		t.Fatal(err)
	}
	if back.loads != 1 {
		t.Errorf("backing loads = %d after promotion, want 1", back.loads)
	}
}

func TestLRUStore_MissPropagatesError(t *testing.T) {
	s := NewLRUStore(0, &countingStore{})
	if _, err := s.Load(uuid.New().String()); err == nil {
		t.Fatal("expected error for unknown run")
	}
}
