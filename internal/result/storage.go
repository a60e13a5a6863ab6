package result

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/signalnine/scriptgate/internal/config"
)

var (
	// ErrJobExists is returned when a job id has already been stored. Stores
	// are append-only.
	ErrJobExists   = errors.New("job already stored")
	ErrJobNotFound = errors.New("job not found")
)

// Store persists finished job records. Implementations never overwrite an
// existing record.
type Store interface {
	Save(ctx context.Context, job *JobRecord) error
	Load(ctx context.Context, jobID string) (*JobRecord, error)
	// List returns every stored job, oldest first.
	List(ctx context.Context) ([]*JobRecord, error)
	Close() error
}

// OpenStore opens the backend selected in cfg.
func OpenStore(cfg config.Results) (Store, error) {
	switch cfg.Backend {
	case "", "json":
		return NewJSONStore(cfg.Dir), nil
	case "sqlite":
		return OpenSQLite(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown results backend %q", cfg.Backend)
	}
}

// JSONStore writes one <job_id>.json file per job.
type JSONStore struct {
	Dir string
}

func NewJSONStore(dir string) *JSONStore {
	return &JSONStore{Dir: dir}
}

func validJobID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return fmt.Errorf("invalid job id %q", id)
	}
	return nil
}

func (s *JSONStore) path(id string) string {
	return filepath.Join(s.Dir, id+".json")
}

func (s *JSONStore) Save(_ context.Context, job *JobRecord) error {
	if err := validJobID(job.JobID); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("creating results dir: %w", err)
	}
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling job %s: %w", job.JobID, err)
	}
	f, err := os.OpenFile(s.path(job.JobID), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%s: %w", job.JobID, ErrJobExists)
	}
	if err != nil {
		return fmt.Errorf("creating job file: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("writing job %s: %w", job.JobID, err)
	}
	return f.Close()
}

func (s *JSONStore) Load(_ context.Context, id string) (*JobRecord, error) {
	if err := validJobID(id); err != nil {
		return nil, err
	}
	return readJob(s.path(id))
}

func readJob(path string) (*JobRecord, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrJobNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading job: %w", err)
	}
	var job JobRecord
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("parsing job %s: %w", filepath.Base(path), err)
	}
	return &job, nil
}

func (s *JSONStore) List(_ context.Context) ([]*JobRecord, error) {
	paths, err := filepath.Glob(filepath.Join(s.Dir, "job_*.json"))
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	jobs := make([]*JobRecord, 0, len(paths))
	for _, p := range paths {
		job, err := readJob(p)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	sortJobs(jobs)
	return jobs, nil
}

func (s *JSONStore) Close() error { return nil }

func sortJobs(jobs []*JobRecord) {
	sort.SliceStable(jobs, func(i, j int) bool {
		if !jobs[i].Timestamp.Equal(jobs[j].Timestamp) {
			return jobs[i].Timestamp.Before(jobs[j].Timestamp)
		}
		return jobs[i].JobID < jobs[j].JobID
	})
}
