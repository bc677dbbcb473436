package storage

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/san-kum/chsim/internal/config"
	"github.com/san-kum/chsim/internal/lattice"
	"github.com/san-kum/chsim/internal/sim"
)

const (
	ParamsFile   = "input.txt"
	SnapshotFile = "lattice.dat"
	EnergyFile   = "freeEnergy.dat"
	FinalFile    = "final.dat"
	DensityFile  = "freeEnergyDensity.dat"
	MetadataFile = "metadata.json"
)

type Store struct {
	baseDir string
	log     *slog.Logger
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir, log: slog.Default()}
}

// WithLogger returns a copy of the store that logs to l.
func (s *Store) WithLogger(l *slog.Logger) *Store {
	return &Store{baseDir: s.baseDir, log: l}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir(runID string) string {
	return filepath.Join(s.baseDir, runID)
}

type RunMetadata struct {
	ID            string             `json:"id"`
	Timestamp     time.Time          `json:"timestamp"`
	Params        config.Params      `json:"params"`
	Steps         int                `json:"steps"`
	InitialEnergy float64            `json:"initial_energy"`
	FinalEnergy   float64            `json:"final_energy"`
	Metrics       map[string]float64 `json:"metrics"`
	Elapsed       float64            `json:"elapsed_seconds"`
	Diverged      bool               `json:"diverged,omitempty"`
}

// Create opens the run directory named by p.Output, or by the current time
// when it is empty, and writes the parameter record. The returned Run is a
// sim.Observer that streams snapshots and free energies into the directory.
func (s *Store) Create(p config.Params) (*Run, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	now := time.Now()
	if p.Output == "" {
		p.Output = now.Format(config.TimestampLayout)
	}
	dir := s.Dir(p.Output)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	if err := os.WriteFile(filepath.Join(dir, ParamsFile), []byte(p.String()), 0644); err != nil {
		return nil, err
	}

	snap, err := os.Create(filepath.Join(dir, SnapshotFile))
	if err != nil {
		return nil, err
	}
	energy, err := os.Create(filepath.Join(dir, EnergyFile))
	if err != nil {
		snap.Close()
		return nil, err
	}

	s.log.Debug("run directory created", "dir", dir, "animate", p.Animate)

	return &Run{
		ID:        p.Output,
		Params:    p,
		dir:       dir,
		created:   now,
		log:       s.log.With("run", p.Output),
		snapFile:  snap,
		snapshots: NewSnapshotWriter(snap, p.Animate),
		energyOut: energy,
		energy:    NewEnergyLog(energy),
	}, nil
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir(runID), MetadataFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%s: %w", runID, err)
	}
	return &meta, nil
}

type EnergyPoint struct {
	Step   int
	Energy float64
}

func (s *Store) LoadEnergy(runID string) ([]EnergyPoint, error) {
	f, err := os.Open(filepath.Join(s.Dir(runID), EnergyFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}
	defer f.Close()
	return ReadEnergy(f)
}

// ReadEnergy parses a free energy log. Blank lines are ignored.
func ReadEnergy(r io.Reader) ([]EnergyPoint, error) {
	points := make([]EnergyPoint, 0)
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w: line %d has %d fields", ErrMalformedEnergy, line, len(fields))
		}
		step, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedEnergy, line, err)
		}
		energy, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedEnergy, line, err)
		}
		points = append(points, EnergyPoint{Step: step, Energy: energy})
	}
	return points, sc.Err()
}

// LoadFrame decodes a single-frame file of a run (FinalFile or DensityFile)
// into l, which must have the run's shape. SnapshotFile holds a series and is
// read with lattice.FrameReader.
func (s *Store) LoadFrame(runID, name string, l *lattice.Lattice) error {
	f, err := os.Open(filepath.Join(s.Dir(runID), name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s/%s", ErrRunNotFound, runID, name)
		}
		return err
	}
	defer f.Close()
	if err := lattice.Decode(f, l); err != nil {
		return fmt.Errorf("%s/%s: %w", runID, name, err)
	}
	return nil
}

// LoadLattice builds a lattice from the run's parameters and fills it from
// the named frame file.
func (s *Store) LoadLattice(runID, name string) (*lattice.Lattice, *RunMetadata, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	l, err := meta.Params.NewLattice()
	if err != nil {
		return nil, nil, err
	}
	if err := s.LoadFrame(runID, name, l); err != nil {
		return nil, nil, err
	}
	return l, meta, nil
}

// WriteMetadata writes meta as indented JSON.
func WriteMetadata(w io.Writer, meta *RunMetadata) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

// Run is one open run directory.
type Run struct {
	ID     string
	Params config.Params

	dir     string
	created time.Time
	log     *slog.Logger

	snapFile  *os.File
	snapshots *SnapshotWriter
	energyOut *os.File
	energy    *EnergyLog
	closed    bool
}

func (r *Run) Dir() string { return r.dir }

// OnStep implements sim.Observer. Step 0 always writes a frame and its
// energy. Later steps log their energy, except in animate mode where every
// SnapshotEvery-th step rewrites the frame instead.
func (r *Run) OnStep(f *sim.Frame) error {
	if r.closed {
		return ErrRunClosed
	}

	wroteFrame := false
	if f.Step == 0 || (r.Params.Animate && f.Step%r.Params.SnapshotEvery == 0) {
		if err := r.snapshots.Write(f.Lattice); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
		wroteFrame = true
		if f.Step > 0 {
			r.log.Debug("snapshot written", "step", f.Step, "energy", f.Energy())
		}
	}

	if f.Step == 0 || !wroteFrame {
		if err := r.energy.Log(f.Step, f.Energy()); err != nil {
			return fmt.Errorf("write energy: %w", err)
		}
	}
	return nil
}

// Finish writes the final frame, its free energy density and the metadata
// record.
func (r *Run) Finish(res *sim.Result, elapsed time.Duration) error {
	if r.closed {
		return ErrRunClosed
	}
	if err := r.energy.Flush(); err != nil {
		return err
	}

	if res.Final != nil {
		if err := writeFile(filepath.Join(r.dir, FinalFile), res.Final.WriteTo); err != nil {
			return err
		}
		if err := writeFile(filepath.Join(r.dir, DensityFile), res.Final.WriteFreeEnergyDensityTo); err != nil {
			return err
		}
	}

	meta := RunMetadata{
		ID:        r.ID,
		Timestamp: r.created,
		Params:    r.Params,
		Steps:     res.StepsTaken,
		Metrics:   make(map[string]float64, len(res.Metrics)),
		Elapsed:   elapsed.Seconds(),
	}
	// JSON has no NaN or Inf; a diverged run keeps only its finite values.
	keep := func(v float64) float64 {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			meta.Diverged = true
			return 0
		}
		return v
	}
	meta.InitialEnergy = keep(res.InitialEnergy)
	meta.FinalEnergy = keep(res.FinalEnergy)
	for name, v := range res.Metrics {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			meta.Diverged = true
			continue
		}
		meta.Metrics[name] = v
	}
	if meta.Diverged {
		r.log.Warn("run diverged, non-finite energies left out of metadata")
	}
	f, err := os.Create(filepath.Join(r.dir, MetadataFile))
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteMetadata(f, &meta)
}

// Close flushes and closes the stream files. It is safe to call more than
// once.
func (r *Run) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	err := r.energy.Flush()
	if cerr := r.energyOut.Close(); err == nil {
		err = cerr
	}
	if cerr := r.snapFile.Close(); err == nil {
		err = cerr
	}
	return err
}

func writeFile(path string, write func(io.Writer) (int64, error)) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
