package policy

import (
	"encoding/json"
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"
)

// checkpointFormat versions the on-disk blob so a future layout change
// can refuse stale files instead of mis-reading them.
const checkpointFormat = 1

// CheckpointError wraps a save/load failure. Persistence failures are
// reported to the caller and training continues in memory.
type CheckpointError struct {
	Op   string
	Path string
	Err  error
}

func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *CheckpointError) Unwrap() error {
	return e.Err
}

type checkpointFile struct {
	Format  int    `json:"format"`
	Version uint64 `json:"version"`

	In      int `json:"in"`
	Hidden  int `json:"hidden"`
	Actions int `json:"actions"`

	W1 []float64 `json:"w1"`
	B1 []float64 `json:"b1"`
	W2 []float64 `json:"w2"`
	B2 []float64 `json:"b2"`
	WV []float64 `json:"wv"`
	BV float64   `json:"bv"`
}

// Save writes the parameter version and update counter to path. The
// write goes through a temp file and rename so a crash mid-save cannot
// leave a truncated checkpoint behind.
func Save(path string, p *Params) error {
	in, hidden, actions := p.Dims()
	file := checkpointFile{
		Format:  checkpointFormat,
		Version: p.Version,
		In:      in,
		Hidden:  hidden,
		Actions: actions,
		W1:      append([]float64(nil), p.W1.RawMatrix().Data...),
		B1:      append([]float64(nil), p.B1.RawVector().Data...),
		W2:      append([]float64(nil), p.W2.RawMatrix().Data...),
		B2:      append([]float64(nil), p.B2.RawVector().Data...),
		WV:      append([]float64(nil), p.WV.RawVector().Data...),
		BV:      p.BV,
	}
	blob, err := json.Marshal(file)
	if err != nil {
		return &CheckpointError{Op: "save", Path: path, Err: err}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0644); err != nil {
		return &CheckpointError{Op: "save", Path: path, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		return &CheckpointError{Op: "save", Path: path, Err: err}
	}
	return nil
}

// Load reads a checkpoint back into a parameter set, restoring the
// update counter for resumable training.
func Load(path string) (*Params, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, &CheckpointError{Op: "load", Path: path, Err: err}
	}
	var file checkpointFile
	if err := json.Unmarshal(blob, &file); err != nil {
		return nil, &CheckpointError{Op: "load", Path: path, Err: err}
	}
	if file.Format != checkpointFormat {
		return nil, &CheckpointError{Op: "load", Path: path,
			Err: fmt.Errorf("unsupported format %d", file.Format)}
	}
	if len(file.W1) != file.Hidden*file.In ||
		len(file.B1) != file.Hidden ||
		len(file.W2) != file.Actions*file.Hidden ||
		len(file.B2) != file.Actions ||
		len(file.WV) != file.Hidden {
		return nil, &CheckpointError{Op: "load", Path: path,
			Err: fmt.Errorf("weight sizes do not match declared dimensions")}
	}
	return &Params{
		Version: file.Version,
		W1:      mat.NewDense(file.Hidden, file.In, file.W1),
		B1:      mat.NewVecDense(file.Hidden, file.B1),
		W2:      mat.NewDense(file.Actions, file.Hidden, file.W2),
		B2:      mat.NewVecDense(file.Actions, file.B2),
		WV:      mat.NewVecDense(file.Hidden, file.WV),
		BV:      file.BV,
	}, nil
}
