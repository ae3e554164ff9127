// Package export writes evolution trajectories to CSV and JSON for external
// tooling. Only the tier-0 (physical) block is exported; the auxiliary tiers
// are solver state, not observables.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/rvats/qprop/internal/evolve"
)

// CSV writes one row per snapshot: time, then re/im pairs of the tier-0
// block in column order.
func CSV(path string, res *evolve.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	if len(res.States) == 0 {
		return nil
	}

	dim := res.States[0].Dim
	header := []string{"time"}
	for j := 0; j < dim; j++ {
		for i := 0; i < dim; i++ {
			header = append(header, fmt.Sprintf("re_%d%d", i, j), fmt.Sprintf("im_%d%d", i, j))
		}
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for k, s := range res.States {
		row := []string{strconv.FormatFloat(res.Times[k], 'g', -1, 64)}
		for idx := 0; idx < dim*dim; idx++ {
			v := s.Data[idx]
			row = append(row,
				strconv.FormatFloat(real(v), 'g', -1, 64),
				strconv.FormatFloat(imag(v), 'g', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

type jsonData struct {
	Model    string             `json:"model"`
	Solver   string             `json:"solver"`
	Times    []float64          `json:"times"`
	Re       [][]float64        `json:"re"`
	Im       [][]float64        `json:"im"`
	Dim      int                `json:"dim"`
	Metrics  map[string]float64 `json:"metrics,omitempty"`
	Steps    int                `json:"steps"`
	Rejected int                `json:"rejected"`
	Evals    int                `json:"evals"`
}

// JSON writes the trajectory with run metadata, indent style matching the
// rest of the tooling.
func JSON(path, model, solver string, res *evolve.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return encodeJSON(file, model, solver, res)
}

// JSONStdout writes the same document to stdout.
func JSONStdout(model, solver string, res *evolve.Result) error {
	return encodeJSON(os.Stdout, model, solver, res)
}

func encodeJSON(file *os.File, model, solver string, res *evolve.Result) error {
	dim := 0
	if len(res.States) > 0 {
		dim = res.States[0].Dim
	}
	data := jsonData{
		Model:    model,
		Solver:   solver,
		Times:    res.Times,
		Re:       make([][]float64, len(res.States)),
		Im:       make([][]float64, len(res.States)),
		Dim:      dim,
		Metrics:  res.Metrics,
		Steps:    res.Stats.Steps,
		Rejected: res.Stats.Rejected,
		Evals:    res.Stats.Evals,
	}
	for k, s := range res.States {
		sup := dim * dim
		re := make([]float64, sup)
		im := make([]float64, sup)
		for i := 0; i < sup; i++ {
			re[i] = real(s.Data[i])
			im[i] = imag(s.Data[i])
		}
		data.Re[k] = re
		data.Im[k] = im
	}

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
