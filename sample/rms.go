package sample

import (
	"math"
	"math/cmplx"

	"github.com/solvithrastar/vecfit/model"
)

// RMSError returns the root-mean-square error magnitude between the sampled
// responses and the fitted model, sqrt(mean(|H - H_fit|^2)), accumulated
// over the selected row and column subsets. Nil subsets select all rows or
// all columns.
func (s *Samples) RMSError(m *model.Model, rows, cols []int, t ParameterType) (float64, error) {
	if err := m.Validate(); err != nil {
		return 0, err
	}
	n := s.NumPorts()
	if rows == nil {
		rows = allIndices(n)
	}
	if cols == nil {
		cols = allIndices(n)
	}
	resp, err := s.Responses(t)
	if err != nil {
		return 0, err
	}

	var meanSq float64
	for _, i := range rows {
		for _, j := range cols {
			fit, err := m.Response(i, j, s.Freqs)
			if err != nil {
				return 0, err
			}
			var sum float64
			for k := range s.Freqs {
				d := cmplx.Abs(resp[i*n+j][k] - fit[k])
				sum += d * d
			}
			meanSq += sum / float64(len(s.Freqs))
		}
	}
	return math.Sqrt(meanSq), nil
}

func allIndices(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}
