package lexicon

import (
	"bufio"
	"cmp"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/ahrav/go-qgen/internal/ports"
)

// VectorTable is an in-memory phrase space read from a text vector file.
//
// The first line holds the row count and dimension. Each following line is
//
//	phrase|SENSE frequency v1 v2 ... vN
//
// where phrase uses underscores between words. Vectors are unit-normalized
// on load, so similarity is a dot product.
type VectorTable struct {
	dim   int
	keys  []ports.PhraseKey
	freqs []int64
	vecs  [][]float32
	index map[ports.PhraseKey]int
}

// LoadVectorTable reads a vector file from disk.
func LoadVectorTable(path string) (*VectorTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector table: %w", err)
	}
	defer f.Close()
	return ReadVectorTable(f)
}

// ReadVectorTable parses a vector file.
func ReadVectorTable(r io.Reader) (*VectorTable, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("failed to read header: %w", err)
		}
		return nil, fmt.Errorf("vector table is empty")
	}
	header := strings.Fields(sc.Text())
	if len(header) != 2 {
		return nil, fmt.Errorf("malformed header %q", sc.Text())
	}
	rows, err := strconv.Atoi(header[0])
	if err != nil || rows < 0 {
		return nil, fmt.Errorf("malformed row count %q", header[0])
	}
	dim, err := strconv.Atoi(header[1])
	if err != nil || dim <= 0 {
		return nil, fmt.Errorf("malformed dimension %q", header[1])
	}

	t := &VectorTable{
		dim:   dim,
		keys:  make([]ports.PhraseKey, 0, rows),
		freqs: make([]int64, 0, rows),
		vecs:  make([][]float32, 0, rows),
		index: make(map[ports.PhraseKey]int, rows),
	}
	line := 1
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != dim+2 {
			return nil, fmt.Errorf("line %d: %w: want %d fields, got %d", line, ports.ErrDimensionMismatch, dim+2, len(fields))
		}
		key, ok := parseKey(fields[0])
		if !ok {
			return nil, fmt.Errorf("line %d: malformed key %q", line, fields[0])
		}
		freq, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: malformed frequency: %w", line, err)
		}
		vec := make([]float32, dim)
		for i, f := range fields[2:] {
			v, err := strconv.ParseFloat(f, 32)
			if err != nil {
				return nil, fmt.Errorf("line %d: malformed component %d: %w", line, i, err)
			}
			vec[i] = float32(v)
		}
		t.add(key, freq, vec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read vector table: %w", err)
	}
	return t, nil
}

func parseKey(s string) (ports.PhraseKey, bool) {
	i := strings.LastIndexByte(s, '|')
	if i <= 0 || i == len(s)-1 {
		return ports.PhraseKey{}, false
	}
	return ports.PhraseKey{Phrase: s[:i], Sense: ports.Sense(s[i+1:])}, true
}

func (t *VectorTable) add(key ports.PhraseKey, freq int64, vec []float32) {
	normalize(vec)
	if i, ok := t.index[key]; ok {
		t.freqs[i], t.vecs[i] = freq, vec
		return
	}
	t.index[key] = len(t.keys)
	t.keys = append(t.keys, key)
	t.freqs = append(t.freqs, freq)
	t.vecs = append(t.vecs, vec)
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}

// Len returns the number of rows.
func (t *VectorTable) Len() int { return len(t.keys) }

// BestSense implements ports.PhraseSpace. The term is tried as written and
// lower-cased, with spaces joined by underscores.
func (t *VectorTable) BestSense(_ context.Context, term string, senses []ports.Sense) (ports.PhraseKey, bool, error) {
	spelled := strings.ReplaceAll(strings.TrimSpace(term), " ", "_")
	variants := []string{spelled}
	if lower := strings.ToLower(spelled); lower != spelled {
		variants = append(variants, lower)
	}

	best, bestFreq, found := ports.PhraseKey{}, int64(-1), false
	for _, phrase := range variants {
		for _, sense := range senses {
			key := ports.PhraseKey{Phrase: phrase, Sense: sense}
			if i, ok := t.index[key]; ok && t.freqs[i] > bestFreq {
				best, bestFreq, found = key, t.freqs[i], true
			}
		}
	}
	return best, found, nil
}

// MostSimilar implements ports.PhraseSpace with an exhaustive scan.
func (t *VectorTable) MostSimilar(ctx context.Context, key ports.PhraseKey, n int) ([]ports.Neighbor, error) {
	qi, ok := t.index[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s|%s", ports.ErrUnknownTerm, key.Phrase, key.Sense)
	}
	if n <= 0 {
		return nil, nil
	}
	q := t.vecs[qi]

	hits := make([]ports.Neighbor, 0, len(t.keys)-1)
	for i, v := range t.vecs {
		if i == qi {
			continue
		}
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		hits = append(hits, ports.Neighbor{Key: t.keys[i], Score: dot(q, v)})
	}
	slices.SortStableFunc(hits, func(a, b ports.Neighbor) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if len(hits) > n {
		hits = hits[:n]
	}
	return hits, nil
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
