// Package labels maps classifier output indices to display strings.
package labels

import (
	"bufio"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Unknown is the label reported for indices missing from a table.
const Unknown = "Unknown"

// defaultLabels is the built-in vocabulary, indexed by class.
var defaultLabels = []string{
	"Hello", "Thank you", "Please", "Sorry", "Yes", "No", "Good", "Bad",
	"Love", "Help", "Water", "Food", "Eat", "Drink", "Sleep", "Go",
	"Come", "Stop", "Start", "More", "Less", "Big", "Small", "Hot",
	"Cold", "Happy", "Sad", "Angry", "Scared", "Tired", "Sick", "Better",
}

// Table maps class indices to labels. The zero value is an empty table.
type Table map[int]string

// Default returns a fresh copy of the built-in table.
func Default() Table {
	t := make(Table, len(defaultLabels))
	for i, l := range defaultLabels {
		t[i] = l
	}
	return t
}

// Lookup returns the label for idx, or Unknown when there is none.
func (t Table) Lookup(idx int) string {
	if l, ok := t[idx]; ok && l != "" {
		return l
	}
	return Unknown
}

// Len returns the number of classes in the table.
func (t Table) Len() int {
	return len(t)
}

// Span returns one past the highest class index, so a classifier drawing
// from [0, Span) can reach every entry of a sparse table.
func (t Table) Span() int {
	n := 0
	for i := range t {
		if i+1 > n {
			n = i + 1
		}
	}
	return n
}

// Indices returns the table's class indices in ascending order.
func (t Table) Indices() []int {
	idx := make([]int, 0, len(t))
	for i := range t {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}

// Parse reads a label mapping with one "label,index" pair per line.
// Blank lines and lines that do not parse are skipped. The label is
// everything before the last comma, so labels may themselves contain commas.
func Parse(r io.Reader) (Table, error) {
	t := make(Table)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		cut := strings.LastIndex(line, ",")
		if cut <= 0 {
			continue
		}

		label := strings.TrimSpace(line[:cut])
		idx, err := strconv.Atoi(strings.TrimSpace(line[cut+1:]))
		if err != nil || label == "" || idx < 0 {
			continue
		}
		t[idx] = label
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

// Load reads a label mapping file. See Parse for the format.
func Load(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Parse(f)
}
