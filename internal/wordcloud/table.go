// Package wordcloud keeps the table of suggested topic words shown on the home page.
//
// The table is loaded once (persisted copy first, embedded defaults otherwise), changed
// only through its methods, and written back to storage after every change.
package wordcloud

import (
	_ "embed"
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"strings"
	"sync"
)

//go:embed default.csv
var defaultCSV string

const (
	storageKey = "wordcloud/table"

	minFrequency    = 1
	maxFrequency    = 100
	maxBumped       = 999
	customCategory  = "custom"
	defaultFreq     = 50
	minSampleSize   = 25
	sampleSizeRange = 10
	minDisplaySize  = 20
)

// Word is one row of the table
type Word struct {
	Word      string `json:"word"`
	Frequency int    `json:"frequency"`
	Category  string `json:"category"`
}

// Weighted is a sampled word with its display size
type Weighted struct {
	Word string `json:"word"`
	Size int    `json:"size"`
}

// JSONStore persists the table
type JSONStore interface {
	GetJSON(key string, v any) (bool, error)
	SetJSON(key string, v any) error
}

// Table is the word suggestion table
type Table struct {
	mu    sync.Mutex
	words []Word
	store JSONStore
}

// Load reads the persisted table, falling back to the embedded defaults
func Load(store JSONStore) (*Table, error) {
	t := &Table{store: store}
	if store != nil {
		var words []Word
		ok, err := store.GetJSON(storageKey, &words)
		if err != nil {
			return nil, fmt.Errorf("load word table: %w", err)
		}
		if ok && len(words) > 0 {
			t.words = words
			return t, nil
		}
	}
	words, err := ParseCSV(strings.NewReader(defaultCSV))
	if err != nil {
		return nil, err
	}
	t.words = words
	return t, nil
}

// ParseCSV reads word,frequency,category rows after a header line. Rows with
// fewer than three columns are skipped; unreadable frequencies become 50.
func ParseCSV(r io.Reader) ([]Word, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse word csv: %w", err)
	}

	var words []Word
	for i, rec := range records {
		if i == 0 || len(rec) < 3 {
			continue
		}
		freq, err := strconv.Atoi(strings.TrimSpace(rec[1]))
		if err != nil || freq == 0 {
			freq = defaultFreq
		}
		words = append(words, Word{
			Word:      strings.TrimSpace(rec[0]),
			Frequency: freq,
			Category:  strings.TrimSpace(rec[2]),
		})
	}
	return words, nil
}

// WriteCSV writes the table in the format ParseCSV reads
func (t *Table) WriteCSV(w io.Writer) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"word", "frequency", "category"}); err != nil {
		return err
	}
	for _, wd := range t.words {
		if err := cw.Write([]string{wd.Word, strconv.Itoa(wd.Frequency), wd.Category}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Words returns a copy of the table
func (t *Table) Words() []Word {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Word(nil), t.words...)
}

// Add inserts a word or updates the existing row
func (t *Table) Add(word string, frequency int, category string) error {
	word = strings.TrimSpace(word)
	if word == "" {
		return fmt.Errorf("word is required")
	}
	if category == "" {
		category = customCategory
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	freq := clamp(frequency, minFrequency, maxFrequency)
	if i := t.indexLocked(word); i >= 0 {
		t.words[i].Frequency = freq
		t.words[i].Category = category
	} else {
		t.words = append(t.words, Word{Word: word, Frequency: freq, Category: category})
	}
	return t.saveLocked()
}

// Remove deletes a word. It reports whether the word existed.
func (t *Table) Remove(word string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.indexLocked(word)
	if i < 0 {
		return false, nil
	}
	t.words = append(t.words[:i], t.words[i+1:]...)
	return true, t.saveLocked()
}

// SetFrequency changes the weight of a word. It reports whether the word existed.
func (t *Table) SetFrequency(word string, frequency int) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.indexLocked(word)
	if i < 0 {
		return false, nil
	}
	t.words[i].Frequency = clamp(frequency, minFrequency, maxFrequency)
	return true, t.saveLocked()
}

// Bump records that a word was submitted as a topic
func (t *Table) Bump(word string) error {
	word = strings.TrimSpace(word)
	if word == "" {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if i := t.indexLocked(word); i >= 0 {
		t.words[i].Frequency = min(t.words[i].Frequency+1, maxBumped)
	} else {
		t.words = append(t.words, Word{Word: word, Frequency: minFrequency, Category: customCategory})
	}
	return t.saveLocked()
}

// Reset restores the embedded defaults
func (t *Table) Reset() error {
	words, err := ParseCSV(strings.NewReader(defaultCSV))
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.words = words
	return t.saveLocked()
}

// Sample draws 25 to 34 words. Each shuffled candidate is kept with probability
// frequency/100; the sample is then topped up from the remaining candidates.
func (t *Table) Sample(r *rand.Rand) []Weighted {
	words := t.Words()
	r.Shuffle(len(words), func(i, j int) { words[i], words[j] = words[j], words[i] })

	count := minSampleSize + r.Intn(sampleSizeRange)
	picked := make([]bool, len(words))
	var selected []Word
	for i := 0; i < min(count, len(words)); i++ {
		if r.Float64() < float64(words[i].Frequency)/100 {
			picked[i] = true
			selected = append(selected, words[i])
		}
	}
	for i := 0; i < len(words) && len(selected) < count; i++ {
		if !picked[i] {
			picked[i] = true
			selected = append(selected, words[i])
		}
	}

	out := make([]Weighted, len(selected))
	for i, w := range selected {
		out[i] = Weighted{Word: w.Word, Size: clamp(w.Frequency, minDisplaySize, maxFrequency)}
	}
	return out
}

func (t *Table) indexLocked(word string) int {
	for i, w := range t.words {
		if w.Word == word {
			return i
		}
	}
	return -1
}

func (t *Table) saveLocked() error {
	if t.store == nil {
		return nil
	}
	if err := t.store.SetJSON(storageKey, t.words); err != nil {
		return fmt.Errorf("save word table: %w", err)
	}
	return nil
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
