package wordcloud

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/wayfind/internal/store"
)

func TestLoad_Defaults(t *testing.T) {
	tbl, err := Load(nil)
	require.NoError(t, err)

	words := tbl.Words()
	require.Len(t, words, 46)
	assert.Equal(t, Word{Word: "知识", Frequency: 95, Category: "learning"}, words[0])
}

func TestTable_PersistsOnChange(t *testing.T) {
	repo := store.NewRepository(store.NewMemory())
	tbl, err := Load(repo)
	require.NoError(t, err)

	require.NoError(t, tbl.Add("量子", 500, ""))
	require.NoError(t, tbl.Bump("量子"))
	require.NoError(t, tbl.Bump("新词"))
	ok, err := tbl.Remove("系统")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = tbl.SetFrequency("missing", 10)
	require.NoError(t, err)
	assert.False(t, ok)

	reloaded, err := Load(repo)
	require.NoError(t, err)
	words := reloaded.Words()

	byWord := map[string]Word{}
	for _, w := range words {
		byWord[w.Word] = w
	}
	assert.Equal(t, Word{Word: "量子", Frequency: 101, Category: "custom"}, byWord["量子"])
	assert.Equal(t, Word{Word: "新词", Frequency: 1, Category: "custom"}, byWord["新词"])
	assert.NotContains(t, byWord, "系统")
	assert.Len(t, words, 47)
}

func TestTable_BumpCaps(t *testing.T) {
	tbl, err := Load(nil)
	require.NoError(t, err)
	tbl.words = []Word{{Word: "w", Frequency: 999}}
	require.NoError(t, tbl.Bump("w"))
	assert.Equal(t, 999, tbl.Words()[0].Frequency)
}

func TestTable_Reset(t *testing.T) {
	tbl, err := Load(nil)
	require.NoError(t, err)
	require.NoError(t, tbl.Add("extra", 10, "x"))
	require.NoError(t, tbl.Reset())
	assert.Len(t, tbl.Words(), 46)
}

func TestParseCSV(t *testing.T) {
	words, err := ParseCSV(strings.NewReader("word,frequency,category\na,abc,x\nshort,1\nb, 7 ,y\n"))
	require.NoError(t, err)
	assert.Equal(t, []Word{
		{Word: "a", Frequency: 50, Category: "x"},
		{Word: "b", Frequency: 7, Category: "y"},
	}, words)
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	tbl, err := Load(nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, tbl.WriteCSV(&buf))
	words, err := ParseCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, tbl.Words(), words)
}

func TestSample(t *testing.T) {
	tbl, err := Load(nil)
	require.NoError(t, err)

	r := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		sample := tbl.Sample(r)
		assert.GreaterOrEqual(t, len(sample), 25)
		assert.Less(t, len(sample), 35)

		seen := map[string]bool{}
		for _, w := range sample {
			assert.False(t, seen[w.Word], "duplicate %q", w.Word)
			seen[w.Word] = true
			assert.GreaterOrEqual(t, w.Size, 20)
			assert.LessOrEqual(t, w.Size, 100)
		}
	}
}

func TestSample_SmallTable(t *testing.T) {
	tbl := &Table{words: []Word{{Word: "a", Frequency: 1}, {Word: "b", Frequency: 100}}}
	sample := tbl.Sample(rand.New(rand.NewSource(1)))
	assert.Len(t, sample, 2)
}
