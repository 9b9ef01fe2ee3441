package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
)

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoad_PlainText(t *testing.T) {
	dir := t.TempDir()
	p := write(t, dir, "notes.TXT", "Agentic AI plans and acts.")

	pages, err := New(nil).Load(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, domain.Page{Source: "notes.TXT", Number: 0, Text: "Agentic AI plans and acts."}, pages[0])
}

func TestLoad_Markdown(t *testing.T) {
	p := write(t, t.TempDir(), "readme.md", "# Title\n\nBody")
	pages, err := New(nil).Load(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "# Title\n\nBody", pages[0].Text)
}

func TestLoad_Missing(t *testing.T) {
	_, err := New(nil).Load(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"))
	require.ErrorIs(t, err, domain.ErrSourceNotFound)
}

func TestLoad_Unsupported(t *testing.T) {
	p := write(t, t.TempDir(), "table.csv", "a,b")
	_, err := New(nil).Load(context.Background(), p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")
}

func TestLoad_Directory(t *testing.T) {
	_, err := New(nil).Load(context.Background(), t.TempDir())
	require.Error(t, err)
}

func TestLoad_CorruptPDF(t *testing.T) {
	p := write(t, t.TempDir(), "broken.pdf", "not a pdf at all")
	_, err := New(nil).Load(context.Background(), p)
	require.Error(t, err)
}

func TestExpand(t *testing.T) {
	dir := t.TempDir()
	b := write(t, dir, "b.txt", "b")
	a := write(t, dir, "a.md", "a")
	write(t, dir, "c.csv", "c")

	got, err := Expand([]string{filepath.Join(dir, "*"), b})
	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, got)

	literal := filepath.Join(dir, "later.pdf")
	got, err = Expand([]string{literal})
	require.NoError(t, err)
	assert.Equal(t, []string{literal}, got)

	got, err = Expand([]string{b, dir + "/./b.txt"})
	require.NoError(t, err)
	assert.Equal(t, []string{b}, got, "equivalent paths collapse to one document")

	_, err = Expand([]string{"[unclosed"})
	require.Error(t, err)
}
