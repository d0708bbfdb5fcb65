package document

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/raphaelgruber/contractflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"control whitespace", "Vendor:\tAcme\r\nTotal:\f$10", "Vendor: Acme \nTotal: $10"},
		{"blank lines", "a\n\n\n\n\nb", "a\n\nb"},
		{"space runs", "a     b", "a b"},
		{"nfkc ligature and fullwidth", "ﬁnal ＵＳＤ １００", "final USD 100"},
		{"trim", "  \n text \n ", "text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeText(tt.in))
		})
	}
}

func TestExtractDocumentText_MissingFile(t *testing.T) {
	p := NewProcessor(nil)

	_, err := p.ExtractDocumentText(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"), models.DocumentMetadata{})
	assert.ErrorIs(t, err, ErrDocumentProcessing)
	assert.Contains(t, err.Error(), "file not found")
}

func TestExtractDocumentText_CorruptPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4\nthis is not really a pdf"), 0o600))
	p := NewProcessor(nil)

	_, err := p.ExtractDocumentText(context.Background(), path, models.DocumentMetadata{})
	assert.ErrorIs(t, err, ErrDocumentProcessing)
}
