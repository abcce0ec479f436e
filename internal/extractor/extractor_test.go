package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want []Extraction
	}{
		{
			name: "winred slug",
			url:  "https://secure.winred.com/nrcc-victory/",
			want: []Extraction{{Platform: PlatformWinRed, Identifier: "nrcc-victory"}},
		},
		{
			name: "winred slug with trailing path",
			url:  "https://secure.winred.com/NRCC/donate?utm=1",
			want: []Extraction{{Platform: PlatformWinRed, Identifier: "nrcc"}},
		},
		{
			name: "anedot secure host",
			url:  "https://secure.anedot.com/freedom-pac/checkout",
			want: []Extraction{{Platform: PlatformAnedot, Identifier: "freedom-pac"}},
		},
		{
			name: "anedot bare host",
			url:  "https://anedot.com/freedom-pac",
			want: []Extraction{{Platform: PlatformAnedot, Identifier: "freedom-pac"}},
		},
		{
			name: "psq slug",
			url:  "https://secure.pacservicesq.com/liberty-fund/give",
			want: []Extraction{{Platform: PlatformPSQ, Identifier: "liberty-fund"}},
		},
		{
			name: "actblue donate path",
			url:  "https://secure.actblue.com/donate/save-america-2",
			want: []Extraction{{Platform: PlatformActBlue, Identifier: "save-america-2"}},
		},
		{
			name: "actblue without donate prefix",
			url:  "https://secure.actblue.com/contribute/page/save-america-2",
			want: nil,
		},
		{
			name: "actblue donate with no identifier",
			url:  "https://secure.actblue.com/donate",
			want: nil,
		},
		{
			name: "unrelated host",
			url:  "https://example.com/nrcc",
			want: nil,
		},
		{
			name: "winred root path",
			url:  "https://secure.winred.com/",
			want: nil,
		},
		{
			name: "unparseable url",
			url:  "://not a url",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.url))
		})
	}
}

func TestExtractAllPreservesOrder(t *testing.T) {
	got := ExtractAll([]string{
		"https://secure.actblue.com/donate/first",
		"https://secure.winred.com/second",
		"https://example.com/none",
		"https://secure.winred.com/third",
	})

	assert.Equal(t, []Extraction{
		{Platform: PlatformActBlue, Identifier: "first"},
		{Platform: PlatformWinRed, Identifier: "second"},
		{Platform: PlatformWinRed, Identifier: "third"},
	}, got)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want Classification
	}{
		{
			name: "actblue donate",
			url:  "https://secure.actblue.com/donate/save-america-2",
			want: Classification{Pattern: "actblue:donate", Identifier: "save-america-2"},
		},
		{
			name: "actblue contribute page",
			url:  "https://secure.actblue.com/contribute/page",
			want: Classification{Pattern: "actblue:contribute", Identifier: "page"},
		},
		{
			name: "winred",
			url:  "https://secure.winred.com/nrcc",
			want: Classification{Pattern: "winred", Identifier: "nrcc"},
		},
		{
			name: "ngpvan",
			url:  "https://secure.ngpvan.com/some-form",
			want: Classification{Pattern: "ngpvan", Identifier: "some-form"},
		},
		{
			name: "other host",
			url:  "https://news.example.com/story",
			want: Classification{Pattern: "other", Identifier: "news.example.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.url))
		})
	}
}
