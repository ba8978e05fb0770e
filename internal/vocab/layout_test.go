package vocab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayout_Mint(t *testing.T) {
	l := Layout{Base: "http://x/store/"}

	assert.Equal(t, "http://x/store/7", l.Context("7").Value)
	assert.Equal(t, "http://x/store/7/entry/3", l.Entry("7", "3").Value)
	assert.Equal(t, "http://x/store/7/metadata/3", l.Metadata("7", "3").Value)
	assert.Equal(t, "http://x/store/7/cached-external-metadata/3", l.CachedExternalMetadata("7", "3").Value)
	assert.Equal(t, "http://x/store/7/resource/3", l.Resource("7", "3").Value)
	assert.Equal(t, "http://x/store/7/relations/3", l.Relations("7", "3").Value)
	assert.Equal(t, "http://x/store/_principals/resource/_admin", l.Principal(AdminID).Value)
}

func TestLayout_Split(t *testing.T) {
	l := Layout{Base: "http://x/store/"}

	tests := []struct {
		uri           string
		ctx, path, id string
		ok            bool
	}{
		{"http://x/store/7/entry/3", "7", EntryPath, "3", true},
		{"http://x/store/7/metadata/3?rev=2", "7", MetadataPath, "3", true},
		{"http://x/store/7", "7", "", "", true},
		{"http://x/store/7/bogus/3", "", "", "", false},
		{"http://x/store/7/entry", "", "", "", false},
		{"http://y/store/7/entry/3", "", "", "", false},
		{"http://x/store/", "", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			ctx, path, id, ok := l.Split(tt.uri)
			require.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.ctx, ctx)
			assert.Equal(t, tt.path, path)
			assert.Equal(t, tt.id, id)
		})
	}
}

func TestSeqIndex(t *testing.T) {
	n, ok := SeqIndex(SeqMember(12))
	require.True(t, ok)
	assert.Equal(t, 12, n)

	_, ok = SeqIndex(Type)
	assert.False(t, ok)
	_, ok = SeqIndex(SeqMember(0))
	assert.False(t, ok)
}
