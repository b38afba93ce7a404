package store

import (
	"bytes"
	"context"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/factsync/internal/testutil"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	src := createTestStore(t)
	d := seedDirectory(t, src)
	ctx := context.Background()

	var buf bytes.Buffer
	n, err := src.ExportSnapshot(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	dst := createTestStore(t)
	inserted, err := dst.ImportSnapshot(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 12, inserted)

	want, err := src.ReadFacts(ctx)
	require.NoError(t, err)
	got, err := dst.ReadFacts(ctx)
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Seq, got[i].Seq)
		assert.Equal(t, want[i].Fact.MustReference(), got[i].Fact.MustReference())
	}

	tuples, err := dst.ReadTuples(ctx, testutil.OpenOfficesSpec(), testutil.Tuple("company", d.company))
	require.NoError(t, err)
	assert.Len(t, tuples, 1)
}

func TestSnapshot_ImportIdempotent(t *testing.T) {
	s := createTestStore(t)
	seedDirectory(t, s)
	ctx := context.Background()

	var buf bytes.Buffer
	_, err := s.ExportSnapshot(ctx, &buf)
	require.NoError(t, err)

	inserted, err := s.ImportSnapshot(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Zero(t, inserted)
}

func TestSnapshot_HashMismatch(t *testing.T) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = enc.Write([]byte(`{"type":"Company","hash":"deadbeef","fields":{"identifier":"acme"}}` + "\n"))
	require.NoError(t, err)
	require.NoError(t, enc.Close())

	s := createTestStore(t)
	_, err = s.ImportSnapshot(context.Background(), &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hash mismatch")

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSnapshot_RejectsGarbage(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ImportSnapshot(context.Background(), bytes.NewReader([]byte("not zstd")))
	assert.Error(t, err)
}
