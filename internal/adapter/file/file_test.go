package file

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/recon-hdob/internal/domain"
)

const flightLog = "IWG1,Date_Time,Lat,Lon\nIWG1,2024-09-26T12:00:00,25.5,-80.25\nIWG1,2024-09-26T12:00:01,25.5,-80.25\n"

func compressed(t *testing.T, c Compression, text string) []byte {
	t.Helper()
	var buf bytes.Buffer
	var w io.WriteCloser
	switch c {
	case Gzip:
		w = gzip.NewWriter(&buf)
	case Zstd:
		enc, err := zstd.NewWriter(&buf)
		require.NoError(t, err)
		w = enc
	case LZ4:
		w = lz4.NewWriter(&buf)
	default:
		return []byte(text)
	}
	_, err := io.WriteString(w, text)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestFromName(t *testing.T) {
	tests := map[string]Compression{
		"flight.txt":         None,
		"flight":             None,
		"flight.txt.gz":      Gzip,
		"FLIGHT.GZ":          Gzip,
		"flight.zst":         Zstd,
		"flight.txt.zstd":    Zstd,
		"flight.lz4":         LZ4,
		"dir.gz/flight.txt":  None,
	}
	for name, want := range tests {
		assert.Equal(t, want, FromName(name), name)
	}
}

func TestReadLines_Codecs(t *testing.T) {
	dir := t.TempDir()
	for _, c := range []Compression{None, Gzip, Zstd, LZ4} {
		t.Run(string(c), func(t *testing.T) {
			data := compressed(t, c, flightLog)

			// Named by extension.
			ext := map[Compression]string{None: ".txt", Gzip: ".txt.gz", Zstd: ".txt.zst", LZ4: ".txt.lz4"}[c]
			named := filepath.Join(dir, "named"+ext)
			require.NoError(t, os.WriteFile(named, data, 0o600))
			lines, err := ReadLines(named)
			require.NoError(t, err)
			assert.Len(t, lines, 3)
			assert.Equal(t, "IWG1,2024-09-26T12:00:00,25.5,-80.25", lines[1])

			// Detected by magic bytes.
			lines, err = ReadLinesFrom(bytes.NewReader(data), "")
			require.NoError(t, err)
			assert.Len(t, lines, 3)
		})
	}
}

func TestReadLines_MissingFile(t *testing.T) {
	_, err := ReadLines(filepath.Join(t.TempDir(), "absent.txt"))
	var ioe *domain.IOError
	require.ErrorAs(t, err, &ioe)
	assert.Equal(t, "open", ioe.Op)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadLines_CorruptGzip(t *testing.T) {
	_, err := ReadLinesFrom(strings.NewReader("not gzip at all"), "flight.gz")
	var ioe *domain.IOError
	require.ErrorAs(t, err, &ioe)
	assert.Equal(t, "decompress", ioe.Op)
}

func TestWriteFile_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"out/plain.hdob", "out/packed.hdob.gz", "out/packed.hdob.zst", "out/packed.hdob.lz4"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			err := WriteFile(path, func(w io.Writer) error {
				_, err := io.WriteString(w, flightLog)
				return err
			})
			require.NoError(t, err)

			lines, err := ReadLines(path)
			require.NoError(t, err)
			assert.Equal(t, strings.Split(strings.TrimSuffix(flightLog, "\n"), "\n"), lines)
		})
	}
}

func TestWriteFile_PropagatesWriterError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.hdob")
	boom := io.ErrShortWrite
	err := WriteFile(path, func(io.Writer) error { return boom })
	var ioe *domain.IOError
	require.ErrorAs(t, err, &ioe)
	assert.Equal(t, "write", ioe.Op)
	assert.ErrorIs(t, err, boom)
}

func TestCreate_UnwritableDir(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	_, err := Create(filepath.Join(blocker, "out.hdob"))
	var ioe *domain.IOError
	require.ErrorAs(t, err, &ioe)
	assert.Equal(t, "create", ioe.Op)
}
