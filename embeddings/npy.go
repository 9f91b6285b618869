package embeddings

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
)

var ErrInvalidNPY = errors.New("invalid npy file")

var npyMagic = []byte("\x93NUMPY")

var (
	descrRegex   = regexp.MustCompile(`'descr'\s*:\s*'([^']*)'`)
	fortranRegex = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	shapeRegex   = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

// ReadNPY loads a 2-D little-endian float32 or float64 array saved by NumPy.
func ReadNPY(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open embeddings %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat embeddings %s: %w", path, err)
	}

	store, err := decodeNPY(bufio.NewReader(f), info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to read embeddings %s: %w", path, err)
	}
	return store, nil
}

// DecodeNPY reads an .npy stream.
func DecodeNPY(r io.Reader) (*Store, error) {
	return decodeNPY(r, -1)
}

// decodeNPY reads an .npy stream of size bytes, or of unknown size when size
// is negative. The payload the header announces is never allocated up front.
func decodeNPY(r io.Reader, size int64) (*Store, error) {
	prefix := make([]byte, len(npyMagic)+2)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return nil, fmt.Errorf("%w: short header: %v", ErrInvalidNPY, err)
	}
	if !bytes.Equal(prefix[:len(npyMagic)], npyMagic) {
		return nil, fmt.Errorf("%w: bad magic", ErrInvalidNPY)
	}

	var headerLen int
	switch major := prefix[len(npyMagic)]; major {
	case 1:
		var n uint16
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidNPY, err)
		}
		headerLen = int(n)
	case 2, 3:
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidNPY, err)
		}
		headerLen = int(n)
	default:
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidNPY, major)
	}

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: truncated header: %v", ErrInvalidNPY, err)
	}

	descr, rows, dim, err := parseHeader(string(header))
	if err != nil {
		return nil, err
	}

	var itemSize int
	switch descr {
	case "<f4":
		itemSize = 4
	case "<f8":
		itemSize = 8
	default:
		return nil, fmt.Errorf("%w: unsupported dtype %q", ErrInvalidNPY, descr)
	}

	if dim > 0 && rows > math.MaxInt/itemSize/dim {
		return nil, fmt.Errorf("%w: shape (%d, %d) overflows", ErrInvalidNPY, rows, dim)
	}
	payload := int64(rows) * int64(dim) * int64(itemSize)
	if size >= 0 {
		consumed := int64(len(prefix) + headerLen)
		if major := prefix[len(npyMagic)]; major == 1 {
			consumed += 2
		} else {
			consumed += 4
		}
		if payload > size-consumed {
			return nil, fmt.Errorf("%w: shape (%d, %d) needs %d bytes, file holds %d", ErrInvalidNPY, rows, dim, payload, size-consumed)
		}
	}

	// the buffer grows with what is actually read
	var buf bytes.Buffer
	if n, err := io.CopyN(&buf, r, payload); err != nil {
		return nil, fmt.Errorf("%w: truncated data: %d of %d bytes: %v", ErrInvalidNPY, n, payload, err)
	}

	raw := buf.Bytes()
	data := make([]float32, rows*dim)
	for i := range data {
		if itemSize == 4 {
			data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		} else {
			data[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:])))
		}
	}

	return newStoreFromBuffer(rows, dim, data), nil
}

func parseHeader(header string) (descr string, rows, dim int, err error) {
	m := descrRegex.FindStringSubmatch(header)
	if m == nil {
		return "", 0, 0, fmt.Errorf("%w: missing descr", ErrInvalidNPY)
	}
	descr = m[1]

	if m := fortranRegex.FindStringSubmatch(header); m == nil || m[1] != "False" {
		return "", 0, 0, fmt.Errorf("%w: only C-order arrays are supported", ErrInvalidNPY)
	}

	m = shapeRegex.FindStringSubmatch(header)
	if m == nil {
		return "", 0, 0, fmt.Errorf("%w: missing shape", ErrInvalidNPY)
	}

	var shape []int
	for _, part := range strings.Split(m[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, convErr := strconv.Atoi(part)
		if convErr != nil || n < 0 {
			return "", 0, 0, fmt.Errorf("%w: bad shape %q", ErrInvalidNPY, m[1])
		}
		shape = append(shape, n)
	}

	switch {
	case len(shape) == 2:
		return descr, shape[0], shape[1], nil
	case len(shape) == 1 && shape[0] == 0:
		return descr, 0, 0, nil
	default:
		return "", 0, 0, fmt.Errorf("%w: expected a 2-D array, got shape (%s)", ErrInvalidNPY, m[1])
	}
}

// WriteNPY saves the store as a version 1.0 .npy file of float32.
func WriteNPY(path string, s *Store) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create embeddings %s: %w", path, err)
	}

	w := bufio.NewWriter(f)
	if err := EncodeNPY(w, s); err != nil {
		f.Close()
		return fmt.Errorf("failed to write embeddings %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write embeddings %s: %w", path, err)
	}
	return f.Close()
}

// EncodeNPY writes the store as an .npy stream.
func EncodeNPY(w io.Writer, s *Store) error {
	header := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': (%d, %d), }", s.Len(), s.Dim())

	// magic + version + uint16 length + header + '\n' is padded to 64 bytes
	total := len(npyMagic) + 2 + 2 + len(header) + 1
	if rem := total % 64; rem != 0 {
		header += strings.Repeat(" ", 64-rem)
	}
	header += "\n"

	if _, err := w.Write(npyMagic); err != nil {
		return err
	}
	if _, err := w.Write([]byte{1, 0}); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(header))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	if s.Len() == 0 {
		return nil
	}
	return binary.Write(w, binary.LittleEndian, s.data)
}
