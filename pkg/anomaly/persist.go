package anomaly

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// formatVersion is bumped whenever the on-disk encoding changes
// incompatibly; Load refuses to read a mismatched version rather than
// guessing.
const formatVersion = 1

var (
	modelBucket = []byte("anomaly_model")
	modelKey    = []byte("current")
)

// Store persists and restores a Model's fitted scaler and forest to a
// bbolt database, grounded on pkg/gps/enhanced_cell_cache.go's
// bolt.Open(Timeout)+named-bucket discipline.
type Store struct {
	db *bolt.DB
}

// OpenStore opens (creating if absent) the bbolt database at path.
func OpenStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("anomaly: open store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(modelBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("anomaly: init bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save serializes m's scaler and forest into a single versioned,
// length-prefixed value and commits it in one transaction, so bbolt's
// copy-on-write commit is the only atomicity mechanism needed.
func (s *Store) Save(m *Model) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.trained {
		return fmt.Errorf("anomaly: model is not trained, nothing to persist")
	}

	var buf bytes.Buffer
	buf.WriteByte(formatVersion)
	writeSection(&buf, encodeScaler(m.scaler))
	writeSection(&buf, encodeForest(m.forest))

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(modelBucket).Put(modelKey, buf.Bytes())
	})
}

// Load restores a previously saved scaler and forest into a fresh
// Model. Returns (nil, nil) if nothing has been persisted yet.
func (s *Store) Load() (*Model, error) {
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(modelBucket).Get(modelKey)
		if v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	r := bytes.NewReader(raw)
	version, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("anomaly: corrupt persisted model: %w", err)
	}
	if version != formatVersion {
		return nil, fmt.Errorf("anomaly: persisted model format version %d unsupported", version)
	}

	scalerBytes, err := readSection(r)
	if err != nil {
		return nil, fmt.Errorf("anomaly: read scaler section: %w", err)
	}
	forestBytes, err := readSection(r)
	if err != nil {
		return nil, fmt.Errorf("anomaly: read forest section: %w", err)
	}

	scaler, err := decodeScaler(scalerBytes)
	if err != nil {
		return nil, fmt.Errorf("anomaly: decode scaler: %w", err)
	}
	forest, err := decodeForest(forestBytes)
	if err != nil {
		return nil, fmt.Errorf("anomaly: decode forest: %w", err)
	}

	return &Model{scaler: scaler, forest: forest, trained: true}, nil
}

func writeSection(buf *bytes.Buffer, section []byte) {
	var lenBytes [4]byte
	binary.LittleEndian.PutUint32(lenBytes[:], uint32(len(section)))
	buf.Write(lenBytes[:])
	buf.Write(section)
}

func readSection(r *bytes.Reader) ([]byte, error) {
	var lenBytes [4]byte
	if _, err := r.Read(lenBytes[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBytes[:])
	section := make([]byte, n)
	if _, err := r.Read(section); err != nil {
		return nil, err
	}
	return section, nil
}

func encodeScaler(s Scaler) []byte {
	var buf bytes.Buffer
	for _, v := range s.Mean {
		binary.Write(&buf, binary.LittleEndian, v)
	}
	for _, v := range s.Std {
		binary.Write(&buf, binary.LittleEndian, v)
	}
	return buf.Bytes()
}

func decodeScaler(data []byte) (Scaler, error) {
	want := FeatureCount * 8 * 2
	if len(data) != want {
		return Scaler{}, fmt.Errorf("expected %d bytes, got %d", want, len(data))
	}
	var s Scaler
	r := bytes.NewReader(data)
	for i := range s.Mean {
		binary.Read(r, binary.LittleEndian, &s.Mean[i])
	}
	for i := range s.Std {
		binary.Read(r, binary.LittleEndian, &s.Std[i])
	}
	return s, nil
}

func encodeForest(f *Forest) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, f.threshold)
	binary.Write(&buf, binary.LittleEndian, uint32(f.sampleSize))
	binary.Write(&buf, binary.LittleEndian, f.contamination)
	binary.Write(&buf, binary.LittleEndian, uint32(len(f.trees)))
	for _, t := range f.trees {
		encodeTree(&buf, t)
	}
	return buf.Bytes()
}

func decodeForest(data []byte) (*Forest, error) {
	r := bytes.NewReader(data)
	f := &Forest{}
	if err := binary.Read(r, binary.LittleEndian, &f.threshold); err != nil {
		return nil, err
	}
	var sampleSize, numTrees uint32
	if err := binary.Read(r, binary.LittleEndian, &sampleSize); err != nil {
		return nil, err
	}
	f.sampleSize = int(sampleSize)
	if err := binary.Read(r, binary.LittleEndian, &f.contamination); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &numTrees); err != nil {
		return nil, err
	}
	for i := uint32(0); i < numTrees; i++ {
		t, err := decodeTree(r)
		if err != nil {
			return nil, err
		}
		f.trees = append(f.trees, t)
	}
	return f, nil
}

func encodeTree(buf *bytes.Buffer, t *isolationTree) {
	if t.isLeaf {
		buf.WriteByte(1)
		binary.Write(buf, binary.LittleEndian, uint32(t.size))
		return
	}
	buf.WriteByte(0)
	binary.Write(buf, binary.LittleEndian, uint32(t.splitFeature))
	binary.Write(buf, binary.LittleEndian, t.splitValue)
	encodeTree(buf, t.left)
	encodeTree(buf, t.right)
}

func decodeTree(r *bytes.Reader) (*isolationTree, error) {
	isLeaf, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if isLeaf == 1 {
		var size uint32
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			return nil, err
		}
		return &isolationTree{isLeaf: true, size: int(size)}, nil
	}
	t := &isolationTree{}
	var feature uint32
	if err := binary.Read(r, binary.LittleEndian, &feature); err != nil {
		return nil, err
	}
	t.splitFeature = int(feature)
	if err := binary.Read(r, binary.LittleEndian, &t.splitValue); err != nil {
		return nil, err
	}
	left, err := decodeTree(r)
	if err != nil {
		return nil, err
	}
	right, err := decodeTree(r)
	if err != nil {
		return nil, err
	}
	t.left = left
	t.right = right
	return t, nil
}
