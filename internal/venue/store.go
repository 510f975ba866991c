package venue

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Store reads and writes the courts file.
//
// The file is kept as a yaml.Node tree, saving only rewrites the `prices` of
// court groups whose prices changed, so keys that this program does not know
// about, comments and ordering survive a round trip.
type Store struct {
	path string

	doc *yaml.Node
	// true if the document holds a single venue mapping rather than a sequence
	bare bool
}

// NewStore is the constructor of Store.
func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Bare reports whether the loaded file held a single venue instead of a list.
func (s *Store) Bare() bool {
	return s.bare
}

// Load reads every venue of the file, a bare venue is returned as a one element list.
func (s *Store) Load() ([]Record, error) {
	contents, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read courts file: %w", err)
	}
	records, err := s.parse(contents)
	if err != nil {
		return nil, fmt.Errorf("parse courts file %s: %w", s.path, err)
	}
	return records, nil
}

func (s *Store) parse(contents []byte) ([]Record, error) {
	var doc yaml.Node
	err := yaml.Unmarshal(contents, &doc)
	if err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, errors.New("document is empty")
	}

	root := doc.Content[0]
	var nodes []*yaml.Node
	switch root.Kind {
	case yaml.SequenceNode:
		nodes = root.Content
	case yaml.MappingNode:
		nodes = []*yaml.Node{root}
		s.bare = true
	default:
		return nil, fmt.Errorf("line %d: expected a list of venues or a single venue", root.Line)
	}

	records := make([]Record, len(nodes))
	for i, n := range nodes {
		err := n.Decode(&records[i])
		if err != nil {
			return nil, fmt.Errorf("venue %d: %w", i, err)
		}
		records[i].node = n
		bindCourtNodes(&records[i], n)
	}

	s.doc = &doc
	return records, nil
}

func bindCourtNodes(record *Record, n *yaml.Node) {
	courts := mappingValue(n, "courts")
	if courts == nil || courts.Kind != yaml.SequenceNode {
		return
	}
	for i := range record.Courts {
		if i >= len(courts.Content) {
			return
		}
		record.Courts[i].node = courts.Content[i]
		record.Courts[i].loaded = clonePrices(record.Courts[i].Prices)
	}
}

// Save writes records back over the file it was loaded from.
// The whole file is written to a temporary file first and then renamed, so a
// crash leaves either the old or the new file on disk, never a mix.
func (s *Store) Save(records []Record) error {
	if s.doc == nil {
		return errors.New("save called before load")
	}

	for _, r := range records {
		if r.node == nil {
			return fmt.Errorf("venue %q was not loaded from this store", r.Name)
		}
		for _, c := range r.Courts {
			if c.node == nil || pricesEqual(c.loaded, c.Prices) {
				continue
			}
			err := setPrices(c.node, c.Prices)
			if err != nil {
				return fmt.Errorf("venue %q: %w", r.Name, err)
			}
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	err := enc.Encode(s.doc)
	if err != nil {
		return fmt.Errorf("encode courts file: %w", err)
	}
	err = enc.Close()
	if err != nil {
		return fmt.Errorf("encode courts file: %w", err)
	}

	err = writeAtomic(s.path, buf.Bytes())
	if err != nil {
		return err
	}

	for ri := range records {
		for ci := range records[ri].Courts {
			c := &records[ri].Courts[ci]
			c.loaded = clonePrices(c.Prices)
		}
	}
	return nil
}

func setPrices(court *yaml.Node, prices []PriceWindow) error {
	var value yaml.Node
	err := value.Encode(prices)
	if err != nil {
		return fmt.Errorf("encode prices: %w", err)
	}

	for i := 0; i+1 < len(court.Content); i += 2 {
		if court.Content[i].Value == "prices" {
			court.Content[i+1] = &value
			return nil
		}
	}
	court.Content = append(
		court.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "prices"},
		&value,
	)
	return nil
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

func writeAtomic(path string, contents []byte) error {
	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temporary courts file: %w", err)
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(contents)
	if err == nil {
		err = tmp.Sync()
	}
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("write temporary courts file: %w", err)
	}

	err = os.Chmod(tmp.Name(), mode)
	if err != nil {
		return fmt.Errorf("chmod temporary courts file: %w", err)
	}
	err = os.Rename(tmp.Name(), path)
	if err != nil {
		return fmt.Errorf("replace courts file: %w", err)
	}
	return nil
}
