package micrite_api

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/bgzf"
	"github.com/biogo/hts/sam"
)

// A source of alignment records that can be fetched per reference
type AlignmentSource interface {
	// The reference names in header order
	ReferenceNames() []string

	// The mapped and unmapped read counts per reference without scanning the records
	// The last entry holds the reads without a reference, these are counted
	// with a scan when the index has no count for them
	IndexStats() ([]ReferenceCounts, error)

	// Iterate over the reads without a reference
	FetchUnmapped() (RecordIterator, error)

	// Iterate over the reads placed on a reference
	Fetch(contig string) (RecordIterator, error)

	Close() error
}

// An iterator over alignment records, following the shape of bam.Iterator
type RecordIterator interface {
	Next() bool
	Record() *sam.Record
	Error() error
	Close() error
}

// An AlignmentSource reading an indexed BAM file
type BamSource struct {
	path   string
	file   *os.File
	reader *bam.Reader
	index  *bam.Index
	refs   []*sam.Reference
}

// Open a BAM file and its index (<bam>.bai or <stem>.bai)
func OpenBam(path string) (*BamSource, error) {
	index, err := readBamIndex(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, newError(MissingInput, path, err)
	}

	reader, err := bam.NewReader(file, 1)
	if err != nil {
		file.Close()
		return nil, newError(MalformedInput, path, err)
	}

	return &BamSource{
		path:   path,
		file:   file,
		reader: reader,
		index:  index,
		refs:   reader.Header().Refs(),
	}, nil
}

// Find the index belonging to a BAM file
func indexPaths(path string) []string {
	return []string{path + ".bai", strings.TrimSuffix(path, ".bam") + ".bai"}
}

func readBamIndex(path string) (*bam.Index, error) {
	for _, indexPath := range indexPaths(path) {
		file, err := os.Open(indexPath)
		if err != nil {
			continue
		}
		defer file.Close()
		index, err := bam.ReadIndex(file)
		if err != nil {
			return nil, newError(MalformedInput, indexPath, err)
		}
		// An index without references is read as nil
		if index == nil {
			index = &bam.Index{}
		}
		return index, nil
	}
	return nil, newError(MissingInput, path, errors.New("no BAM index found, create one with 'micrite index'"))
}

func (b *BamSource) ReferenceNames() []string {
	names := make([]string, 0, len(b.refs))
	for _, ref := range b.refs {
		names = append(names, ref.Name())
	}
	return names
}

func (b *BamSource) IndexStats() ([]ReferenceCounts, error) {
	counts := make([]ReferenceCounts, 0, len(b.refs)+1)
	for _, ref := range b.refs {
		count := ReferenceCounts{Name: ref.Name()}
		if stats, ok := b.referenceStats(ref); ok {
			count.Mapped = stats.mapped
			count.Unmapped = stats.unmapped
		}
		counts = append(counts, count)
	}

	unplaced, ok := b.index.Unmapped()
	if !ok {
		var err error
		if unplaced, err = b.countUnplaced(); err != nil {
			return nil, err
		}
	}
	counts = append(counts, ReferenceCounts{Name: "*", Unmapped: unplaced})
	return counts, nil
}

// Count the reads without a reference by scanning the whole file
func (b *BamSource) countUnplaced() (uint64, error) {
	it, err := b.FetchUnmapped()
	if err != nil {
		return 0, err
	}
	defer it.Close()

	var n uint64
	for it.Next() {
		n++
	}
	if err := it.Error(); err != nil {
		return 0, &Error{Kind: MalformedInput, Path: b.path, Line: int(n) + 1, Err: fmt.Errorf("failed to count unplaced reads: %w", err)}
	}
	return n, nil
}

type referenceStats struct {
	mapped   uint64
	unmapped uint64
	// The virtual offset just after the last read of the reference
	end bgzf.Offset
}

func (b *BamSource) referenceStats(ref *sam.Reference) (referenceStats, bool) {
	if ref.ID() < 0 || ref.ID() >= b.index.NumRefs() {
		return referenceStats{}, false
	}
	stats, ok := b.index.ReferenceStats(ref.ID())
	if !ok {
		return referenceStats{}, false
	}
	return referenceStats{mapped: stats.Mapped, unmapped: stats.Unmapped, end: stats.Chunk.End}, true
}

// Unplaced reads are stored after the last placed read. When no reference
// has reads the whole file is scanned from the start.
func (b *BamSource) FetchUnmapped() (RecordIterator, error) {
	var (
		start bgzf.Offset
		found bool
	)
	for _, ref := range b.refs {
		stats, ok := b.referenceStats(ref)
		if !ok || stats.mapped+stats.unmapped == 0 {
			continue
		}
		if !found || offsetAfter(stats.end, start) {
			start = stats.end
			found = true
		}
	}

	if found {
		if err := b.reader.Seek(start); err != nil {
			return nil, newError(MalformedInput, b.path, fmt.Errorf("failed to seek to the unmapped reads: %w", err))
		}
		return &unmappedIterator{reader: b.reader}, nil
	}

	file, err := os.Open(b.path)
	if err != nil {
		return nil, newError(MissingInput, b.path, err)
	}
	reader, err := bam.NewReader(file, 1)
	if err != nil {
		file.Close()
		return nil, newError(MalformedInput, b.path, err)
	}
	return &unmappedIterator{reader: reader, closers: []io.Closer{reader, file}}, nil
}

func (b *BamSource) Fetch(contig string) (RecordIterator, error) {
	var ref *sam.Reference
	for _, r := range b.refs {
		if r.Name() == contig {
			ref = r
			break
		}
	}
	if ref == nil {
		return nil, newError(MissingInput, b.path, fmt.Errorf("contig %s is not in the BAM header", contig))
	}

	if stats, ok := b.referenceStats(ref); !ok || stats.mapped+stats.unmapped == 0 {
		return &emptyIterator{}, nil
	}

	chunks, err := b.index.Chunks(ref, 0, ref.Len())
	if err != nil {
		return nil, newError(MalformedInput, b.path, fmt.Errorf("failed to query the index for contig %s: %w", contig, err))
	}
	if len(chunks) == 0 {
		return &emptyIterator{}, nil
	}

	it, err := bam.NewIterator(b.reader, chunks)
	if err != nil {
		return nil, newError(MalformedInput, b.path, fmt.Errorf("failed to fetch contig %s: %w", contig, err))
	}
	return &referenceIterator{it: it, id: ref.ID()}, nil
}

func (b *BamSource) Close() error {
	err := b.reader.Close()
	if cerr := b.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// Check if offset a lies after offset b
func offsetAfter(a, b bgzf.Offset) bool {
	if a.File != b.File {
		return a.File > b.File
	}
	return a.Block > b.Block
}

// Only yields the records of one reference, chunks can reach into neighbouring references
type referenceIterator struct {
	it *bam.Iterator
	id int
}

func (i *referenceIterator) Next() bool {
	for i.it.Next() {
		if r := i.it.Record(); r.Ref != nil && r.Ref.ID() == i.id {
			return true
		}
	}
	return false
}

func (i *referenceIterator) Record() *sam.Record { return i.it.Record() }
func (i *referenceIterator) Error() error        { return i.it.Error() }

// The reader is shared with the source, so only the error is reported
func (i *referenceIterator) Close() error { return i.it.Error() }

// Yields the records without a reference until the end of the file
type unmappedIterator struct {
	reader  *bam.Reader
	closers []io.Closer
	record  *sam.Record
	err     error
}

func (i *unmappedIterator) Next() bool {
	if i.err != nil {
		return false
	}
	for {
		record, err := i.reader.Read()
		if err != nil {
			if err != io.EOF {
				i.err = err
			}
			i.record = nil
			return false
		}
		if record.Ref == nil {
			i.record = record
			return true
		}
	}
}

func (i *unmappedIterator) Record() *sam.Record { return i.record }
func (i *unmappedIterator) Error() error        { return i.err }

func (i *unmappedIterator) Close() error {
	err := i.err
	for _, c := range i.closers {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

type emptyIterator struct{}

func (emptyIterator) Next() bool          { return false }
func (emptyIterator) Record() *sam.Record { return nil }
func (emptyIterator) Error() error        { return nil }
func (emptyIterator) Close() error        { return nil }

// Write a BAI index next to a coordinate sorted BAM file
func BuildIndex(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", newError(MissingInput, path, err)
	}
	defer file.Close()

	reader, err := bam.NewReader(file, 1)
	if err != nil {
		return "", newError(MalformedInput, path, err)
	}
	defer reader.Close()

	var index bam.Index
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return "", &Error{Kind: MalformedInput, Path: path, Line: line, Err: err}
		}
		if err := index.Add(record, reader.LastChunk()); err != nil {
			return "", &Error{Kind: MalformedInput, Path: path, Line: line, Err: fmt.Errorf("failed to index record %s, is the BAM sorted by coordinate? %w", record.Name, err)}
		}
	}

	indexPath := path + ".bai"
	out, err := os.Create(indexPath)
	if err != nil {
		return "", newError(OutputFailure, indexPath, err)
	}
	if err := bam.WriteIndex(out, &index); err != nil {
		out.Close()
		return "", newError(OutputFailure, indexPath, err)
	}
	if err := out.Close(); err != nil {
		return "", newError(OutputFailure, indexPath, err)
	}
	return indexPath, nil
}
