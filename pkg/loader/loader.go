package loader

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

type FileType string

const (
	FileTypeOntology    FileType = "ontology"
	FileTypeAnnotations FileType = "annotations"
)

// File is an input of an analysis: an ontology in OBO format or an
// annotation table. The content is fetched through its Loader, so the same
// parsing code runs against local files and object storage.
type File struct {
	ID       string
	FilePath string
	FileType FileType
	Loader   FileLoader
}

// NewFileParams defines the input parameters for creating a File.
type NewFileParams struct {
	ID       string
	FilePath string
	Loader   FileLoader
}

// NewOntologyFile creates a File of type FileTypeOntology.
func NewOntologyFile(params NewFileParams) File {
	return File{
		ID:       params.ID,
		FilePath: params.FilePath,
		FileType: FileTypeOntology,
		Loader:   params.Loader,
	}
}

// NewAnnotationFile creates a File of type FileTypeAnnotations.
func NewAnnotationFile(params NewFileParams) File {
	return File{
		ID:       params.ID,
		FilePath: params.FilePath,
		FileType: FileTypeAnnotations,
		Loader:   params.Loader,
	}
}

// GetBytes retrieves the raw, possibly compressed, file content.
func (f *File) GetBytes(ctx context.Context) ([]byte, error) {
	return f.Loader.GetFileBytes(ctx, *f)
}

// Open retrieves the content and transparently decompresses .gz and .zst
// files.
//
// Example:
//
//	r, err := file.Open(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer r.Close()
//	params, err := obo.Parse(r, obo.Options{})
func (f *File) Open(ctx context.Context) (io.ReadCloser, error) {
	data, err := f.GetBytes(ctx)
	if err != nil {
		return nil, err
	}
	return Decompress(f.FilePath, data)
}

// FileLoader defines the interface for loading the contents of a File.
// Implementations may load files from disk, cloud storage, or other sources.
type FileLoader interface {
	GetFileBytes(ctx context.Context, file File) ([]byte, error)
}

// Decompress wraps data in a decompressing reader chosen by the file
// extension. Unknown extensions are returned as is.
func Decompress(path string, data []byte) (io.ReadCloser, error) {
	r := bytes.NewReader(data)
	switch {
	case strings.HasSuffix(path, ".gz"):
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		return gr, nil
	case strings.HasSuffix(path, ".zst"):
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	}
	return io.NopCloser(r), nil
}
