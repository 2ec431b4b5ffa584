package document

// Metadata keys shared by loaded documents, chunks and index entries.
const (
	MetaSource = "source"
	MetaType   = "type"
	MetaPage   = "page"
)

// Document types.
const (
	TypeText             = "text"
	TypeImageDescription = "image_description"
)

// Document is one unit of loaded content. Produced by the loader and not
// mutated afterwards.
type Document struct {
	Content  string
	Metadata map[string]string
}

// Source returns the path the document was loaded from.
func (d Document) Source() string {
	return d.Metadata[MetaSource]
}

// Chunk is a bounded-size slice of a Document's content. Index is the
// position of the chunk within its Document's chunk sequence.
type Chunk struct {
	Content  string
	Metadata map[string]string
	Index    int
}

func (c Chunk) Source() string {
	return c.Metadata[MetaSource]
}

// CloneMetadata copies m so chunks never share a map with their document.
func CloneMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
